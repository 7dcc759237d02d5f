//go:build !unix

package persist

const lockFile = "LOCK"

// dirLock is a no-op where flock is unavailable. Save still refuses to overwrite a
// generation it did not load.
type dirLock struct{}

func lockDir(string) (*dirLock, error) { return &dirLock{}, nil }

func (l *dirLock) release() error { return nil }
