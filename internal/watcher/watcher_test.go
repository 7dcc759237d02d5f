package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	calls map[string]string // path -> root
}

func newRecorder() *recorder { return &recorder{calls: map[string]string{}} }

func (r *recorder) onFile(_ context.Context, root, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[path] = root
}

func (r *recorder) get(path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	root, ok := r.calls[path]
	return root, ok
}

func (r *recorder) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for p := range r.calls {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "biology")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	rec := newRecorder()
	w := NewWatcher([]string{dir}, []string{".txt"}, true, rec.onFile, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	fPath := filepath.Join(sub, "f.txt")
	if err := os.WriteFile(fPath, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	ignored := filepath.Join(sub, "f.bin")
	if err := os.WriteFile(ignored, []byte{0}, 0644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, func() bool { _, ok := rec.get(fPath); return ok }) {
		t.Fatal("expected callback for f.txt")
	}
	if root, _ := rec.get(fPath); root != filepath.Clean(dir) {
		t.Errorf("root = %q, want %q", root, dir)
	}
	if _, ok := rec.get(ignored); ok {
		t.Error("f.bin should be filtered by extension")
	}
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder()
	w := NewWatcher([]string{dir}, []string{".md"}, true, rec.onFile, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	newDir := filepath.Join(dir, "physics")
	if err := os.Mkdir(newDir, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	fPath := filepath.Join(newDir, "notes.md")
	if err := os.WriteFile(fPath, []byte("force"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, func() bool { _, ok := rec.get(fPath); return ok }) {
		t.Error("expected callback for a file in a newly created directory")
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"a.txt", "sub/b.txt", "sub/c.md", ".hidden/d.txt"} {
		full := filepath.Join(dir, p)
		_ = os.MkdirAll(filepath.Dir(full), 0755)
		if err := os.WriteFile(full, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	rec := newRecorder()
	w := NewWatcher([]string{dir}, []string{".txt"}, true, rec.onFile)
	w.SyncExistingFiles(context.Background())

	want := []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "sub", "b.txt")}
	sort.Strings(want)
	got := rec.paths()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("synced %v, want %v", got, want)
	}
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "drop")
	w := NewWatcher([]string{root}, nil, false, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should be created: %v", err)
	}
	if dirs := w.Directories(); len(dirs) != 1 || dirs[0] != root {
		t.Errorf("Directories() = %v", dirs)
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := NewWatcher([]string{t.TempDir()}, nil, true, nil)
	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	w.Stop()
	w.Stop()
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{"txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{".txt"}, false},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
