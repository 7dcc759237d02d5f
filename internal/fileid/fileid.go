// Package fileid derives stable document and material ids from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	prefix = "file:"
	// hashBytes is the number of SHA-256 bytes kept in an id.
	hashBytes = 16
)

// FileDocID returns a stable id for the given absolute path: "file:" followed by
// 32 hex characters. Equivalent spellings of a path (trailing slash, "." elements)
// yield the same id.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:hashBytes])
}

// IsFileDocID reports whether id has the shape produced by FileDocID.
func IsFileDocID(id string) bool {
	if len(id) != len(prefix)+2*hashBytes || id[:len(prefix)] != prefix {
		return false
	}
	_, err := hex.DecodeString(id[len(prefix):])
	return err == nil
}
