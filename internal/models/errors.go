package models

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the store. Check them with errors.Is.
var (
	// ErrConfiguration is returned for invalid chunking, embedding or retrieval settings.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrEmbeddingFailure is returned when the embedding provider fails or returns a malformed batch.
	ErrEmbeddingFailure = errors.New("embedding failed")

	// ErrDimensionMismatch is returned when a vector length differs from the index dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCorruptIndex is returned when a persisted snapshot exists but cannot be read.
	ErrCorruptIndex = errors.New("corrupt index snapshot")

	// ErrIndexUninitialized is returned by queries issued before the index was loaded or created.
	ErrIndexUninitialized = errors.New("index not initialized")

	// ErrInvalidQuery is returned when a query has neither text nor filter, or uses unknown filter keys.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrExtractionEmpty is returned when ingested text is empty or whitespace only.
	ErrExtractionEmpty = errors.New("extracted text is empty")

	// ErrNotFound is returned when no snapshot or document exists.
	ErrNotFound = errors.New("not found")

	// ErrIndexConflict is returned by a save when another writer replaced the live
	// snapshot since this process loaded or saved it.
	ErrIndexConflict = errors.New("index changed by another writer")

	// ErrStoreClosed is returned when using a closed store.
	ErrStoreClosed = errors.New("store is closed")
)

// OpError wraps an error with the store operation that produced it.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("chunkstore: %v", e.Err)
	}
	return fmt.Sprintf("chunkstore: %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// WrapOp wraps err with op. A nil err stays nil; an err that is already an OpError is returned as is.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &OpError{Op: op, Err: err}
}
