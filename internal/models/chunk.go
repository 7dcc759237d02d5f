// Package models defines the chunk, index entry, query and result types shared by the store packages.
package models

import "time"

// Well-known metadata keys. File ingestion sets them from the file path.
const (
	MetaSubject    = "subject"
	MetaChapter    = "chapter"
	MetaMaterialID = "material_id"
	MetaSource     = "source"
)

// Chunk is an immutable unit of text produced by the chunker.
type Chunk struct {
	Text          string            `json:"text"`
	SequenceIndex int               `json:"sequence_index"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Entry is a chunk plus its embedding and store-assigned identifier.
// Entries are never mutated after insertion.
type Entry struct {
	ID string `json:"id"`
	Chunk
	Vector []float32 `json:"-"`
}

// CloneMetadata returns a copy of m; nil stays nil.
func CloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IngestRequest is the input of a single ingestion call.
type IngestRequest struct {
	DocumentID string            `json:"document_id,omitempty"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	// Source fields are set by file ingestion and recorded in the ledger.
	SourcePath  string `json:"-"`
	SourceMtime int64  `json:"-"`
	SourceSize  int64  `json:"-"`
}

// IngestResult describes a committed ingestion.
type IngestResult struct {
	DocumentID string   `json:"document_id"`
	EntryCount int      `json:"entry_count"`
	EntryIDs   []string `json:"entry_ids,omitempty"`
	Generation uint64   `json:"generation"`
}

// Document is the ledger record of one ingestion call.
type Document struct {
	ID          string            `json:"id" db:"id"`
	Metadata    map[string]string `json:"metadata" db:"metadata"`
	ChunkCount  int               `json:"chunk_count" db:"chunk_count"`
	CharCount   int               `json:"char_count" db:"char_count"`
	SourcePath  string            `json:"source_path,omitempty" db:"source_path"`
	SourceMtime int64             `json:"source_mtime,omitempty" db:"source_mtime"`
	SourceSize  int64             `json:"source_size,omitempty" db:"source_size"`
	EntryIDs    []string          `json:"entry_ids,omitempty" db:"-"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
}
