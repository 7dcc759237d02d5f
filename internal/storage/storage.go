// Package storage keeps the ingestion ledger: which documents were ingested, with which
// metadata and source file, and which index entries they produced.
package storage

import (
	"context"

	"github.com/hyperjump/chunkstore/internal/models"
)

// Ledger records ingested documents. It is a side record; the vector index snapshot is
// the source of truth for retrieval.
type Ledger interface {
	// RecordDocument stores doc and its entry ids. Recording an existing id appends the new
	// entries and refreshes metadata and source fields.
	RecordDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	// GetDocumentBySource returns the most recent document ingested from path.
	GetDocumentBySource(ctx context.Context, path string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)

	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)

	Close() error
}
