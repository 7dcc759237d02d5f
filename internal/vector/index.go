// Package vector provides the in-memory vector index and similarity search.
package vector

import (
	"context"

	"github.com/hyperjump/chunkstore/internal/models"
)

// VectorIndex stores embedded chunks and answers similarity and exact-filter queries.
type VectorIndex interface {
	Insert(ctx context.Context, entries []*models.Entry) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Scan(ctx context.Context, filter models.Filter) ([]*models.Entry, error)
	Get(id string) (*models.Entry, bool)
	Size() int
	Dimensions() int
}

// VectorResult is a single similarity hit.
type VectorResult struct {
	Entry *models.Entry
	Score float64 // cosine similarity in [-1, 1]
}
