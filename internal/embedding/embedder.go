// Package embedding provides text embedding providers and wrappers for batching and caching.
package embedding

import "context"

// Embedder converts text to fixed-length vectors.
//
// EmbedBatch returns exactly one vector per input text, in input order, or an error and no
// vectors. Every vector a provider returns has length Dimensions(). Implementations must be
// safe for concurrent use.
type Embedder interface {
	// Embed embeds a single text, typically a query.
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
