package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/chunkstore/internal/models"
)

// BatchEmbedder splits large EmbedBatch calls into sub-batches of at most batchSize texts and
// runs up to concurrency of them at once. The call fails as a whole if any sub-batch fails or
// returns a malformed result; no partial output is returned.
type BatchEmbedder struct {
	inner       Embedder
	batchSize   int
	concurrency int
}

// NewBatchEmbedder wraps inner. Non-positive batchSize means one request per call;
// non-positive concurrency means 1.
func NewBatchEmbedder(inner Embedder, batchSize, concurrency int) *BatchEmbedder {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchEmbedder{inner: inner, batchSize: batchSize, concurrency: concurrency}
}

// Embed embeds one text and checks its length.
func (b *BatchEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := b.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := b.checkDims(v); err != nil {
		return nil, err
	}
	return v, nil
}

// EmbedBatch embeds texts preserving input order.
func (b *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	size := b.batchSize
	if size <= 0 || size > len(texts) {
		size = len(texts)
	}
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for start := 0; start < len(texts); start += size {
		start := start
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vecs, err := b.inner.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != end-start {
				return fmt.Errorf("embed texts %d-%d: provider returned %d embeddings", start, end-1, len(vecs))
			}
			for i, v := range vecs {
				if err := b.checkDims(v); err != nil {
					return fmt.Errorf("embed text %d: %w", start+i, err)
				}
				out[start+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BatchEmbedder) checkDims(v []float32) error {
	if want := b.inner.Dimensions(); len(v) != want {
		return fmt.Errorf("%w: got %d, expected %d", models.ErrDimensionMismatch, len(v), want)
	}
	return nil
}

// Dimensions returns the wrapped embedder's dimension.
func (b *BatchEmbedder) Dimensions() int {
	return b.inner.Dimensions()
}

// Close closes the wrapped embedder.
func (b *BatchEmbedder) Close() error {
	return b.inner.Close()
}
