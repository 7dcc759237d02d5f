package embedding

import (
	"context"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Set("c", []float32{6}) // evicts a
	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to remain")
	}
	if c.Len() != 2 {
		t.Errorf("Len=%d", c.Len())
	}
}

type countingEmbedder struct {
	*HashEmbedder
	batches [][]string
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batches = append(e.batches, append([]string(nil), texts...))
	return e.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_OnlyForwardsMisses(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder(8)}
	e := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := e.EmbedBatch(ctx, []string{"alpha", "beta", "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 3 || len(inner.batches) != 1 || len(inner.batches[0]) != 2 {
		t.Fatalf("expected one call with 2 distinct texts, got %v", inner.batches)
	}
	if first[0][0] != first[2][0] {
		t.Error("duplicate texts should share an embedding")
	}

	second, err := e.EmbedBatch(ctx, []string{"beta", "gamma"})
	if err != nil {
		t.Fatal(err)
	}
	if len(inner.batches) != 2 || len(inner.batches[1]) != 1 || inner.batches[1][0] != "gamma" {
		t.Fatalf("expected only gamma forwarded, got %v", inner.batches)
	}
	want, _ := inner.HashEmbedder.Embed(ctx, "beta")
	for i := range want {
		if second[0][i] != want[i] {
			t.Fatalf("cached beta differs at %d", i)
		}
	}
}

func TestNewCachedEmbedder_ZeroCapacityReturnsInner(t *testing.T) {
	inner := NewHashEmbedder(4)
	if NewCachedEmbedder(inner, 0) != Embedder(inner) {
		t.Error("expected inner embedder when capacity is 0")
	}
}
