package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/hyperjump/chunkstore/internal/models"
)

type scriptedEmbedder struct {
	*HashEmbedder
	mu      sync.Mutex
	calls   int
	failOn  string
	wrongN  bool
	wrongDm bool
}

func (e *scriptedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	for _, t := range texts {
		if t == e.failOn {
			return nil, errors.New("rate limited")
		}
	}
	out, err := e.HashEmbedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if e.wrongN {
		out = out[:len(out)-1]
	}
	if e.wrongDm {
		out[0] = out[0][:1]
	}
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text number %d", i)
	}
	return out
}

func TestBatchEmbedder_PreservesOrder(t *testing.T) {
	inner := &scriptedEmbedder{HashEmbedder: NewHashEmbedder(16)}
	b := NewBatchEmbedder(inner, 3, 4)
	in := texts(10)
	got, err := b.EmbedBatch(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if inner.calls != 4 {
		t.Errorf("expected 4 sub-batches, got %d", inner.calls)
	}
	for i, text := range in {
		want, _ := inner.HashEmbedder.Embed(context.Background(), text)
		for j := range want {
			if got[i][j] != want[j] {
				t.Fatalf("embedding %d out of order", i)
			}
		}
	}
}

func TestBatchEmbedder_FailsWhole(t *testing.T) {
	tests := []struct {
		name    string
		inner   *scriptedEmbedder
		wantDim bool
	}{
		{"provider error", &scriptedEmbedder{HashEmbedder: NewHashEmbedder(16), failOn: "text number 7"}, false},
		{"short result", &scriptedEmbedder{HashEmbedder: NewHashEmbedder(16), wrongN: true}, false},
		{"wrong dimension", &scriptedEmbedder{HashEmbedder: NewHashEmbedder(16), wrongDm: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewBatchEmbedder(tt.inner, 4, 2).EmbedBatch(context.Background(), texts(10))
			if err == nil {
				t.Fatal("expected error")
			}
			if got != nil {
				t.Error("no partial output on failure")
			}
			if tt.wantDim != errors.Is(err, models.ErrDimensionMismatch) {
				t.Errorf("err = %v", err)
			}
		})
	}
}

func TestBatchEmbedder_Empty(t *testing.T) {
	got, err := NewBatchEmbedder(NewHashEmbedder(4), 2, 1).EmbedBatch(context.Background(), nil)
	if err != nil || got != nil {
		t.Errorf("got %v, %v", got, err)
	}
}
