package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/chunkstore/internal/models"
)

// ErrStaleSet is returned by Publish when the prepared set was not derived from the current set.
var ErrStaleSet = errors.New("vector: prepared set is stale")

// MemoryIndex is an in-memory vector index using brute-force cosine search.
// The current EntrySet is swapped atomically, so readers never block and always see
// either all or none of a batch. Writers are serialized.
type MemoryIndex struct {
	dimensions int
	current    atomic.Pointer[EntrySet]
	mu         sync.Mutex
}

// NewMemoryIndex creates an empty index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	set, err := NewEntrySet(dimensions, nil)
	if err != nil {
		return nil, err
	}
	return NewMemoryIndexFrom(set), nil
}

// NewMemoryIndexFrom creates an index serving set.
func NewMemoryIndexFrom(set *EntrySet) *MemoryIndex {
	m := &MemoryIndex{dimensions: set.Dimensions()}
	m.current.Store(set)
	return m
}

// Current returns the currently published set.
func (m *MemoryIndex) Current() *EntrySet {
	return m.current.Load()
}

// Insert validates and publishes entries as one batch.
func (m *MemoryIndex) Insert(ctx context.Context, entries []*models.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.Current().With(entries)
	if err != nil {
		return err
	}
	m.current.Store(next)
	return nil
}

// Prepare derives the set that would result from inserting entries without publishing it.
// Callers holding their own write lock can persist the result before calling Publish.
func (m *MemoryIndex) Prepare(entries []*models.Entry) (*EntrySet, error) {
	return m.Current().With(entries)
}

// Publish makes next the current set. next must have been prepared from the current set.
func (m *MemoryIndex) Publish(next *EntrySet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if next == nil || next.parent != m.Current() {
		return ErrStaleSet
	}
	m.current.Store(next)
	return nil
}

// Search returns up to k entries ranked by cosine similarity, highest first.
// Equal scores keep insertion order.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrInvalidQuery, k)
	}
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", models.ErrDimensionMismatch, len(query), m.dimensions)
	}
	set := m.Current()
	if set.Len() == 0 {
		return []*VectorResult{}, nil
	}
	qn := L2Norm(query)
	results := make([]*VectorResult, len(set.entries))
	for i, e := range set.entries {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var score float64
		if qn > 0 && set.norms[i] > 0 {
			score = InnerProduct(query, e.Vector) / (qn * set.norms[i])
		}
		results[i] = &VectorResult{Entry: e, Score: score}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Scan returns every entry whose metadata matches filter exactly, in insertion order.
func (m *MemoryIndex) Scan(ctx context.Context, filter models.Filter) ([]*models.Entry, error) {
	set := m.Current()
	out := make([]*models.Entry, 0)
	for i, e := range set.entries {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if filter.Matches(e.Metadata) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Get returns the entry with the given id.
func (m *MemoryIndex) Get(id string) (*models.Entry, bool) {
	return m.Current().Get(id)
}

// Size returns the number of entries.
func (m *MemoryIndex) Size() int {
	return m.Current().Len()
}

// Dimensions returns the vector dimension.
func (m *MemoryIndex) Dimensions() int {
	return m.dimensions
}

var _ VectorIndex = (*MemoryIndex)(nil)
