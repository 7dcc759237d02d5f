package vector

import (
	"fmt"

	"github.com/hyperjump/chunkstore/internal/models"
)

// EntrySet is an immutable, insertion-ordered set of index entries. A new set is derived
// with With; existing sets are never modified, so readers holding one see a stable view.
type EntrySet struct {
	dimensions int
	entries    []*models.Entry
	norms      []float64
	byID       map[string]int
	parent     *EntrySet
}

// NewEntrySet builds a set from entries, validating ids and vector lengths.
func NewEntrySet(dimensions int, entries []*models.Entry) (*EntrySet, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", models.ErrConfiguration, dimensions)
	}
	empty := &EntrySet{dimensions: dimensions, byID: map[string]int{}}
	if len(entries) == 0 {
		return empty, nil
	}
	set, err := empty.With(entries)
	if err != nil {
		return nil, err
	}
	set.parent = nil
	return set, nil
}

// With returns a new set holding s's entries followed by entries. It fails without
// side effects if any entry has an empty or duplicate id or a vector of the wrong length.
// Entry vectors and metadata are copied.
func (s *EntrySet) With(entries []*models.Entry) (*EntrySet, error) {
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if e == nil || e.ID == "" {
			return nil, fmt.Errorf("entry %d: missing id", i)
		}
		if len(e.Vector) != s.dimensions {
			return nil, fmt.Errorf("%w: entry %d has %d dimensions, index has %d", models.ErrDimensionMismatch, i, len(e.Vector), s.dimensions)
		}
		if _, dup := s.byID[e.ID]; dup {
			return nil, fmt.Errorf("entry %d: duplicate id %s", i, e.ID)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("entry %d: duplicate id %s in batch", i, e.ID)
		}
		seen[e.ID] = struct{}{}
	}

	n := len(s.entries) + len(entries)
	next := &EntrySet{
		dimensions: s.dimensions,
		entries:    make([]*models.Entry, len(s.entries), n),
		norms:      make([]float64, len(s.norms), n),
		byID:       make(map[string]int, n),
		parent:     s,
	}
	copy(next.entries, s.entries)
	copy(next.norms, s.norms)
	for id, pos := range s.byID {
		next.byID[id] = pos
	}
	for _, e := range entries {
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		entry := &models.Entry{
			ID: e.ID,
			Chunk: models.Chunk{
				Text:          e.Text,
				SequenceIndex: e.SequenceIndex,
				Metadata:      models.CloneMetadata(e.Metadata),
			},
			Vector: vec,
		}
		next.byID[entry.ID] = len(next.entries)
		next.entries = append(next.entries, entry)
		next.norms = append(next.norms, L2Norm(vec))
	}
	return next, nil
}

// Len returns the number of entries.
func (s *EntrySet) Len() int { return len(s.entries) }

// Dimensions returns the vector length of every entry.
func (s *EntrySet) Dimensions() int { return s.dimensions }

// Entries returns the entries in insertion order. The slice must not be modified.
func (s *EntrySet) Entries() []*models.Entry { return s.entries }

// Get returns the entry with the given id.
func (s *EntrySet) Get(id string) (*models.Entry, bool) {
	pos, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return s.entries[pos], true
}
