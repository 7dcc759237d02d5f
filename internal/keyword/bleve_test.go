package keyword

import (
	"context"
	"fmt"
	"testing"

	"github.com/hyperjump/chunkstore/internal/models"
)

func newIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex()
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func chunkEntry(id, text string, meta map[string]string) *models.Entry {
	return &models.Entry{ID: id, Chunk: models.Chunk{Text: text, Metadata: meta}}
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()

	err := idx.IndexEntries(ctx, []*models.Entry{
		chunkEntry("e1", "The mitochondria is the powerhouse of the cell.", nil),
		chunkEntry("e2", "Photosynthesis happens in the chloroplast.", nil),
	})
	if err != nil {
		t.Fatalf("IndexEntries: %v", err)
	}

	results, err := idx.Search(ctx, "Powerhouse", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "e1" {
		t.Fatalf("expected only e1, got %+v", results)
	}

	if n, _ := idx.DocCount(); n != 2 {
		t.Errorf("DocCount = %d, want 2", n)
	}
}

func TestBleveIndex_SearchFindsSource(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()
	_ = idx.IndexEntries(ctx, []*models.Entry{
		chunkEntry("e1", "Some body text.", map[string]string{models.MetaSource: "genetics-notes.txt"}),
	})

	results, err := idx.Search(ctx, "genetics", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "e1" {
		t.Errorf("expected match on source name, got %+v", results)
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()
	_ = idx.IndexEntries(ctx, []*models.Entry{chunkEntry("e1", "mitochondria organelle", nil)})

	exact, _ := idx.Search(ctx, "mitochondira", 10, nil)
	if len(exact) != 0 {
		t.Errorf("typo should not match without fuzzy, got %d", len(exact))
	}
	fuzzy, err := idx.Search(ctx, "mitochondira", 10, &SearchOptions{FuzzyEnabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(fuzzy) != 1 {
		t.Errorf("fuzzy search should match, got %d", len(fuzzy))
	}
}

func TestBleveIndex_PhraseBoost(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()
	_ = idx.IndexEntries(ctx, []*models.Entry{
		chunkEntry("scattered", "cell biology and the powerhouse topic, cell cell cell", nil),
		chunkEntry("phrase", "powerhouse cell", nil),
	})

	results, err := idx.Search(ctx, "powerhouse cell", 10, &SearchOptions{PhraseBoost: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].ID != "phrase" {
		t.Errorf("phrase match should rank first, got %+v", results)
	}
}

func TestBleveIndex_Limit(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()
	var entries []*models.Entry
	for i := 0; i < 20; i++ {
		entries = append(entries, chunkEntry(fmt.Sprintf("e%d", i), "shared word", nil))
	}
	_ = idx.IndexEntries(ctx, entries)

	results, _ := idx.Search(ctx, "shared", 5, nil)
	if len(results) != 5 {
		t.Errorf("expected 5 results, got %d", len(results))
	}
	results, _ = idx.Search(ctx, "shared", 0, nil)
	if len(results) != 0 {
		t.Errorf("limit 0: expected no results, got %d", len(results))
	}
}
