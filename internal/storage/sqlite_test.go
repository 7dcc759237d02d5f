package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/hyperjump/chunkstore/internal/models"
)

func newLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	ledger, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestSQLiteLedger_RecordGet(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:          "doc1",
		Metadata:    map[string]string{"subject": "biology", "chapter": "cell"},
		ChunkCount:  3,
		CharCount:   47,
		SourcePath:  "/data/biology/cell/notes.txt",
		SourceMtime: 1700000000,
		SourceSize:  47,
		EntryIDs:    []string{"e1", "e2", "e3"},
	}
	if err := ledger.RecordDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := ledger.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ChunkCount != 3 || got.CharCount != 47 || got.SourceMtime != 1700000000 || got.SourceSize != 47 {
		t.Errorf("got %+v", got)
	}
	if !reflect.DeepEqual(got.Metadata, doc.Metadata) {
		t.Errorf("metadata = %v, want %v", got.Metadata, doc.Metadata)
	}
	if !reflect.DeepEqual(got.EntryIDs, doc.EntryIDs) {
		t.Errorf("entry ids = %v, want %v", got.EntryIDs, doc.EntryIDs)
	}

	bySource, err := ledger.GetDocumentBySource(ctx, "/data/biology/cell/notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if bySource.ID != "doc1" {
		t.Errorf("by source: got %s", bySource.ID)
	}
}

func TestSQLiteLedger_NotFound(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()
	if _, err := ledger.GetDocument(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetDocument: expected ErrNotFound, got %v", err)
	}
	if _, err := ledger.GetDocumentBySource(ctx, "/nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetDocumentBySource: expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteLedger_RecordTwiceAppends(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()

	_ = ledger.RecordDocument(ctx, &models.Document{ID: "d", ChunkCount: 2, CharCount: 10, EntryIDs: []string{"a", "b"}})
	if err := ledger.RecordDocument(ctx, &models.Document{ID: "d", ChunkCount: 1, CharCount: 4, EntryIDs: []string{"c"}}); err != nil {
		t.Fatal(err)
	}
	got, err := ledger.GetDocument(ctx, "d")
	if err != nil {
		t.Fatal(err)
	}
	if got.ChunkCount != 3 || got.CharCount != 14 {
		t.Errorf("counts = %d/%d, want 3/14", got.ChunkCount, got.CharCount)
	}
	if !reflect.DeepEqual(got.EntryIDs, []string{"a", "b", "c"}) {
		t.Errorf("entry ids = %v", got.EntryIDs)
	}

	// a duplicate entry id rolls the whole record back
	if err := ledger.RecordDocument(ctx, &models.Document{ID: "d", ChunkCount: 1, EntryIDs: []string{"a"}}); err == nil {
		t.Error("expected error for duplicate entry id")
	}
	got, _ = ledger.GetDocument(ctx, "d")
	if got.ChunkCount != 3 {
		t.Errorf("chunk count after failed record = %d, want 3", got.ChunkCount)
	}
}

func TestSQLiteLedger_ListAndCount(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		err := ledger.RecordDocument(ctx, &models.Document{
			ID:         id,
			ChunkCount: i + 1,
			EntryIDs:   entryIDs(id, i+1),
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	list, err := ledger.ListDocuments(ctx, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Errorf("unexpected page: %+v", list)
	}
	list, _ = ledger.ListDocuments(ctx, 2, 2)
	if len(list) != 1 || list[0].ID != "a" {
		t.Errorf("unexpected second page: %+v", list)
	}

	docs, err := ledger.CountDocuments(ctx)
	if err != nil || docs != 3 {
		t.Errorf("CountDocuments = %d, %v", docs, err)
	}
	chunks, err := ledger.CountChunks(ctx)
	if err != nil || chunks != 6 {
		t.Errorf("CountChunks = %d, %v", chunks, err)
	}
}

func TestSQLiteLedger_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()
	ledger, err := NewSQLiteLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = ledger.RecordDocument(ctx, &models.Document{ID: "x", ChunkCount: 1, EntryIDs: []string{"x1"}})
	_ = ledger.Close()

	reopened, err := NewSQLiteLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if _, err := reopened.GetDocument(ctx, "x"); err != nil {
		t.Errorf("document lost after reopen: %v", err)
	}
}

func entryIDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = prefix + "-" + string(rune('0'+i))
	}
	return ids
}
