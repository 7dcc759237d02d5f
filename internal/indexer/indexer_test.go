package indexer

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/chunkstore/internal/embedding"
	"github.com/hyperjump/chunkstore/internal/fileid"
	"github.com/hyperjump/chunkstore/internal/models"
	"github.com/hyperjump/chunkstore/internal/storage"
	"github.com/hyperjump/chunkstore/internal/store"
)

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{".md", []string{"txt", "md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		got := extensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("extensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func TestPathMetadata(t *testing.T) {
	root := filepath.FromSlash("/data/materials")
	tests := []struct {
		path        string
		wantSubject string
		wantChapter string
	}{
		{"/data/materials/biology/cell/notes.txt", "biology", "cell"},
		{"/data/materials/biology/cell/extra/deep.txt", "biology", "cell"},
		{"/data/materials/biology/notes.txt", "biology", ""},
		{"/data/materials/notes.txt", "", ""},
		{"/elsewhere/notes.txt", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			abs := filepath.FromSlash(tt.path)
			meta := PathMetadata(root, abs)
			if meta[models.MetaSubject] != tt.wantSubject || meta[models.MetaChapter] != tt.wantChapter {
				t.Errorf("subject/chapter = %q/%q, want %q/%q",
					meta[models.MetaSubject], meta[models.MetaChapter], tt.wantSubject, tt.wantChapter)
			}
			if meta[models.MetaMaterialID] != fileid.FileDocID(abs) {
				t.Errorf("material_id = %q", meta[models.MetaMaterialID])
			}
			if meta[models.MetaSource] != filepath.Base(abs) {
				t.Errorf("source = %q", meta[models.MetaSource])
			}
		})
	}
}

func TestPreprocess(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello   world  ", "hello world"},
		{"\uFEFFline one\r\nline two\rline three", "line one\nline two\nline three"},
		{"tabs\t\tand  spaces \nnext", "tabs and spaces\nnext"},
		{"para one\n\npara two", "para one\n\npara two"},
		{"bad \xff byte", "bad \uFFFD byte"},
		{" \n\t ", ""},
	}
	for _, tt := range tests {
		if got := Preprocess(tt.in); got != tt.want {
			t.Errorf("Preprocess(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOutcome_String(t *testing.T) {
	if Ingested.String() != "ingested" || Stale.String() != "stale" || Outcome(42).String() != "outcome(42)" {
		t.Error("unexpected outcome names")
	}
}

func newTestIndexer(t *testing.T) (*Indexer, *store.Store, storage.Ledger) {
	t.Helper()
	return newTestIndexerWith(t, embedding.NewHashEmbedder(32))
}

func newTestIndexerWith(t *testing.T, embedder embedding.Embedder) (*Indexer, *store.Store, storage.Ledger) {
	t.Helper()
	dir := t.TempDir()
	ledger, err := storage.NewSQLiteLedger(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	s, err := store.Open(context.Background(), store.Config{
		IndexDir:     filepath.Join(dir, "index"),
		ChunkSize:    40,
		ChunkOverlap: 8,
		DefaultK:     10,
		MaxK:         100,
	}, embedder, store.WithLedger(ledger))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return NewIndexer(s, ledger, []string{".txt", ".md"}), s, ledger
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestIngestFile_ingestSkipAndStale(t *testing.T) {
	idx, s, ledger := newTestIndexer(t)
	ctx := context.Background()
	root := t.TempDir()
	fPath := filepath.Join(root, "biology", "cell", "mito.txt")
	writeFile(t, fPath, "The mitochondria is the powerhouse of the cell.")

	res, err := idx.IngestFile(ctx, root, fPath)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Ingested || res.Result.EntryCount == 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	docID := fileid.FileDocID(fPath)
	if res.Result.DocumentID != docID {
		t.Errorf("document id = %s, want %s", res.Result.DocumentID, docID)
	}
	doc, err := ledger.GetDocument(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Metadata[models.MetaSubject] != "biology" || doc.Metadata[models.MetaChapter] != "cell" {
		t.Errorf("ledger metadata = %v", doc.Metadata)
	}

	again, err := idx.IngestFile(ctx, root, fPath)
	if err != nil {
		t.Fatal(err)
	}
	if again.Outcome != Unchanged {
		t.Errorf("second ingest outcome = %s, want unchanged", again.Outcome)
	}
	entries := s.Status().Entries

	writeFile(t, fPath, "Completely different text now, and longer than before.")
	future := time.Now().Add(time.Hour)
	_ = os.Chtimes(fPath, future, future)
	changed, err := idx.IngestFile(ctx, root, fPath)
	if err != nil {
		t.Fatal(err)
	}
	if changed.Outcome != Stale {
		t.Errorf("changed file outcome = %s, want stale", changed.Outcome)
	}
	if s.Status().Entries != entries {
		t.Error("stale file must not add entries")
	}
}

// slowEmbedder holds every batch long enough for concurrent callers to overlap.
type slowEmbedder struct {
	*embedding.HashEmbedder
	calls atomic.Int32
}

func (s *slowEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls.Add(1)
	time.Sleep(50 * time.Millisecond)
	return s.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestIngestFile_concurrentSamePath(t *testing.T) {
	emb := &slowEmbedder{HashEmbedder: embedding.NewHashEmbedder(32)}
	idx, s, ledger := newTestIndexerWith(t, emb)
	ctx := context.Background()
	root := t.TempDir()
	fPath := filepath.Join(root, "biology", "cell", "mito.txt")
	writeFile(t, fPath, "The mitochondria is the powerhouse of the cell.")

	const callers = 8
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]*FileResult, callers)
		errs    = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = idx.IngestFile(ctx, root, fPath)
		}(i)
	}
	close(start)
	wg.Wait()

	ingested := 0
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		switch results[i].Outcome {
		case Ingested:
			ingested++
		case Unchanged:
		default:
			t.Errorf("caller %d outcome = %s", i, results[i].Outcome)
		}
	}
	if ingested == 0 {
		t.Fatal("no caller ingested the file")
	}
	if n := emb.calls.Load(); n != 1 {
		t.Errorf("embedder called %d times, want 1", n)
	}

	docID := fileid.FileDocID(fPath)
	doc, err := ledger.GetDocument(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	res, err := s.Query(ctx, &models.QueryRequest{Filter: models.Filter{models.MetaMaterialID: docID}})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Chunks) != doc.ChunkCount || s.Status().Entries != doc.ChunkCount {
		t.Errorf("hits = %d, entries = %d, want %d (one copy of the file)", len(res.Chunks), s.Status().Entries, doc.ChunkCount)
	}
}

func TestIngestFile_rejections(t *testing.T) {
	idx, _, _ := newTestIndexer(t)
	ctx := context.Background()
	dir := t.TempDir()

	goFile := filepath.Join(dir, "main.go")
	writeFile(t, goFile, "package main")
	if _, err := idx.IngestFile(ctx, dir, goFile); err == nil {
		t.Error("expected error for disallowed extension")
	}
	if _, err := idx.IngestFile(ctx, dir, filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(dir, "empty.txt")
	writeFile(t, empty, "   \n\t")
	res, err := idx.IngestFile(ctx, dir, empty)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Empty {
		t.Errorf("empty file outcome = %s", res.Outcome)
	}
}

func TestIngestDirectory(t *testing.T) {
	idx, s, _ := newTestIndexer(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "biology", "cell", "mito.txt"), "The mitochondria is the powerhouse of the cell.")
	writeFile(t, filepath.Join(root, "physics", "intro.md"), "Force equals mass times acceleration.")
	writeFile(t, filepath.Join(root, "readme.txt"), "Study materials.")
	writeFile(t, filepath.Join(root, "notes.go"), "package notes")
	writeFile(t, filepath.Join(root, ".cache", "hidden.txt"), "should be ignored")

	summary, err := idx.IngestDirectory(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Ingested != 3 || summary.Entries == 0 {
		t.Errorf("summary = %+v", summary)
	}

	res, err := s.Query(ctx, &models.QueryRequest{Filter: models.Filter{models.MetaSubject: "biology"}})
	if err != nil {
		t.Fatal(err)
	}
	if res.NoMatch {
		t.Fatal("expected biology chunks")
	}
	for _, h := range res.Chunks {
		if h.Metadata[models.MetaChapter] != "cell" || h.Metadata[models.MetaSource] != "mito.txt" {
			t.Errorf("unexpected metadata %v", h.Metadata)
		}
	}

	again, err := idx.IngestDirectory(ctx, root)
	if err != nil {
		t.Fatal(err)
	}
	want := &DirectorySummary{Unchanged: 3}
	if !reflect.DeepEqual(again, want) {
		t.Errorf("second pass = %+v, want %+v", again, want)
	}
}

func TestIngestDirectory_notADirectory(t *testing.T) {
	idx, _, _ := newTestIndexer(t)
	f := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, f, "x")
	if _, err := idx.IngestDirectory(context.Background(), f); err == nil {
		t.Error("expected error for file path")
	}
}
