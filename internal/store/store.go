// Package store is the chunked semantic document store: it chunks and embeds ingested text,
// keeps the vector index, persists it after every ingestion and answers queries by
// similarity, keyword or exact metadata filter.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/chunkstore/internal/chunk"
	"github.com/hyperjump/chunkstore/internal/embedding"
	"github.com/hyperjump/chunkstore/internal/keyword"
	"github.com/hyperjump/chunkstore/internal/models"
	"github.com/hyperjump/chunkstore/internal/persist"
	"github.com/hyperjump/chunkstore/internal/storage"
	"github.com/hyperjump/chunkstore/internal/vector"
	"github.com/hyperjump/chunkstore/pkg/utils"
)

// keywordPhraseBoost multiplies keyword scores of chunks containing the query as a phrase.
const keywordPhraseBoost = 1.5

// Config holds the store settings.
type Config struct {
	IndexDir          string
	RetainGenerations int
	// Dimensions must match the embedder when set; zero means use the embedder's.
	Dimensions   int
	ChunkSize    int
	ChunkOverlap int
	DefaultK     int
	MaxK         int
	// FilterKeys lists the metadata keys queries may filter on. Empty allows any key.
	FilterKeys []string
}

// Status describes the live index.
type Status struct {
	Initialized  bool      `json:"initialized"`
	Entries      int       `json:"entries"`
	Dimensions   int       `json:"dimensions"`
	ChunkSize    int       `json:"chunk_size"`
	ChunkOverlap int       `json:"chunk_overlap"`
	Generation   uint64    `json:"generation"`
	IndexDir     string    `json:"index_dir,omitempty"`
	KeywordMode  bool      `json:"keyword_mode"`
	LoadedAt     time.Time `json:"loaded_at,omitempty"`
}

// Store owns the single vector index of the process. All methods are safe for concurrent use.
type Store struct {
	cfg       Config
	embedder  embedding.Embedder
	chunker   *chunk.Chunker
	persister Persister
	ledger    storage.Ledger
	keyword   keyword.KeywordIndex
	logger    *zap.Logger

	initMu   sync.Mutex
	index    atomic.Pointer[vector.MemoryIndex]
	loadedAt atomic.Int64 // unix nanoseconds

	// writeMu serializes ingestions from Prepare through Publish.
	writeMu sync.Mutex
	closed  atomic.Bool
}

// New validates cfg and builds a store. No I/O happens until Init.
func New(cfg Config, embedder embedding.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", models.ErrConfiguration)
	}
	dims := embedder.Dimensions()
	if dims <= 0 {
		return nil, fmt.Errorf("%w: embedder reports %d dimensions", models.ErrConfiguration, dims)
	}
	if cfg.Dimensions != 0 && cfg.Dimensions != dims {
		return nil, fmt.Errorf("%w: configured %d dimensions, embedder produces %d", models.ErrConfiguration, cfg.Dimensions, dims)
	}
	cfg.Dimensions = dims
	chunker, err := chunk.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if cfg.DefaultK <= 0 {
		return nil, fmt.Errorf("%w: default_k must be positive, got %d", models.ErrConfiguration, cfg.DefaultK)
	}
	if cfg.MaxK != 0 && cfg.MaxK < cfg.DefaultK {
		return nil, fmt.Errorf("%w: max_k %d is below default_k %d", models.ErrConfiguration, cfg.MaxK, cfg.DefaultK)
	}

	s := &Store{cfg: cfg, embedder: embedder, chunker: chunker}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	if s.persister == nil {
		m, err := persist.NewManager(cfg.IndexDir, dims, cfg.RetainGenerations, s.logger)
		if err != nil {
			return nil, err
		}
		s.persister = m
	}
	return s, nil
}

// Open is New followed by Init.
func Open(ctx context.Context, cfg Config, embedder embedding.Embedder, opts ...Option) (*Store, error) {
	s, err := New(cfg, embedder, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Init loads the persisted index, or creates an empty one when none exists. It runs the
// load at most once; concurrent callers wait and observe the same index. A failed Init
// (for example ErrCorruptIndex) leaves the store uninitialized and may be retried.
func (s *Store) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.closed.Load() {
		return models.WrapOp("load", models.ErrStoreClosed)
	}
	if s.index.Load() != nil {
		return nil
	}

	var set *vector.EntrySet
	snap, err := s.persister.Load(ctx)
	switch {
	case err == nil:
		set = snap.Set
		if snap.ChunkSize != s.chunker.Size() || snap.ChunkOverlap != s.chunker.Overlap() {
			s.logger.Warn("Index was built with different chunking parameters",
				zap.Int("snapshot_chunk_size", snap.ChunkSize),
				zap.Int("snapshot_chunk_overlap", snap.ChunkOverlap),
				zap.Int("chunk_size", s.chunker.Size()),
				zap.Int("chunk_overlap", s.chunker.Overlap()))
		}
	case errors.Is(err, models.ErrNotFound):
		s.logger.Info("No index snapshot found, creating empty index", zap.String("dir", s.cfg.IndexDir))
		set, err = vector.NewEntrySet(s.cfg.Dimensions, nil)
		if err != nil {
			return models.WrapOp("load", err)
		}
	default:
		return models.WrapOp("load", err)
	}

	if s.keyword != nil && set.Len() > 0 {
		if err := s.keyword.IndexEntries(ctx, set.Entries()); err != nil {
			s.logger.Warn("Keyword index rebuild failed", zap.Error(err))
		}
	}

	s.loadedAt.Store(time.Now().UnixNano())
	s.index.Store(vector.NewMemoryIndexFrom(set))
	s.logger.Info("Index ready",
		zap.Int("entries", set.Len()),
		zap.Int("dimensions", set.Dimensions()),
		zap.Uint64("generation", s.persister.Generation()))
	return nil
}

// Close releases the embedder, ledger and keyword index. Later calls fail with ErrStoreClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	// wait for an in-flight ingestion to finish its commit
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var errs []error
	if s.keyword != nil {
		errs = append(errs, s.keyword.Close())
	}
	if s.ledger != nil {
		errs = append(errs, s.ledger.Close())
	}
	errs = append(errs, s.embedder.Close())
	return errors.Join(errs...)
}

func (s *Store) ready() (*vector.MemoryIndex, error) {
	if s.closed.Load() {
		return nil, models.ErrStoreClosed
	}
	idx := s.index.Load()
	if idx == nil {
		return nil, models.ErrIndexUninitialized
	}
	return idx, nil
}

// Ingest chunks, embeds and indexes text and returns the number of entries created.
func (s *Store) Ingest(ctx context.Context, text string, metadata map[string]string) (int, error) {
	res, err := s.IngestDocument(ctx, &models.IngestRequest{Text: text, Metadata: metadata})
	if err != nil {
		return 0, err
	}
	return res.EntryCount, nil
}

// IngestDocument is Ingest with a caller-chosen document id and source information.
// Either every chunk of the document becomes visible and persisted, or none does.
func (s *Store) IngestDocument(ctx context.Context, req *models.IngestRequest) (*models.IngestResult, error) {
	res, err := s.ingest(ctx, req)
	return res, models.WrapOp("ingest", err)
}

func (s *Store) ingest(ctx context.Context, req *models.IngestRequest) (*models.IngestResult, error) {
	start := time.Now()
	if _, err := s.ready(); err != nil {
		return nil, err
	}
	if req == nil || strings.TrimSpace(req.Text) == "" {
		return nil, models.ErrExtractionEmpty
	}
	docID := req.DocumentID
	if docID == "" {
		docID = newID()
	}

	chunks := s.chunker.Split(req.Text, req.Metadata)
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, models.ErrDimensionMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingFailure, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", models.ErrEmbeddingFailure, len(vectors), len(chunks))
	}

	entries := make([]*models.Entry, len(chunks))
	ids := make([]string, len(chunks))
	for i := range chunks {
		ids[i] = newID()
		entries[i] = &models.Entry{ID: ids[i], Chunk: chunks[i], Vector: vectors[i]}
	}

	gen, err := s.commit(ctx, entries)
	if err != nil {
		return nil, err
	}

	// The entries are committed; a cancelled request must not skip the side records.
	sideCtx := context.WithoutCancel(ctx)
	if s.keyword != nil {
		if err := s.keyword.IndexEntries(sideCtx, entries); err != nil {
			s.logger.Warn("Keyword indexing failed", zap.String("document_id", docID), zap.Error(err))
		}
	}
	if s.ledger != nil {
		doc := &models.Document{
			ID:          docID,
			Metadata:    models.CloneMetadata(req.Metadata),
			ChunkCount:  len(entries),
			CharCount:   utf8.RuneCountInString(req.Text),
			SourcePath:  req.SourcePath,
			SourceMtime: req.SourceMtime,
			SourceSize:  req.SourceSize,
			EntryIDs:    ids,
		}
		if err := s.ledger.RecordDocument(sideCtx, doc); err != nil {
			s.logger.Warn("Ledger write failed", zap.String("document_id", docID), zap.Error(err))
		}
	}

	s.logger.Info("Document ingested",
		zap.String("document_id", docID),
		zap.Int("entries", len(entries)),
		zap.Uint64("generation", gen),
		zap.Duration("elapsed", time.Since(start)))
	return &models.IngestResult{DocumentID: docID, EntryCount: len(entries), EntryIDs: ids, Generation: gen}, nil
}

// commit stages entries, persists the staged set and only then publishes it. When another
// process saved to the same directory in the meantime, commit reloads its snapshot and
// stages the entries on top of it once more.
func (s *Store) commit(ctx context.Context, entries []*models.Entry) (uint64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed.Load() {
		return 0, models.ErrStoreClosed
	}

	idx := s.index.Load()
	gen, err := s.save(ctx, idx, entries)
	if errors.Is(err, models.ErrIndexConflict) {
		s.logger.Warn("Index changed on disk, reloading before retry",
			zap.String("dir", s.cfg.IndexDir),
			zap.Uint64("generation", s.persister.Generation()))
		if idx, err = s.reload(ctx, idx); err != nil {
			return 0, models.WrapOp("reload", err)
		}
		gen, err = s.save(ctx, idx, entries)
	}
	return gen, err
}

func (s *Store) save(ctx context.Context, idx *vector.MemoryIndex, entries []*models.Entry) (uint64, error) {
	next, err := idx.Prepare(entries)
	if err != nil {
		return 0, models.WrapOp("insert", err)
	}
	gen, err := s.persister.Save(ctx, &persist.Snapshot{
		Set:          next,
		ChunkSize:    s.chunker.Size(),
		ChunkOverlap: s.chunker.Overlap(),
	})
	if err != nil {
		return 0, models.WrapOp("save", err)
	}
	if err := idx.Publish(next); err != nil {
		return 0, models.WrapOp("insert", err)
	}
	return gen, nil
}

// reload replaces the live index with the persisted snapshot and keyword-indexes the
// entries it did not know. An absent snapshot reloads as an empty index. Must hold writeMu.
func (s *Store) reload(ctx context.Context, old *vector.MemoryIndex) (*vector.MemoryIndex, error) {
	var set *vector.EntrySet
	snap, err := s.persister.Load(ctx)
	switch {
	case err == nil:
		set = snap.Set
	case errors.Is(err, models.ErrNotFound):
		if set, err = vector.NewEntrySet(s.cfg.Dimensions, nil); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if s.keyword != nil {
		var added []*models.Entry
		for _, e := range set.Entries() {
			if _, ok := old.Get(e.ID); !ok {
				added = append(added, e)
			}
		}
		if len(added) > 0 {
			if err := s.keyword.IndexEntries(ctx, added); err != nil {
				s.logger.Warn("Keyword indexing of reloaded entries failed", zap.Error(err))
			}
		}
	}

	idx := vector.NewMemoryIndexFrom(set)
	s.index.Store(idx)
	s.loadedAt.Store(time.Now().UnixNano())
	s.logger.Info("Index reloaded",
		zap.Int("entries", set.Len()),
		zap.Uint64("generation", s.persister.Generation()))
	return idx, nil
}

// Query answers req. Filter-only requests return every matching entry in insertion order;
// text requests rank the top k by similarity (or keyword score in keyword mode) and then
// keep only the entries matching the filter. An empty outcome sets NoMatch.
func (s *Store) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error) {
	res, err := s.query(ctx, req)
	return res, models.WrapOp("query", err)
}

func (s *Store) query(ctx context.Context, req *models.QueryRequest) (*models.QueryResult, error) {
	start := time.Now()
	idx, err := s.ready()
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: empty request", models.ErrInvalidQuery)
	}
	q := *req
	if err := q.Normalize(s.cfg.DefaultK, s.cfg.MaxK, s.cfg.FilterKeys); err != nil {
		return nil, err
	}

	var hits []models.Hit
	var candidates int
	switch q.Mode {
	case models.ModeFilter:
		entries, err := idx.Scan(ctx, q.Filter)
		if err != nil {
			return nil, err
		}
		candidates = len(entries)
		hits = make([]models.Hit, len(entries))
		for i, e := range entries {
			hits[i] = toHit(e, 0)
		}

	case models.ModeSimilarity:
		vec, err := s.embedder.Embed(ctx, q.Text)
		if err != nil {
			if errors.Is(err, models.ErrDimensionMismatch) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingFailure, err)
		}
		results, err := idx.Search(ctx, vec, q.K)
		if err != nil {
			return nil, err
		}
		candidates = len(results)
		for _, r := range results {
			if q.Filter.Matches(r.Entry.Metadata) {
				hits = append(hits, toHit(r.Entry, r.Score))
			}
		}

	case models.ModeKeyword:
		if s.keyword == nil {
			return nil, fmt.Errorf("%w: keyword mode is not enabled", models.ErrInvalidQuery)
		}
		results, err := s.keyword.Search(ctx, q.Text, q.K, &keyword.SearchOptions{
			PhraseBoost:  keywordPhraseBoost,
			FuzzyEnabled: q.Fuzzy,
		})
		if err != nil {
			return nil, err
		}
		candidates = len(results)
		for _, r := range results {
			e, ok := idx.Get(r.ID)
			if !ok || !q.Filter.Matches(e.Metadata) {
				continue
			}
			hits = append(hits, toHit(e, r.Score))
		}
	}

	if hits == nil {
		hits = []models.Hit{}
	}
	elapsed := time.Since(start)
	s.logger.Debug("Query served",
		zap.String("mode", string(q.Mode)),
		zap.String("filter", q.Filter.String()),
		zap.Int("k", q.K),
		zap.Int("candidates", candidates),
		zap.Int("hits", len(hits)),
		zap.Duration("elapsed", elapsed))
	return &models.QueryResult{
		Mode:       q.Mode,
		Chunks:     hits,
		NoMatch:    len(hits) == 0,
		Candidates: candidates,
		QueryTime:  elapsed.Milliseconds(),
	}, nil
}

// Entry returns an indexed entry by id.
func (s *Store) Entry(id string) (*models.Entry, error) {
	idx, err := s.ready()
	if err != nil {
		return nil, err
	}
	e, ok := idx.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: entry %s", models.ErrNotFound, id)
	}
	return e, nil
}

// Document returns the ledger record of a document together with its chunks in order.
// It requires a ledger.
func (s *Store) Document(ctx context.Context, id string) (*models.Document, []models.Hit, error) {
	idx, err := s.ready()
	if err != nil {
		return nil, nil, err
	}
	if s.ledger == nil {
		return nil, nil, fmt.Errorf("%w: no ledger configured", models.ErrNotFound)
	}
	doc, err := s.ledger.GetDocument(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	hits := make([]models.Hit, 0, len(doc.EntryIDs))
	for _, eid := range doc.EntryIDs {
		if e, ok := idx.Get(eid); ok {
			hits = append(hits, toHit(e, 0))
		}
	}
	return doc, hits, nil
}

// Ledger returns the ingestion ledger, or nil.
func (s *Store) Ledger() storage.Ledger {
	return s.ledger
}

// Status reports the live index.
func (s *Store) Status() Status {
	st := Status{
		Dimensions:   s.cfg.Dimensions,
		ChunkSize:    s.chunker.Size(),
		ChunkOverlap: s.chunker.Overlap(),
		Generation:   s.persister.Generation(),
		IndexDir:     s.cfg.IndexDir,
		KeywordMode:  s.keyword != nil,
	}
	if idx := s.index.Load(); idx != nil {
		st.Initialized = true
		st.Entries = idx.Size()
		st.LoadedAt = time.Unix(0, s.loadedAt.Load())
	}
	return st
}

func toHit(e *models.Entry, score float64) models.Hit {
	return models.Hit{
		EntryID:       e.ID,
		Text:          e.Text,
		SequenceIndex: e.SequenceIndex,
		Metadata:      e.Metadata,
		Score:         score,
	}
}

// newID returns a time-ordered UUIDv7, falling back to a random UUID.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
