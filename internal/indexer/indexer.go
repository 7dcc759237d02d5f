// Package indexer ingests plain-text files into the store, deriving metadata from the
// file's location and skipping files the ledger already knows.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/chunkstore/internal/fileid"
	"github.com/hyperjump/chunkstore/internal/models"
	"github.com/hyperjump/chunkstore/internal/storage"
	"github.com/hyperjump/chunkstore/pkg/utils"
)

// Ingester is the part of the store the indexer needs.
type Ingester interface {
	IngestDocument(ctx context.Context, req *models.IngestRequest) (*models.IngestResult, error)
}

// Outcome says what IngestFile did with a file.
type Outcome int

const (
	// Ingested means the file was chunked, embedded and committed.
	Ingested Outcome = iota
	// Unchanged means the ledger already has the file with the same mtime and size.
	Unchanged
	// Stale means the file was ingested before and has changed since. The index is
	// append-only, so the new content is not ingested.
	Stale
	// Empty means the file has no text after preprocessing.
	Empty
)

func (o Outcome) String() string {
	switch o {
	case Ingested:
		return "ingested"
	case Unchanged:
		return "unchanged"
	case Stale:
		return "stale"
	case Empty:
		return "empty"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText renders the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// FileResult is the result of ingesting one file.
type FileResult struct {
	Path     string               `json:"path"`
	Outcome  Outcome              `json:"outcome"`
	Metadata map[string]string    `json:"metadata,omitempty"`
	Result   *models.IngestResult `json:"result,omitempty"` // set when Outcome is Ingested
}

// Indexer ingests files through an Ingester.
type Indexer struct {
	store      Ingester
	ledger     storage.Ledger // optional; without it every file is ingested
	extensions []string
	logger     *zap.Logger

	inflight singleflight.Group
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer. extensions limits which files are ingested (case-insensitive,
// with or without the leading dot); empty means all files. ledger may be nil.
func NewIndexer(store Ingester, ledger storage.Ledger, extensions []string, opts ...IndexerOption) *Indexer {
	idx := &Indexer{store: store, ledger: ledger, extensions: extensions}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.OrNop(idx.logger)
	return idx
}

// Extensions returns the allowed extensions.
func (idx *Indexer) Extensions() []string {
	return idx.extensions
}

// Allowed reports whether path has an allowed extension.
func (idx *Indexer) Allowed(path string) bool {
	return len(idx.extensions) == 0 || extensionAllowed(filepath.Ext(path), idx.extensions)
}

// PathMetadata derives metadata from path relative to root: a file at
// <root>/<subject>/<chapter>/.../<name> gets subject and chapter; a file at
// <root>/<subject>/<name> gets only subject. Every file gets material_id (a stable id of its
// absolute path) and source (its base name).
func PathMetadata(root, absPath string) map[string]string {
	meta := map[string]string{
		models.MetaMaterialID: fileid.FileDocID(absPath),
		models.MetaSource:     filepath.Base(absPath),
	}
	if root == "" {
		return meta
	}
	rel, err := filepath.Rel(root, absPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return meta
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	dirs := parts[:len(parts)-1]
	if len(dirs) >= 1 && dirs[0] != "" {
		meta[models.MetaSubject] = dirs[0]
	}
	if len(dirs) >= 2 && dirs[1] != "" {
		meta[models.MetaChapter] = dirs[1]
	}
	return meta
}

// IngestFile reads the file at path and ingests it with metadata derived relative to root
// (root may be empty). The document id is derived from the absolute path, so a file maps to
// one ledger record.
func (idx *Indexer) IngestFile(ctx context.Context, root, path string) (*FileResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	if root != "" {
		if root, err = filepath.Abs(root); err != nil {
			return nil, fmt.Errorf("absolute root: %w", err)
		}
	}
	if !idx.Allowed(absPath) {
		return nil, fmt.Errorf("extension %q not in allowed list", strings.ToLower(filepath.Ext(absPath)))
	}

	// Concurrent calls for one path share a single ledger check and ingestion.
	v, err, shared := idx.inflight.Do(absPath, func() (interface{}, error) {
		return idx.ingestFile(ctx, root, absPath)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		idx.logger.Debug("Joined in-flight ingestion", zap.String("path", absPath))
	}
	return v.(*FileResult), nil
}

func (idx *Indexer) ingestFile(ctx context.Context, root, absPath string) (*FileResult, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	meta := PathMetadata(root, absPath)
	res := &FileResult{Path: absPath, Metadata: meta}
	mtime, size := info.ModTime().UnixNano(), info.Size()

	if idx.ledger != nil {
		prev, err := idx.ledger.GetDocumentBySource(ctx, absPath)
		switch {
		case err == nil && prev.SourceMtime == mtime && prev.SourceSize == size:
			idx.logger.Debug("Skipping unchanged file", zap.String("path", absPath))
			res.Outcome = Unchanged
			return res, nil
		case err == nil:
			idx.logger.Warn("File changed since it was ingested; index is append-only, skipping",
				zap.String("path", absPath),
				zap.String("document_id", prev.ID))
			res.Outcome = Stale
			return res, nil
		case !errors.Is(err, models.ErrNotFound):
			return nil, fmt.Errorf("ledger lookup: %w", err)
		}
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	text := Preprocess(string(raw))
	if text == "" {
		idx.logger.Warn("Skipping empty file", zap.String("path", absPath))
		res.Outcome = Empty
		return res, nil
	}

	ingested, err := idx.store.IngestDocument(ctx, &models.IngestRequest{
		DocumentID:  meta[models.MetaMaterialID],
		Text:        text,
		Metadata:    meta,
		SourcePath:  absPath,
		SourceMtime: mtime,
		SourceSize:  size,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest %s: %w", absPath, err)
	}
	idx.logger.Debug("File ingested",
		zap.String("path", absPath),
		zap.String("document_id", ingested.DocumentID),
		zap.Int("entries", ingested.EntryCount))
	res.Outcome = Ingested
	res.Result = ingested
	return res, nil
}

// DirectorySummary counts IngestDirectory outcomes.
type DirectorySummary struct {
	Ingested  int `json:"ingested"`
	Unchanged int `json:"unchanged"`
	Stale     int `json:"stale"`
	Empty     int `json:"empty"`
	Entries   int `json:"entries"`
}

func (s *DirectorySummary) add(r *FileResult) {
	switch r.Outcome {
	case Ingested:
		s.Ingested++
		s.Entries += r.Result.EntryCount
	case Unchanged:
		s.Unchanged++
	case Stale:
		s.Stale++
	case Empty:
		s.Empty++
	}
}

// IngestDirectory walks dir recursively and ingests each regular file with an allowed
// extension, using dir as the metadata root. It stops at the first error.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string) (*DirectorySummary, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	summary := &DirectorySummary{}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !idx.Allowed(path) {
			return nil
		}
		// Resolve symlinks so we only ingest regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := idx.IngestFile(ctx, absDir, path)
		if err != nil {
			return err
		}
		summary.add(r)
		return nil
	})
	return summary, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
