package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/chunkstore/internal/keyword"
	"github.com/hyperjump/chunkstore/internal/persist"
	"github.com/hyperjump/chunkstore/internal/storage"
)

// Persister saves and loads index snapshots. *persist.Manager implements it.
type Persister interface {
	Save(ctx context.Context, snap *persist.Snapshot) (uint64, error)
	Load(ctx context.Context) (*persist.Snapshot, error)
	Generation() uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards all output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithLedger records every committed ingestion in ledger. The store closes it on Close.
func WithLedger(l storage.Ledger) Option {
	return func(s *Store) { s.ledger = l }
}

// WithKeywordIndex enables keyword mode backed by idx. The store fills it at Init and
// closes it on Close.
func WithKeywordIndex(idx keyword.KeywordIndex) Option {
	return func(s *Store) { s.keyword = idx }
}

// WithPersistence replaces the snapshot manager built from Config.IndexDir.
func WithPersistence(p Persister) Option {
	return func(s *Store) { s.persister = p }
}
