package config

import (
	"github.com/hyperjump/chunkstore/internal/embedding"
	"github.com/hyperjump/chunkstore/internal/models"
)

// Defaults for settings left unset.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 20
	DefaultK            = 50
	DefaultMaxK         = 200
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.AllowedOrigins == nil {
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "/usr/local/var/chunkstore/data/index"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/chunkstore/data/db/ledger.db"
	}
	if cfg.Storage.RetainGenerations == 0 {
		cfg.Storage.RetainGenerations = 3
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOpenAI
	}
	if cfg.Embedding.Model == "" && cfg.Embedding.Provider == ProviderOpenAI {
		cfg.Embedding.Model = embedding.DefaultOpenAIModel
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 100
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = DefaultChunkSize
	}
	if cfg.Chunking.ChunkOverlap == nil {
		o := DefaultChunkOverlap
		cfg.Chunking.ChunkOverlap = &o
	}
	if cfg.Retrieval.DefaultK == 0 {
		cfg.Retrieval.DefaultK = DefaultK
	}
	if cfg.Retrieval.MaxK == 0 {
		cfg.Retrieval.MaxK = DefaultMaxK
		if cfg.Retrieval.MaxK < cfg.Retrieval.DefaultK {
			cfg.Retrieval.MaxK = cfg.Retrieval.DefaultK
		}
	}
	if cfg.Retrieval.FilterKeys == nil {
		cfg.Retrieval.FilterKeys = []string{models.MetaSubject, models.MetaChapter, models.MetaMaterialID}
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
