// Package config provides configuration loading and structs for the chunkstore server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/chunkstore/internal/models"
	"github.com/hyperjump/chunkstore/internal/store"
)

// Embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Watch     WatchConfig     `yaml:"watch"`
}

// WatchConfig holds drop-folder watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig holds the snapshot directory and the ledger database path.
type StorageConfig struct {
	IndexDir          string `yaml:"index_dir"`
	DatabasePath      string `yaml:"database_path"`
	RetainGenerations int    `yaml:"retain_generations"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	// APIKey falls back to the OPENAI_API_KEY environment variable.
	APIKey      string `yaml:"api_key,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
	MaxRetries  int    `yaml:"max_retries"`
	CacheSize   int    `yaml:"cache_size"`
}

// ResolvedAPIKey returns APIKey or, when empty, OPENAI_API_KEY from the environment.
func (e *EmbeddingConfig) ResolvedAPIKey() string {
	if e.APIKey != "" {
		return e.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// ChunkingConfig holds chunker settings, counted in characters.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is a pointer so an explicit 0 is kept.
	ChunkOverlap *int `yaml:"chunk_overlap"`
}

// OverlapOrDefault returns the configured overlap, or DefaultChunkOverlap when unset.
func (c *ChunkingConfig) OverlapOrDefault() int {
	if c.ChunkOverlap != nil {
		return *c.ChunkOverlap
	}
	return DefaultChunkOverlap
}

// RetrievalConfig holds query settings.
type RetrievalConfig struct {
	DefaultK       int      `yaml:"default_k"`
	MaxK           int      `yaml:"max_k"`
	FilterKeys     []string `yaml:"filter_keys"`
	DisableKeyword bool     `yaml:"disable_keyword"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexDir = expandPath(cfg.Storage.IndexDir, configDir)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks settings that would otherwise fail later, after I/O has started.
// All failures wrap models.ErrConfiguration.
func Validate(cfg *Config) error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	size, overlap := cfg.Chunking.ChunkSize, cfg.Chunking.OverlapOrDefault()
	if size <= 0 {
		add("chunking.chunk_size must be positive, got %d", size)
	}
	if overlap < 0 || (size > 0 && overlap >= size) {
		add("chunking.chunk_overlap must be in [0, chunk_size), got %d", overlap)
	}
	if cfg.Embedding.Dimensions <= 0 {
		add("embedding.dimensions must be positive, got %d", cfg.Embedding.Dimensions)
	}
	switch cfg.Embedding.Provider {
	case ProviderOpenAI:
		if cfg.Embedding.ResolvedAPIKey() == "" {
			add("embedding.api_key or OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderHash:
	default:
		add("embedding.provider must be %q or %q, got %q", ProviderOpenAI, ProviderHash, cfg.Embedding.Provider)
	}
	if cfg.Retrieval.DefaultK <= 0 {
		add("retrieval.default_k must be positive, got %d", cfg.Retrieval.DefaultK)
	}
	if cfg.Retrieval.MaxK < cfg.Retrieval.DefaultK {
		add("retrieval.max_k (%d) must be at least default_k (%d)", cfg.Retrieval.MaxK, cfg.Retrieval.DefaultK)
	}
	if cfg.Storage.IndexDir == "" {
		add("storage.index_dir is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", models.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// StoreConfig returns the store settings.
func (c *Config) StoreConfig() store.Config {
	return store.Config{
		IndexDir:          c.Storage.IndexDir,
		RetainGenerations: c.Storage.RetainGenerations,
		Dimensions:        c.Embedding.Dimensions,
		ChunkSize:         c.Chunking.ChunkSize,
		ChunkOverlap:      c.Chunking.OverlapOrDefault(),
		DefaultK:          c.Retrieval.DefaultK,
		MaxK:              c.Retrieval.MaxK,
		FilterKeys:        c.Retrieval.FilterKeys,
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
