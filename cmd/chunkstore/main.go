// Package main is the chunkstore CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chunkstore/internal/cli"
	"github.com/hyperjump/chunkstore/internal/config"
	"github.com/hyperjump/chunkstore/internal/embedding"
	"github.com/hyperjump/chunkstore/internal/indexer"
	"github.com/hyperjump/chunkstore/internal/keyword"
	"github.com/hyperjump/chunkstore/internal/models"
	"github.com/hyperjump/chunkstore/internal/persist"
	"github.com/hyperjump/chunkstore/internal/server"
	"github.com/hyperjump/chunkstore/internal/storage"
	"github.com/hyperjump/chunkstore/internal/store"
	"github.com/hyperjump/chunkstore/internal/watcher"
	"github.com/hyperjump/chunkstore/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/chunkstore/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence if it exists. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve", "server":
		runServe()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "status":
		runStatus()
	case "reset":
		runReset()
	case "version", "--version", "-v":
		fmt.Printf("chunkstore version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads and validates the config and builds a logger.
func setup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config %s: %v\n", resolved, err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func exitInit(err error) {
	fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
	if errors.Is(err, models.ErrCorruptIndex) || errors.Is(err, models.ErrDimensionMismatch) {
		fmt.Fprintln(os.Stderr, "The persisted index cannot be used. Run `chunkstore reset` to move it aside and start empty.")
	}
	os.Exit(1)
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	noWatch := fs.Bool("no-watch", false, "do not watch the configured drop folders")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, logger := setup(*configPath, *debug)
	defer func() { _ = logger.Sync() }()
	logger.Info("Config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug || *debug))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		exitInit(err)
	}
	defer components.Close()

	var watchSvc server.WatchService
	if !*noWatch && len(cfg.Watch.Directories) > 0 {
		w := newWatcher(cfg, components.Indexer, logger)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
		go w.SyncExistingFiles(ctx)
		watchSvc = w
	}

	srv := server.NewServer(components.Store, cfg, logger, watchSvc)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}
	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func newWatcher(cfg *config.Config, idx *indexer.Indexer, logger *zap.Logger) *watcher.Watcher {
	return watcher.NewWatcher(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(ctx context.Context, root, path string) {
			res, err := idx.IngestFile(ctx, root, path)
			if err != nil {
				logger.Warn("Watch ingest failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("Watch ingest",
				zap.String("path", res.Path),
				zap.Stringer("outcome", res.Outcome))
		},
		watcher.WithLogger(logger),
	)
}

// metadataFlag collects repeated key=value flags.
type metadataFlag map[string]string

func (m metadataFlag) String() string {
	return models.Filter(m).String()
}

func (m metadataFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	k = strings.TrimSpace(k)
	if !ok || k == "" || val == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	m[k] = val
	return nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	root := fs.String("root", "", "metadata root for a single file (subject/chapter are derived relative to it)")
	docID := fs.String("id", "", "document id when reading text from stdin")
	outputFormat := fs.String("output", "text", "output format: text or json")
	meta := metadataFlag{}
	fs.Var(meta, "meta", "metadata key=value for stdin text (repeatable)")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: chunkstore ingest [flags] <file|directory|->")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, logger := setup(*configPath, false)
	defer func() { _ = logger.Sync() }()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		exitInit(err)
	}
	defer components.Close()

	if path == "-" {
		text, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Read stdin: %v\n", err)
			os.Exit(1)
		}
		res, err := components.Store.IngestDocument(ctx, &models.IngestRequest{
			DocumentID: *docID,
			Text:       indexer.Preprocess(string(text)),
			Metadata:   meta,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
			os.Exit(1)
		}
		if format == cli.OutputJSON {
			_ = json.NewEncoder(os.Stdout).Encode(res)
		} else {
			fmt.Printf("Ingested %d entries (document %s)\n", res.EntryCount, res.DocumentID)
		}
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		sum, err := components.Indexer.IngestDirectory(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingesting directory failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteDirectorySummary(os.Stdout, path, sum, format)
		return
	}
	res, err := components.Indexer.IngestFile(ctx, *root, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteFileResult(os.Stdout, res, format)
}

// reorderArgs moves flags that appear after positional arguments to the front so
// flag.Parse sees them. flag stops at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 1 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// buildQueryText joins positional args so multi-word queries work with or without quotes.
func buildQueryText(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: chunkstore query [flags] [text]\n\n")
	fmt.Fprintf(fs.Output(), "Give query text, one or more --filter key=value, or both.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  chunkstore query what does the mitochondria do
  chunkstore query --filter subject=biology
  chunkstore query --filter subject=biology --filter chapter=cell powerhouse
  chunkstore query --mode keyword --output json mitochondria
`)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = open the index directly)")
	k := fs.Int("k", 0, "number of chunks (0 = configured default)")
	mode := fs.String("mode", "auto", "retrieval mode: auto, similarity, filter or keyword")
	fuzzy := fs.Bool("fuzzy", false, "typo-tolerant matching in keyword mode")
	outputFormat := fs.String("output", "text", "output format: text or json")
	filter := metadataFlag{}
	fs.Var(filter, "filter", "metadata filter key=value (repeatable)")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	queryMode, err := models.ParseQueryMode(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	req := &models.QueryRequest{
		Text:   buildQueryText(fs.Args()),
		Filter: models.Filter(filter),
		K:      *k,
		Mode:   queryMode,
		Fuzzy:  *fuzzy,
	}
	if req.Text == "" && req.Filter.Empty() {
		printQueryUsage(fs)
		os.Exit(1)
	}

	var res *models.QueryResult
	if *serverURL != "" {
		res, err = queryViaHTTP(*serverURL, req)
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer func() { _ = logger.Sync() }()
		ctx := context.Background()
		components, initErr := initializeComponents(ctx, cfg, logger)
		if initErr != nil {
			exitInit(initErr)
		}
		defer components.Close()
		res, err = components.Store.Query(ctx, req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteQueryResult(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func queryViaHTTP(serverURL string, req *models.QueryRequest) (*models.QueryResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var res models.QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &res, nil
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Index          store.Status           `json:"index"`
	Documents      *int64                 `json:"documents,omitempty"`
	Chunks         *int64                 `json:"chunks,omitempty"`
	DiskUsageBytes *int64                 `json:"disk_usage_bytes,omitempty"`
	Config         map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = open the index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var status *statusResponse
	if *serverURL != "" {
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, logger := setup(*configPath, false)
		defer func() { _ = logger.Sync() }()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			exitInit(err)
		}
		defer components.Close()
		status = &statusResponse{Index: components.Store.Status()}
		docs, err := components.Ledger.CountDocuments(ctx)
		if err == nil {
			status.Documents = &docs
		}
		chunks, err := components.Ledger.CountChunks(ctx)
		if err == nil {
			status.Chunks = &chunks
		}
		if n, err := storage.DiskUsageBytes(cfg.Storage.IndexDir, cfg.Storage.DatabasePath); err == nil {
			status.DiskUsageBytes = &n
		}
	}

	if format == cli.OutputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}
	writeStatusText(os.Stdout, status)
}

func writeStatusText(w io.Writer, s *statusResponse) {
	fmt.Fprintf(w, "initialized:        %t\n", s.Index.Initialized)
	fmt.Fprintf(w, "entries:            %d   # chunks in the vector index\n", s.Index.Entries)
	fmt.Fprintf(w, "generation:         %d   # last persisted snapshot\n", s.Index.Generation)
	if s.Documents != nil {
		fmt.Fprintf(w, "documents:          %d   # ingestion calls recorded in the ledger\n", *s.Documents)
	}
	if s.Chunks != nil {
		fmt.Fprintf(w, "ledger_chunks:      %d\n", *s.Chunks)
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # snapshots + ledger on disk\n", *s.DiskUsageBytes)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "dimensions:         %d\n", s.Index.Dimensions)
	fmt.Fprintf(w, "chunk_size:         %d\n", s.Index.ChunkSize)
	fmt.Fprintf(w, "chunk_overlap:      %d\n", s.Index.ChunkOverlap)
	fmt.Fprintf(w, "keyword_mode:       %t\n", s.Index.KeywordMode)
	if s.Index.IndexDir != "" {
		fmt.Fprintf(w, "index_dir:          %s\n", s.Index.IndexDir)
	}
	keys := make([]string, 0, len(s.Config))
	for k := range s.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-20s%v\n", k+":", s.Config[k])
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// runReset moves the snapshot directory and the ledger aside so the next start is empty.
// Nothing is deleted.
func runReset() {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := setup(*configPath, false)
	defer func() { _ = logger.Sync() }()

	mgr, err := persist.NewManager(cfg.Storage.IndexDir, cfg.Embedding.Dimensions, cfg.Storage.RetainGenerations, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
		os.Exit(1)
	}
	dest, err := mgr.Quarantine()
	switch {
	case err == nil:
		fmt.Printf("Index moved to %s\n", dest)
	case errors.Is(err, models.ErrNotFound):
		fmt.Println("No index directory to reset")
	default:
		fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
		os.Exit(1)
	}
	moved, err := moveLedgerAside(cfg.Storage.DatabasePath, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Moving ledger failed: %v\n", err)
		os.Exit(1)
	}
	for _, p := range moved {
		fmt.Printf("Ledger file moved to %s\n", p)
	}
}

// moveLedgerAside renames the SQLite database and its WAL files to <name>.reset-<unix>.
func moveLedgerAside(dbPath string, now time.Time) ([]string, error) {
	var moved []string
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		dest := fmt.Sprintf("%s.reset-%d", p, now.Unix())
		if err := os.Rename(p, dest); err != nil {
			return moved, err
		}
		moved = append(moved, dest)
	}
	return moved, nil
}

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Ledger   storage.Ledger
	Keyword  keyword.KeywordIndex
	Snapshot *persist.Manager
	Store    *store.Store
	Indexer  *indexer.Indexer
}

// Close releases everything Components owns. The store closes the ledger, the keyword index
// and the embedder it was given.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
		return
	}
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	var base embedding.Embedder
	switch cfg.Embedding.Provider {
	case config.ProviderHash:
		base = embedding.NewHashEmbedder(cfg.Embedding.Dimensions)
	case config.ProviderOpenAI:
		e, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:     cfg.Embedding.ResolvedAPIKey(),
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			MaxRetries: cfg.Embedding.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
		}
		base = embedding.NewBatchEmbedder(e, cfg.Embedding.BatchSize, cfg.Embedding.Concurrency)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", models.ErrConfiguration, cfg.Embedding.Provider)
	}
	return embedding.NewCachedEmbedder(base, cfg.Embedding.CacheSize), nil
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	var err error
	if c.Embedder, err = newEmbedder(cfg); err != nil {
		return nil, err
	}
	if c.Ledger, err = storage.NewSQLiteLedger(cfg.Storage.DatabasePath); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}
	if !cfg.Retrieval.DisableKeyword {
		if c.Keyword, err = keyword.NewBleveIndex(); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
		}
	}
	if c.Snapshot, err = persist.NewManager(cfg.Storage.IndexDir, cfg.Embedding.Dimensions, cfg.Storage.RetainGenerations, logger); err != nil {
		c.Close()
		return nil, err
	}

	opts := []store.Option{
		store.WithLogger(logger),
		store.WithLedger(c.Ledger),
		store.WithPersistence(c.Snapshot),
	}
	if c.Keyword != nil {
		opts = append(opts, store.WithKeywordIndex(c.Keyword))
	}
	st, err := store.New(cfg.StoreConfig(), c.Embedder, opts...)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Store = st
	if err := st.Init(ctx); err != nil {
		c.Close()
		return nil, err
	}
	logger.Info("Store initialized",
		zap.Int("entries", st.Status().Entries),
		zap.Uint64("generation", st.Status().Generation),
		zap.String("embedding_provider", cfg.Embedding.Provider))

	c.Indexer = indexer.NewIndexer(st, c.Ledger, cfg.Watch.Extensions, indexer.WithLogger(logger))
	return c, nil
}

func printUsage() {
	fmt.Println(`chunkstore - chunked semantic document store

Usage:
  chunkstore serve [flags]                   Start the HTTP server and watch drop folders
  chunkstore ingest [flags] <file|dir|->     Chunk, embed and index text
  chunkstore query [flags] [text]            Retrieve chunks by similarity and/or metadata filter
  chunkstore status [flags]                  Show index and ledger status
  chunkstore reset [flags]                   Move the persisted index and ledger aside
  chunkstore version                         Show version
  chunkstore help                            Show this help

Serve Flags:
  --config string    Config file path (default: /usr/local/etc/chunkstore/config.yaml)
  --debug            Enable debug logging
  --no-watch         Do not watch drop folders

Ingest Flags:
  --config string    Config file path
  --root string      Metadata root for a single file
  --id string        Document id for stdin text
  --meta key=value   Metadata for stdin text (repeatable)
  --output string    text or json

Query Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to open the index directly.
  --k int            Number of chunks (default from config)
  --mode string      auto, similarity, filter or keyword
  --filter key=value Metadata filter (repeatable)
  --fuzzy            Typo-tolerant matching in keyword mode
  --output string    text or json

Examples:
  chunkstore serve
  chunkstore ingest ~/notes
  echo "The mitochondria is the powerhouse of the cell." | chunkstore ingest --meta subject=biology -
  chunkstore query --filter subject=biology powerhouse
  chunkstore status --output json`)
}
