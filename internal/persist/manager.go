// Package persist saves and loads vector index snapshots as numbered generations
// under a directory, switching the live generation atomically.
package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chunkstore/internal/models"
	"github.com/hyperjump/chunkstore/internal/vector"
	"github.com/hyperjump/chunkstore/pkg/utils"
)

const (
	currentFile  = "CURRENT"
	manifestFile = "manifest.yaml"
	entriesFile  = "entries.bin"
	genPrefix    = "gen-"
	tmpPrefix    = ".tmp-"
)

// Snapshot is the unit of persistence: the full entry set plus chunking parameters.
type Snapshot struct {
	Set          *vector.EntrySet
	ChunkSize    int
	ChunkOverlap int

	// Set by Load.
	Generation uint64
	CreatedAt  time.Time
}

// Manager reads and writes snapshots under a single directory.
type Manager struct {
	dir        string
	dimensions int
	retain     int
	logger     *zap.Logger

	mu         sync.Mutex
	generation atomic.Uint64
}

// NewManager creates a manager for dir. retain is the number of generations kept on disk
// (minimum 1).
func NewManager(dir string, dimensions, retain int, logger *zap.Logger) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: index directory is required", models.ErrConfiguration)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", models.ErrConfiguration, dimensions)
	}
	if retain < 1 {
		retain = 1
	}
	return &Manager{dir: dir, dimensions: dimensions, retain: retain, logger: utils.OrNop(logger)}, nil
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string { return m.dir }

// Generation returns the live generation number, or 0 if nothing was saved or loaded.
func (m *Manager) Generation() uint64 { return m.generation.Load() }

// Save writes snap as a new generation and makes it live. A failed Save leaves the
// previous generation live. Save holds an exclusive lock on the directory and returns
// ErrIndexConflict when the live generation on disk is not the one this manager last
// loaded or saved; the caller should Load and retry.
func (m *Manager) Save(ctx context.Context, snap *Snapshot) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if snap == nil || snap.Set == nil {
		return 0, errors.New("persist: nil snapshot")
	}
	if snap.Set.Dimensions() != m.dimensions {
		return 0, fmt.Errorf("%w: snapshot has %d dimensions, manager has %d", models.ErrDimensionMismatch, snap.Set.Dimensions(), m.dimensions)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return 0, fmt.Errorf("create index dir: %w", err)
	}
	lock, err := lockDir(m.dir)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := lock.release(); err != nil {
			m.logger.Warn("Release index lock failed", zap.Error(err))
		}
	}()
	if err := m.checkLive(); err != nil {
		return 0, err
	}
	m.removeTemps()

	gen, err := m.nextGeneration()
	if err != nil {
		return 0, err
	}

	tmp, err := os.MkdirTemp(m.dir, tmpPrefix+"gen-")
	if err != nil {
		return 0, fmt.Errorf("create temp generation: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	var buf bytes.Buffer
	if err := encodeEntries(&buf, m.dimensions, snap.Set.Entries()); err != nil {
		return 0, err
	}
	if err := writeFileSync(filepath.Join(tmp, entriesFile), buf.Bytes()); err != nil {
		return 0, fmt.Errorf("write entries: %w", err)
	}
	manifest := &Manifest{
		Version:      manifestVersion,
		Generation:   gen,
		Dimensions:   m.dimensions,
		ChunkSize:    snap.ChunkSize,
		ChunkOverlap: snap.ChunkOverlap,
		Count:        snap.Set.Len(),
		CRC32:        crc32.ChecksumIEEE(buf.Bytes()),
		Bytes:        int64(buf.Len()),
		CreatedAt:    time.Now().UTC(),
	}
	if err := writeManifest(filepath.Join(tmp, manifestFile), manifest); err != nil {
		return 0, err
	}
	if err := syncDir(tmp); err != nil {
		return 0, err
	}

	name := genName(gen)
	if err := os.Rename(tmp, filepath.Join(m.dir, name)); err != nil {
		return 0, fmt.Errorf("publish generation: %w", err)
	}
	committed = true
	if err := m.writeCurrent(name); err != nil {
		_ = os.RemoveAll(filepath.Join(m.dir, name))
		return 0, err
	}

	m.generation.Store(gen)
	m.logger.Debug("Snapshot saved",
		zap.Uint64("generation", gen),
		zap.Int("entries", manifest.Count),
		zap.Int64("bytes", manifest.Bytes))
	m.prune(gen)
	return gen, nil
}

// Load reads the live generation. It returns ErrNotFound when nothing was saved yet,
// ErrDimensionMismatch when the snapshot was written with other dimensions and
// ErrCorruptIndex for unreadable content.
func (m *Manager) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.dir); err == nil {
		lock, err := lockDir(m.dir)
		if err != nil {
			return nil, err
		}
		defer func() { _ = lock.release() }()
	}

	raw, err := os.ReadFile(filepath.Join(m.dir, currentFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.generation.Store(0)
			return nil, fmt.Errorf("%w: no snapshot in %s", models.ErrNotFound, m.dir)
		}
		return nil, fmt.Errorf("%w: read %s: %v", models.ErrCorruptIndex, currentFile, err)
	}
	name := strings.TrimSpace(string(raw))
	gen, ok := parseGenName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s names %q", models.ErrCorruptIndex, currentFile, name)
	}
	genDir := filepath.Join(m.dir, name)

	manifest, err := readManifest(filepath.Join(genDir, manifestFile))
	if err != nil {
		return nil, err
	}
	if manifest.Dimensions != m.dimensions {
		return nil, fmt.Errorf("%w: snapshot has %d dimensions, configured %d", models.ErrDimensionMismatch, manifest.Dimensions, m.dimensions)
	}

	data, err := os.ReadFile(filepath.Join(genDir, entriesFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read entries: %v", models.ErrCorruptIndex, err)
	}
	if int64(len(data)) != manifest.Bytes {
		return nil, fmt.Errorf("%w: entries size %d, manifest says %d", models.ErrCorruptIndex, len(data), manifest.Bytes)
	}
	if sum := crc32.ChecksumIEEE(data); sum != manifest.CRC32 {
		return nil, fmt.Errorf("%w: entries checksum %08x, manifest says %08x", models.ErrCorruptIndex, sum, manifest.CRC32)
	}
	entries, err := decodeEntries(data, m.dimensions)
	if err != nil {
		return nil, err
	}
	if len(entries) != manifest.Count {
		return nil, fmt.Errorf("%w: %d entries, manifest says %d", models.ErrCorruptIndex, len(entries), manifest.Count)
	}
	set, err := vector.NewEntrySet(m.dimensions, entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCorruptIndex, err)
	}

	m.generation.Store(gen)
	m.logger.Info("Snapshot loaded",
		zap.String("dir", m.dir),
		zap.Uint64("generation", gen),
		zap.Int("entries", set.Len()))
	return &Snapshot{
		Set:          set,
		ChunkSize:    manifest.ChunkSize,
		ChunkOverlap: manifest.ChunkOverlap,
		Generation:   gen,
		CreatedAt:    manifest.CreatedAt,
	}, nil
}

// Quarantine moves the snapshot directory aside to <dir>.corrupt-<unix> and returns the new path.
// The next Save starts from an empty directory.
func (m *Manager) Quarantine() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := os.Stat(m.dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", models.ErrNotFound, m.dir)
		}
		return "", err
	}
	lock, err := lockDir(m.dir)
	if err != nil {
		return "", err
	}
	defer func() { _ = lock.release() }()
	dest := fmt.Sprintf("%s.corrupt-%d", filepath.Clean(m.dir), time.Now().Unix())
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
			break
		}
		dest = fmt.Sprintf("%s.corrupt-%d-%d", filepath.Clean(m.dir), time.Now().Unix(), i)
	}
	if err := os.Rename(m.dir, dest); err != nil {
		return "", fmt.Errorf("quarantine index dir: %w", err)
	}
	m.generation.Store(0)
	m.logger.Warn("Index directory quarantined", zap.String("from", m.dir), zap.String("to", dest))
	return dest, nil
}

// liveGeneration reads CURRENT. It returns 0 when there is none.
func (m *Manager) liveGeneration() (uint64, error) {
	raw, err := os.ReadFile(filepath.Join(m.dir, currentFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read %s: %w", currentFile, err)
	}
	name := strings.TrimSpace(string(raw))
	gen, ok := parseGenName(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s names %q", models.ErrCorruptIndex, currentFile, name)
	}
	return gen, nil
}

// checkLive fails with ErrIndexConflict unless CURRENT names the generation this
// manager knows about. Must hold the directory lock.
func (m *Manager) checkLive() error {
	live, err := m.liveGeneration()
	if err != nil {
		return err
	}
	if known := m.generation.Load(); live != known {
		return fmt.Errorf("%w: %s is generation %d, expected %d", models.ErrIndexConflict, m.dir, live, known)
	}
	return nil
}

func (m *Manager) writeCurrent(name string) error {
	f, err := os.CreateTemp(m.dir, tmpPrefix+currentFile+"-")
	if err != nil {
		return fmt.Errorf("create temp %s: %w", currentFile, err)
	}
	tmp := f.Name()
	_, werr := f.WriteString(name + "\n")
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", currentFile, werr)
	}
	if err := os.Rename(tmp, filepath.Join(m.dir, currentFile)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", currentFile, err)
	}
	return syncDir(m.dir)
}

// nextGeneration returns one past the highest generation on disk or in memory.
func (m *Manager) nextGeneration() (uint64, error) {
	gens, err := m.generations()
	if err != nil {
		return 0, err
	}
	next := m.generation.Load()
	for _, g := range gens {
		if g > next {
			next = g
		}
	}
	return next + 1, nil
}

func (m *Manager) generations() ([]uint64, error) {
	items, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list index dir: %w", err)
	}
	var gens []uint64
	for _, it := range items {
		if !it.IsDir() {
			continue
		}
		if g, ok := parseGenName(it.Name()); ok {
			gens = append(gens, g)
		}
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i] > gens[j] })
	return gens, nil
}

// prune keeps the live generation and the newest older ones up to m.retain in total.
func (m *Manager) prune(live uint64) {
	gens, err := m.generations()
	if err != nil {
		m.logger.Warn("List generations for pruning failed", zap.Error(err))
		return
	}
	kept := 0
	for _, g := range gens {
		if g <= live && kept < m.retain {
			kept++
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.dir, genName(g))); err != nil {
			m.logger.Warn("Remove old generation failed", zap.Uint64("generation", g), zap.Error(err))
		}
	}
}

func (m *Manager) removeTemps() {
	items, err := os.ReadDir(m.dir)
	if err != nil {
		return
	}
	for _, it := range items {
		if strings.HasPrefix(it.Name(), tmpPrefix) {
			_ = os.RemoveAll(filepath.Join(m.dir, it.Name()))
		}
	}
}

func genName(gen uint64) string {
	return fmt.Sprintf("%s%020d", genPrefix, gen)
}

func parseGenName(name string) (uint64, bool) {
	if !strings.HasPrefix(name, genPrefix) || len(name) != len(genPrefix)+20 {
		return 0, false
	}
	g, err := strconv.ParseUint(name[len(genPrefix):], 10, 64)
	if err != nil || g == 0 {
		return 0, false
	}
	return g, true
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	return nil
}
