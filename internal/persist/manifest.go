package persist

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/chunkstore/internal/models"
)

const manifestVersion = 1

// Manifest describes one generation. It is written next to entries.bin.
type Manifest struct {
	Version      int       `yaml:"version"`
	Generation   uint64    `yaml:"generation"`
	Dimensions   int       `yaml:"dimensions"`
	ChunkSize    int       `yaml:"chunk_size"`
	ChunkOverlap int       `yaml:"chunk_overlap"`
	Count        int       `yaml:"count"`
	CRC32        uint32    `yaml:"crc32"`
	Bytes        int64     `yaml:"bytes"`
	CreatedAt    time.Time `yaml:"created_at"`
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %v", models.ErrCorruptIndex, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %v", models.ErrCorruptIndex, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("%w: unsupported manifest version %d", models.ErrCorruptIndex, m.Version)
	}
	if m.Dimensions <= 0 || m.Count < 0 || m.Bytes < 0 {
		return nil, fmt.Errorf("%w: invalid manifest values", models.ErrCorruptIndex)
	}
	return &m, nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return writeFileSync(path, data)
}
