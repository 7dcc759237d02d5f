// Package chunk splits text into overlapping fixed-size chunks.
package chunk

import (
	"fmt"

	"github.com/hyperjump/chunkstore/internal/models"
)

// Chunker splits text into overlapping windows counted in runes.
type Chunker struct {
	size    int
	overlap int
}

// New creates a chunker. Size must be positive and overlap must satisfy 0 <= overlap < size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be positive, got %d", models.ErrConfiguration, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk_overlap must be in [0, %d), got %d", models.ErrConfiguration, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the chunk size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes shared by adjacent chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Split returns the chunks of text in order. Chunk i starts at rune i*(size-overlap); the last
// chunk ends at the end of text and may be shorter than size. Each chunk gets its own copy of
// metadata. Empty text yields nil.
func (c *Chunker) Split(text string, metadata map[string]string) []models.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.size - c.overlap
	chunks := make([]models.Chunk, 0, len(runes)/step+1)
	for start := 0; ; start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, models.Chunk{
			Text:          string(runes[start:end]),
			SequenceIndex: len(chunks),
			Metadata:      models.CloneMetadata(metadata),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Reassemble concatenates chunks produced with the given overlap, dropping the duplicated
// prefix of every chunk after the first. Reassemble(c.Split(t, m), c.Overlap()) == t.
func Reassemble(chunks []models.Chunk, overlap int) string {
	var out []rune
	for i, ch := range chunks {
		r := []rune(ch.Text)
		if i > 0 {
			if overlap > len(r) {
				overlap = len(r)
			}
			r = r[overlap:]
		}
		out = append(out, r...)
	}
	return string(out)
}
