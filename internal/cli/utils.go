// Package cli provides output helpers for the chunkstore command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/chunkstore/internal/indexer"
	"github.com/hyperjump/chunkstore/internal/models"
	"github.com/hyperjump/chunkstore/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat parses "text" or "json"; "" selects OutputText.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

const previewLen = 200

// WriteQueryResult writes a query result to w in the given format.
func WriteQueryResult(w io.Writer, res *models.QueryResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.NoMatch {
		fmt.Fprintf(w, "No matching chunks (%s mode, %dms)\n", res.Mode, res.QueryTime)
		return nil
	}
	fmt.Fprintf(w, "\nFound %d chunks in %dms (%s mode, %d candidates)\n\n",
		len(res.Chunks), res.QueryTime, res.Mode, res.Candidates)
	for i, h := range res.Chunks {
		writeHit(w, i+1, &h, res.Mode)
	}
	return nil
}

func writeHit(w io.Writer, rank int, h *models.Hit, mode models.QueryMode) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	if mode == models.ModeFilter {
		fmt.Fprintf(w, "#%d | Entry: %s | Seq: %d\n", rank, h.EntryID, h.SequenceIndex)
	} else {
		fmt.Fprintf(w, "#%d | Score: %.4f | Entry: %s | Seq: %d\n", rank, h.Score, h.EntryID, h.SequenceIndex)
	}
	if meta := formatMetadata(h.Metadata); meta != "" {
		fmt.Fprintf(w, "Metadata: %s\n", meta)
	}
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(h.Text, previewLen))
}

// WriteDirectorySummary writes the outcome of a directory ingestion.
func WriteDirectorySummary(w io.Writer, dir string, sum *indexer.DirectorySummary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, sum)
	}
	fmt.Fprintf(w, "Ingested %s: %d files (%d entries), %d unchanged, %d changed since ingestion, %d empty\n",
		dir, sum.Ingested, sum.Entries, sum.Unchanged, sum.Stale, sum.Empty)
	return nil
}

// WriteFileResult writes the outcome of a single file ingestion.
func WriteFileResult(w io.Writer, res *indexer.FileResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	switch res.Outcome {
	case indexer.Ingested:
		fmt.Fprintf(w, "Ingested %s: %d entries (document %s)\n", res.Path, res.Result.EntryCount, res.Result.DocumentID)
	default:
		fmt.Fprintf(w, "Skipped %s: %s\n", res.Path, res.Outcome)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatMetadata renders metadata with sorted keys.
func formatMetadata(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, " ")
}
