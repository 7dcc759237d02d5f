package models

import "strings"

// Hit is one retrieved chunk. Score is zero in filter mode.
type Hit struct {
	EntryID       string            `json:"entry_id"`
	Text          string            `json:"text"`
	SequenceIndex int               `json:"sequence_index"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Score         float64           `json:"score,omitempty"`
}

// QueryResult is the outcome of a valid query. NoMatch is set when nothing satisfied the
// query; it is a normal outcome, not an error.
type QueryResult struct {
	Mode       QueryMode `json:"mode"`
	Chunks     []Hit     `json:"chunks"`
	NoMatch    bool      `json:"no_match"`
	Candidates int       `json:"candidates"`
	QueryTime  int64     `json:"query_time_ms"`
}

// Texts returns the chunk texts in result order.
func (r *QueryResult) Texts() []string {
	out := make([]string, len(r.Chunks))
	for i, h := range r.Chunks {
		out[i] = h.Text
	}
	return out
}

// Joined returns the chunk texts joined by newlines, the form prompt builders consume.
func (r *QueryResult) Joined() string {
	return strings.Join(r.Texts(), "\n")
}
