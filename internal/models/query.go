package models

import (
	"fmt"
	"strings"
)

// QueryMode selects the retrieval path.
type QueryMode string

const (
	// ModeAuto picks ModeFilter when only a filter is given and ModeSimilarity when text is given.
	ModeAuto QueryMode = ""
	// ModeFilter returns every entry matching the filter, in insertion order.
	ModeFilter QueryMode = "filter"
	// ModeSimilarity runs k-NN over the query embedding, then post-filters the top k.
	ModeSimilarity QueryMode = "similarity"
	// ModeKeyword runs a keyword match over chunk text, then post-filters the top k.
	ModeKeyword QueryMode = "keyword"
)

// ParseQueryMode parses a mode name; "" and "auto" select ModeAuto.
func ParseQueryMode(s string) (QueryMode, error) {
	switch m := QueryMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "auto", ModeAuto:
		return ModeAuto, nil
	case ModeFilter, ModeSimilarity, ModeKeyword:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, s)
	}
}

// QueryRequest is a retrieval request: free text, a metadata filter, or both.
type QueryRequest struct {
	Text   string    `json:"text,omitempty"`
	Filter Filter    `json:"filter,omitempty"`
	K      int       `json:"k,omitempty"`
	Mode   QueryMode `json:"mode,omitempty"`
	// Fuzzy enables typo-tolerant matching in keyword mode.
	Fuzzy bool `json:"fuzzy,omitempty"`
}

// Normalize trims the text, validates the filter against allowed keys, resolves ModeAuto
// and clamps K to (0, maxK], using defaultK when K is not positive.
func (q *QueryRequest) Normalize(defaultK, maxK int, allowed []string) error {
	q.Text = strings.TrimSpace(q.Text)
	if err := q.Filter.Validate(allowed); err != nil {
		return err
	}
	switch q.Mode {
	case ModeAuto:
		switch {
		case q.Text == "" && q.Filter.Empty():
			return fmt.Errorf("%w: either query text or a metadata filter is required", ErrInvalidQuery)
		case q.Text == "":
			q.Mode = ModeFilter
		default:
			q.Mode = ModeSimilarity
		}
	case ModeFilter:
		if q.Filter.Empty() {
			return fmt.Errorf("%w: filter mode requires a metadata filter", ErrInvalidQuery)
		}
	case ModeSimilarity, ModeKeyword:
		if q.Text == "" {
			return fmt.Errorf("%w: %s mode requires query text", ErrInvalidQuery, q.Mode)
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidQuery, q.Mode)
	}
	if q.K <= 0 {
		q.K = defaultK
	}
	if maxK > 0 && q.K > maxK {
		q.K = maxK
	}
	return nil
}
