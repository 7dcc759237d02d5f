package models

import (
	"fmt"
	"sort"
	"strings"
)

// Filter is a conjunction of equality constraints over entry metadata.
// An empty filter matches every entry.
type Filter map[string]string

// Matches reports whether metadata satisfies every constraint in f.
func (f Filter) Matches(metadata map[string]string) bool {
	for k, want := range f {
		got, ok := metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Empty reports whether f has no constraints.
func (f Filter) Empty() bool {
	return len(f) == 0
}

// Validate checks that every key is allowed and every value is non-empty.
// A nil or empty allowed list accepts any key.
func (f Filter) Validate(allowed []string) error {
	for k, v := range f {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%w: empty filter key", ErrInvalidQuery)
		}
		if v == "" {
			return fmt.Errorf("%w: empty value for filter key %q", ErrInvalidQuery, k)
		}
		if len(allowed) > 0 && !containsKey(allowed, k) {
			return fmt.Errorf("%w: unknown filter key %q (allowed: %s)", ErrInvalidQuery, k, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// String renders f with sorted keys, e.g. "chapter=cell,subject=biology".
func (f Filter) String() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + f[k]
	}
	return strings.Join(parts, ",")
}

func containsKey(keys []string, k string) bool {
	for _, a := range keys {
		if a == k {
			return true
		}
	}
	return false
}
