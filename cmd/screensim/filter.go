package main

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// keyFilter selects object keys with doublestar globs. A key passes when it
// matches an include pattern, or none are set, and no exclude pattern.
type keyFilter struct {
	includes []string
	excludes []string
}

func newKeyFilter(includes, excludes []string) (keyFilter, error) {
	for _, patterns := range [][]string{includes, excludes} {
		for _, pattern := range patterns {
			if !doublestar.ValidatePattern(pattern) {
				return keyFilter{}, fmt.Errorf("invalid glob pattern %q", pattern)
			}
		}
	}
	return keyFilter{includes: includes, excludes: excludes}, nil
}

func (f keyFilter) allows(key string) bool {
	if len(f.includes) > 0 && !matchAny(f.includes, key) {
		return false
	}
	return !matchAny(f.excludes, key)
}

func (f keyFilter) apply(keys []string) []string {
	out := keys[:0:0]
	for _, key := range keys {
		if f.allows(key) {
			out = append(out, key)
		}
	}
	return out
}

func matchAny(patterns []string, key string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, key)
		if err == nil && matched {
			return true
		}
	}
	return false
}
