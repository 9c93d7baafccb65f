// Package scanner counts requirement markers in free-text issue bodies.
package scanner

import (
	"fmt"
	"regexp"
)

// DefaultPattern matches a requirement tag followed by a numeric id, e.g.
// "REQ-42". The first capture group is the dedup identifier; a pattern
// without a group dedups on the whole match.
const DefaultPattern = `\b(REQ-\d+)\b`

// DedupScope controls how long a matched identifier suppresses further counts.
type DedupScope string

const (
	// DedupPerIssue resets the seen set for every scanned text.
	DedupPerIssue DedupScope = "per_issue"
	// DedupPerRun keeps the seen set for the scanner's lifetime, so a
	// requirement referenced in two different issues counts once.
	DedupPerRun DedupScope = "per_run"
)

// Scanner counts distinct requirement markers in text. A Scanner with
// per-run scope accumulates state across calls and is not safe for
// concurrent use; aggregation runs are single-threaded by design.
type Scanner struct {
	pattern *regexp.Regexp
	scope   DedupScope
	seen    map[string]struct{}
}

// New compiles the marker pattern. An empty pattern selects DefaultPattern.
func New(pattern string, scope DedupScope) (*Scanner, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	if scope == "" {
		scope = DedupPerRun
	}
	if scope != DedupPerIssue && scope != DedupPerRun {
		return nil, fmt.Errorf("scanner: unknown dedup scope %q", scope)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("scanner: bad marker pattern: %w", err)
	}
	return &Scanner{
		pattern: re,
		scope:   scope,
		seen:    make(map[string]struct{}),
	}, nil
}

// Count returns the number of distinct requirement markers in text.
// Empty or unmatched text yields 0; Count never fails.
func (s *Scanner) Count(text string) int {
	if text == "" {
		return 0
	}

	seen := s.seen
	if s.scope == DedupPerIssue {
		seen = make(map[string]struct{})
	}

	n := 0
	for _, m := range s.pattern.FindAllStringSubmatch(text, -1) {
		id := m[0]
		if len(m) > 1 && m[1] != "" {
			id = m[1]
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		n++
	}
	return n
}
