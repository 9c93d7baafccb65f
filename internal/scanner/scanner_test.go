package scanner

import "testing"

func TestCountDedupsWithinText(t *testing.T) {
	s, err := New("", DedupPerIssue)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := s.Count("fixes REQ-1 and also REQ-1 again"); got != 1 {
		t.Errorf("expected 1 for duplicate marker, got %d", got)
	}
	if got := s.Count("covers REQ-1 and REQ-2"); got != 2 {
		t.Errorf("expected 2 for distinct markers, got %d", got)
	}
}

func TestCountPerIssueScopeResetsBetweenTexts(t *testing.T) {
	s, err := New("", DedupPerIssue)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := s.Count("REQ-7"); got != 1 {
		t.Fatalf("first text: expected 1, got %d", got)
	}
	if got := s.Count("REQ-7"); got != 1 {
		t.Errorf("second text: expected 1 with per-issue scope, got %d", got)
	}
}

func TestCountPerRunScopeSpansTexts(t *testing.T) {
	s, err := New("", DedupPerRun)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := s.Count("REQ-7"); got != 1 {
		t.Fatalf("first text: expected 1, got %d", got)
	}
	if got := s.Count("REQ-7 and REQ-8"); got != 1 {
		t.Errorf("second text: expected only the new marker to count, got %d", got)
	}
}

func TestCountEmptyAndUnmatchedText(t *testing.T) {
	s, err := New("", DedupPerIssue)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := s.Count(""); got != 0 {
		t.Errorf("empty text: expected 0, got %d", got)
	}
	if got := s.Count("no markers here"); got != 0 {
		t.Errorf("unmatched text: expected 0, got %d", got)
	}
}

func TestCustomPatternWithoutGroup(t *testing.T) {
	// A pattern without a capture group dedups on the whole match.
	s, err := New(`#\d+`, DedupPerIssue)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := s.Count("see #12, #13 and #12"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New("(unclosed", DedupPerIssue); err == nil {
		t.Error("expected error for invalid pattern")
	}
	if _, err := New("", DedupScope("weekly")); err == nil {
		t.Error("expected error for unknown dedup scope")
	}
}
