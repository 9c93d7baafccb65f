package jira

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/GripQA/client-tools/internal/model"
	"github.com/GripQA/client-tools/internal/transport"
)

type mockDoer struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockDoer) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

const fieldsBody = `[
	{"id": "issuetype", "name": "Issue Type", "schema": {"type": "issuetype"},
	 "allowedValues": [{"name": "Bug"}, {"name": "Story"}, {"name": "Task"}]},
	{"id": "priority", "name": "Priority", "schema": {"type": "priority"}}
]`

func newTestAdapter(t *testing.T, doer transport.HTTPDoer, opts Options) *Adapter {
	t.Helper()
	if opts.BaseURL == "" {
		opts.BaseURL = "https://tracker.example.com"
	}
	a, err := NewAdapter(transport.New(doer), opts)
	if err != nil {
		t.Fatalf("NewAdapter failed: %v", err)
	}
	return a
}

func TestResolveFallsBackExactlyOneTier(t *testing.T) {
	doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.Contains(req.URL.Path, "/rest/api/2/field"):
			return jsonResponse(404, `not here`), nil
		case strings.Contains(req.URL.Path, "/rest/api/1/field"):
			return jsonResponse(200, fieldsBody), nil
		}
		t.Errorf("unexpected probe of %s", req.URL.Path)
		return jsonResponse(500, ``), nil
	}}

	a := newTestAdapter(t, doer, Options{})
	if err := a.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if a.ProfileName() != "1" {
		t.Errorf("expected profile 1 after one fallback, got %q", a.ProfileName())
	}
}

func TestResolveExhaustionIsUnsupported(t *testing.T) {
	doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(404, `nope`), nil
	}}

	a := newTestAdapter(t, doer, Options{})
	err := a.Resolve(context.Background())

	var unsupported *UnsupportedAPIError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedAPIError, got %v", err)
	}
	if len(unsupported.Probed) != 3 {
		t.Errorf("expected all 3 profiles probed, got %v", unsupported.Probed)
	}
}

func TestResolveSurfacesTransientProbeFailure(t *testing.T) {
	doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(503, `busy`), nil
	}}

	a := newTestAdapter(t, doer, Options{})
	err := a.Resolve(context.Background())

	// A 5xx during the probe is not a fallback signal; it surfaces so the
	// caller's retry policy applies to the same tier.
	var terr *transport.Error
	if !errors.As(err, &terr) || terr.StatusCode != 503 {
		t.Fatalf("expected transport 503, got %v", err)
	}
}

func TestVersionHintSkipsProbe(t *testing.T) {
	doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		t.Error("no request expected with a version hint")
		return nil, errors.New("unreachable")
	}}

	a := newTestAdapter(t, doer, Options{VersionHint: "2"})
	if err := a.Resolve(context.Background()); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if a.ProfileName() != "2" {
		t.Errorf("expected pinned profile 2, got %q", a.ProfileName())
	}
}

func TestUnknownVersionHintRejected(t *testing.T) {
	_, err := NewAdapter(transport.New(&mockDoer{}), Options{
		BaseURL:     "https://tracker.example.com",
		VersionHint: "9",
	})
	var unsupported *UnsupportedAPIError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedAPIError for unknown hint, got %v", err)
	}
}

func searchBody(startAt, total int, issues ...string) string {
	return fmt.Sprintf(`{"startAt": %d, "maxResults": 50, "total": %d, "issues": [%s]}`,
		startAt, total, strings.Join(issues, ","))
}

func v2Issue(key, issueType, status string) string {
	return fmt.Sprintf(`{
		"key": %q,
		"fields": {
			"issuetype": {"name": %q},
			"status": {"name": %q},
			"priority": {"name": "Major"},
			"resolution": {"name": "Fixed"},
			"created": "2015-02-10T08:30:00.000+0000",
			"summary": "a summary",
			"description": "a description"
		}
	}`, key, issueType, status)
}

func TestSearchIssuesNativePaging(t *testing.T) {
	doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		switch req.URL.Query().Get("startAt") {
		case "0":
			return jsonResponse(200, searchBody(0, 3,
				v2Issue("PROJ-1", "Bug", "Open"),
				v2Issue("PROJ-2", "Bug", "Closed"))), nil
		case "2":
			return jsonResponse(200, searchBody(2, 3, v2Issue("PROJ-3", "Task", "Open"))), nil
		}
		t.Errorf("unexpected startAt %q", req.URL.Query().Get("startAt"))
		return jsonResponse(500, ``), nil
	}}

	a := newTestAdapter(t, doer, Options{VersionHint: "2", PageSize: 2})

	first, token, err := a.SearchIssues(context.Background(), "project=PROJ", "")
	if err != nil {
		t.Fatalf("first page failed: %v", err)
	}
	if len(first) != 2 || token == "" {
		t.Fatalf("expected full first page with next token, got %d issues, token %q", len(first), token)
	}
	if first[0].ID != "PROJ-1" || first[0].TypeName != "Bug" || first[0].Status != "Open" {
		t.Errorf("unexpected first issue: %+v", first[0])
	}
	if !strings.Contains(first[0].TextBody, "a summary") || !strings.Contains(first[0].TextBody, "a description") {
		t.Errorf("expected concatenated text body, got %q", first[0].TextBody)
	}

	second, token, err := a.SearchIssues(context.Background(), "project=PROJ", token)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if len(second) != 1 || token != "" {
		t.Errorf("expected final page of 1 with empty token, got %d issues, token %q", len(second), token)
	}
}

func TestSearchIssuesOffsetEmulation(t *testing.T) {
	calls := 0
	doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		calls++
		if req.URL.Query().Get("startAt") == "0" {
			// Full page, no total counter: the adapter must keep going.
			return jsonResponse(200, fmt.Sprintf(`{"issues": [%s, %s]}`,
				alpha1Issue("OLD-1", "Bug"), alpha1Issue("OLD-2", "Task"))), nil
		}
		// Short page terminates the chain.
		return jsonResponse(200, fmt.Sprintf(`{"issues": [%s]}`, alpha1Issue("OLD-3", "Story"))), nil
	}}

	a := newTestAdapter(t, doer, Options{VersionHint: "2.0.alpha1", PageSize: 2})

	first, token, err := a.SearchIssues(context.Background(), "project=OLD", "")
	if err != nil {
		t.Fatalf("first page failed: %v", err)
	}
	if len(first) != 2 || token != "2" {
		t.Fatalf("expected emulated token 2, got %d issues, token %q", len(first), token)
	}

	second, token, err := a.SearchIssues(context.Background(), "project=OLD", token)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if len(second) != 1 || token != "" {
		t.Errorf("expected short final page, got %d issues, token %q", len(second), token)
	}
	if calls != 2 {
		t.Errorf("expected 2 requests, got %d", calls)
	}
}

func alpha1Issue(key, issueType string) string {
	return fmt.Sprintf(`{
		"key": %q,
		"fields": {
			"issuetype": {"value": {"name": %q}},
			"status": {"value": {"name": "Open"}},
			"created": {"value": "2010-06-01T00:00:00.000+0000"},
			"summary": {"value": "old summary"},
			"description": {"value": "old description"}
		}
	}`, key, issueType)
}

func TestExtractAlpha1ValueEnvelopes(t *testing.T) {
	doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, fmt.Sprintf(`{"issues": [%s]}`, alpha1Issue("OLD-9", "Bug"))), nil
	}}

	a := newTestAdapter(t, doer, Options{VersionHint: "2.0.alpha1", PageSize: 50})
	issues, _, err := a.SearchIssues(context.Background(), "project=OLD", "")
	if err != nil {
		t.Fatalf("SearchIssues failed: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(issues))
	}

	got := issues[0]
	if got.TypeName != "Bug" || got.Status != "Open" {
		t.Errorf("envelope extraction failed: %+v", got)
	}
	if got.CreatedAt != "2010-06-01T00:00:00.000+0000" {
		t.Errorf("expected created date, got %q", got.CreatedAt)
	}
	// alpha1 issues carry no priority or resolution at all.
	if got.Priority != model.UnknownSentinel || got.Resolution != model.UnknownSentinel {
		t.Errorf("expected unknown sentinels, got priority=%q resolution=%q", got.Priority, got.Resolution)
	}
}

func TestExtractMissingOptionalFields(t *testing.T) {
	body := `{"issues": [{
		"key": "PROJ-4",
		"fields": {
			"issuetype": {"name": "Bug"},
			"status": {"name": "Open"},
			"created": "2015-02-10T08:30:00.000+0000",
			"summary": "no priority on this one"
		}
	}]}`
	doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, body), nil
	}}

	a := newTestAdapter(t, doer, Options{VersionHint: "2"})
	issues, _, err := a.SearchIssues(context.Background(), "project=PROJ", "")
	if err != nil {
		t.Fatalf("SearchIssues failed: %v", err)
	}
	if issues[0].Priority != model.UnknownSentinel {
		t.Errorf("expected unknown priority sentinel, got %q", issues[0].Priority)
	}
	if issues[0].Resolution != model.UnknownSentinel {
		t.Errorf("expected unknown resolution sentinel, got %q", issues[0].Resolution)
	}
}

func TestFieldMetadata(t *testing.T) {
	doer := &mockDoer{doFunc: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(200, fieldsBody), nil
	}}

	a := newTestAdapter(t, doer, Options{VersionHint: "2"})
	meta, err := a.FieldMetadata(context.Background())
	if err != nil {
		t.Fatalf("FieldMetadata failed: %v", err)
	}

	info, ok := meta["Issue Type"]
	if !ok {
		t.Fatalf("expected Issue Type entry, got %v", meta)
	}
	if info.Type != "issuetype" || len(info.Values) != 3 {
		t.Errorf("unexpected metadata: %+v", info)
	}
}

func TestSearchIssuesRejectsBadToken(t *testing.T) {
	a := newTestAdapter(t, &mockDoer{}, Options{VersionHint: "2"})
	if _, _, err := a.SearchIssues(context.Background(), "project=PROJ", "not-a-token"); err == nil {
		t.Error("expected error for malformed page token")
	}
}
