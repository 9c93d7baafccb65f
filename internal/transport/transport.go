// Package transport performs authenticated REST GETs and JSON decoding for
// the import clients. It holds no state between calls and never retries;
// retry policy belongs to the aggregation driver.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/GripQA/client-tools/internal/logger"
)

const snippetLimit = 256

// Kind classifies a transport failure.
type Kind int

const (
	// KindStatus is an HTTP response with status >= 400.
	KindStatus Kind = iota
	// KindMalformedResponse is a 2xx response whose body is not valid JSON.
	KindMalformedResponse
	// KindNetwork is a failure before any response arrived.
	KindNetwork
)

// Error is the typed failure raised by the transport layer.
type Error struct {
	Kind        Kind
	StatusCode  int
	BodySnippet string
	Err         error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindMalformedResponse:
		return fmt.Sprintf("transport: malformed response body: %v", e.Err)
	case KindNetwork:
		return fmt.Sprintf("transport: request failed: %v", e.Err)
	default:
		return fmt.Sprintf("transport: status %d: %s", e.StatusCode, e.BodySnippet)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying: network errors,
// 5xx responses and 429 rate limiting. Other 4xx responses are permanent.
func (e *Error) Transient() bool {
	if e.Kind == KindNetwork {
		return true
	}
	return e.Kind == KindStatus && (e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests)
}

// NotFound reports a 404-class response, used by the adapter's profile probe.
func (e *Error) NotFound() bool {
	return e.Kind == KindStatus && (e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone)
}

// Credentials carries optional authentication for upstream requests. A bearer
// token takes precedence over basic auth when both are set.
type Credentials struct {
	Username string
	Password string
	Token    string
}

func (c Credentials) empty() bool {
	return c.Token == "" && c.Username == "" && c.Password == ""
}

// HTTPDoer is the injectable HTTP client surface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches and decodes JSON documents.
type Client struct {
	http HTTPDoer
	log  *zap.Logger
}

// New creates a transport client around the given HTTP doer.
func New(doer HTTPDoer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{http: doer, log: logger.GetLogger()}
}

// GetJSON performs an authenticated GET of rawURL with the given query
// parameters and decodes the JSON body into out. rawURL must be absolute.
func (c *Client) GetJSON(ctx context.Context, rawURL string, creds Credentials, params url.Values, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("transport: not an absolute URL: %q", rawURL)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("transport: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if !creds.empty() {
		if creds.Token != "" {
			req.Header.Set("Authorization", "Bearer "+creds.Token)
		} else {
			req.SetBasicAuth(creds.Username, creds.Password)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLimit))
		c.log.Warn("upstream request failed",
			zap.String("url", u.Redacted()),
			zap.Int("status", resp.StatusCode))
		return &Error{Kind: KindStatus, StatusCode: resp.StatusCode, BodySnippet: string(snippet)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindMalformedResponse, Err: err}
	}
	return nil
}
