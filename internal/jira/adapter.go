// Package jira hides the differences between issue tracker API revisions
// behind one revision-independent query surface.
package jira

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/GripQA/client-tools/internal/logger"
	"github.com/GripQA/client-tools/internal/model"
	"github.com/GripQA/client-tools/internal/transport"
)

// DefaultPageSize bounds one search page when the configuration doesn't.
const DefaultPageSize = 50

// UnsupportedAPIError means no configured profile answered the metadata
// probe. This is fatal to an aggregation run and never retried.
type UnsupportedAPIError struct {
	Probed []string
}

func (e *UnsupportedAPIError) Error() string {
	return fmt.Sprintf("jira: no supported API revision found (probed %s)", strings.Join(e.Probed, ", "))
}

// Adapter queries one tracker installation through a resolved APIProfile.
type Adapter struct {
	base     string
	creds    transport.Credentials
	tr       *transport.Client
	pageSize int
	profile  *APIProfile
	log      *zap.Logger
}

// Options configures an Adapter.
type Options struct {
	BaseURL     string
	Credentials transport.Credentials
	// VersionHint pins a profile by name and skips the capability probe.
	VersionHint string
	PageSize    int
}

// NewAdapter builds an unresolved adapter. Call Resolve before querying.
func NewAdapter(tr *transport.Client, opts Options) (*Adapter, error) {
	base := strings.TrimRight(opts.BaseURL, "/") + "/"
	if base == "/" {
		return nil, errors.New("jira: base URL is required")
	}
	size := opts.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	a := &Adapter{
		base:     base,
		creds:    opts.Credentials,
		tr:       tr,
		pageSize: size,
		log:      logger.GetLogger(),
	}
	if opts.VersionHint != "" {
		p := profileByName(opts.VersionHint)
		if p == nil {
			return nil, &UnsupportedAPIError{Probed: []string{opts.VersionHint}}
		}
		a.profile = p
	}
	return a, nil
}

// Resolve selects an APIProfile. With a version hint it is a no-op;
// otherwise it probes each profile's field-metadata endpoint newest-first,
// stepping to the next older profile on a 404-class answer. Any other
// transport failure is returned as-is so the caller's retry policy applies
// without skipping profile tiers.
func (a *Adapter) Resolve(ctx context.Context) error {
	if a.profile != nil {
		return nil
	}
	probed := make([]string, 0, len(profiles))
	for i := range profiles {
		p := &profiles[i]
		probed = append(probed, p.Name)
		var fields []fieldDescriptor
		err := a.tr.GetJSON(ctx, a.base+p.APIPath+p.FieldsEndpoint, a.creds, nil, &fields)
		if err == nil {
			a.log.Info("resolved tracker API revision", zap.String("revision", p.Name))
			a.profile = p
			return nil
		}
		var terr *transport.Error
		if errors.As(err, &terr) && terr.NotFound() {
			a.log.Debug("API revision not present, falling back",
				zap.String("revision", p.Name),
				zap.Int("status", terr.StatusCode))
			continue
		}
		return err
	}
	return &UnsupportedAPIError{Probed: probed}
}

// ProfileName returns the resolved revision name, or "" before Resolve.
func (a *Adapter) ProfileName() string {
	if a.profile == nil {
		return ""
	}
	return a.profile.Name
}

type fieldDescriptor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Schema struct {
		Type string `json:"type"`
	} `json:"schema"`
	AllowedValues []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"allowedValues"`
}

// FieldMetadata returns the tracker's field descriptions keyed by name.
func (a *Adapter) FieldMetadata(ctx context.Context) (model.FieldMetadata, error) {
	if a.profile == nil {
		return nil, errors.New("jira: adapter not resolved")
	}
	var fields []fieldDescriptor
	if err := a.tr.GetJSON(ctx, a.base+a.profile.APIPath+a.profile.FieldsEndpoint, a.creds, nil, &fields); err != nil {
		return nil, err
	}
	meta := make(model.FieldMetadata, len(fields))
	for _, f := range fields {
		info := model.FieldInfo{ID: f.ID, Type: f.Schema.Type}
		for _, v := range f.AllowedValues {
			name := v.Name
			if name == "" {
				name = v.Value
			}
			if name != "" {
				info.Values = append(info.Values, name)
			}
		}
		meta[f.Name] = info
	}
	return meta, nil
}

type searchResponse struct {
	StartAt    int              `json:"startAt"`
	MaxResults int              `json:"maxResults"`
	Total      int              `json:"total"`
	Issues     []map[string]any `json:"issues"`
}

// SearchIssues fetches one page of the given query. The returned token is
// opaque to callers; an empty token starts from the beginning, an empty
// next-token marks the end of the result set.
func (a *Adapter) SearchIssues(ctx context.Context, query, pageToken string) ([]model.Issue, string, error) {
	if a.profile == nil {
		return nil, "", errors.New("jira: adapter not resolved")
	}
	offset, err := decodeToken(pageToken)
	if err != nil {
		return nil, "", err
	}

	params := url.Values{}
	params.Set("jql", query)
	params.Set("startAt", strconv.Itoa(offset))
	params.Set("maxResults", strconv.Itoa(a.pageSize))

	var resp searchResponse
	u := a.base + a.profile.APIPath + a.profile.SearchEndpoint
	if err := a.tr.GetJSON(ctx, u, a.creds, params, &resp); err != nil {
		return nil, "", err
	}

	issues := make([]model.Issue, 0, len(resp.Issues))
	for _, raw := range resp.Issues {
		issues = append(issues, a.extractIssue(raw))
	}

	next := ""
	if a.profile.NativePaging && resp.Total > 0 {
		if offset+len(resp.Issues) < resp.Total && len(resp.Issues) > 0 {
			next = encodeToken(offset + len(resp.Issues))
		}
	} else if len(resp.Issues) >= a.pageSize {
		// Offset emulation: a full page may have more behind it, a short
		// page is the end.
		next = encodeToken(offset + len(resp.Issues))
	}
	return issues, next, nil
}

// extractIssue maps one raw issue into the normalized model using the
// profile's field paths. Optional fields degrade to the unknown sentinel.
func (a *Adapter) extractIssue(raw map[string]any) model.Issue {
	paths := a.profile.Paths
	summary := stringAt(raw, paths[fieldSummary])
	descr := stringAt(raw, paths[fieldDescription])
	body := summary
	if descr != "" {
		if body != "" {
			body += "\n"
		}
		body += descr
	}
	return model.Issue{
		ID:         stringAt(raw, paths[fieldID]),
		Type:       model.TypeUnknown,
		TypeName:   stringOr(raw, paths[fieldType], model.UnknownSentinel),
		Status:     stringOr(raw, paths[fieldStatus], model.UnknownSentinel),
		Resolution: stringOr(raw, paths[fieldResolution], model.UnknownSentinel),
		Priority:   stringOr(raw, paths[fieldPriority], model.UnknownSentinel),
		CreatedAt:  stringAt(raw, paths[fieldCreated]),
		TextBody:   body,
	}
}

func stringAt(m map[string]any, path []string) string {
	cur := any(m)
	for _, key := range path {
		node, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur, ok = node[key]
		if !ok {
			return ""
		}
	}
	s, _ := cur.(string)
	return s
}

func stringOr(m map[string]any, path []string, fallback string) string {
	if s := stringAt(m, path); s != "" {
		return s
	}
	return fallback
}

func encodeToken(offset int) string { return strconv.Itoa(offset) }

func decodeToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("jira: invalid page token %q", token)
	}
	return n, nil
}
