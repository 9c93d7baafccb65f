// Package sonar converts completed SonarQube analysis results into canonical
// measurements. It assumes the analysis has already run and been stored;
// triggering analyses is out of scope.
package sonar

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/GripQA/client-tools/internal/logger"
	"github.com/GripQA/client-tools/internal/measurement"
	"github.com/GripQA/client-tools/internal/transport"
)

// metricNames maps SonarQube metric keys to canonical metric names. Keys not
// in this table are skipped with a log line rather than failing the run.
var metricNames = map[string]string{
	"coverage":         measurement.CoveragePct,
	"ncloc":            measurement.LinesOfCode,
	"lines":            measurement.CommentLines,
	"duplicated_lines": measurement.DuplicateLines,
	"complexity":       measurement.Complexity,
	"tests":            measurement.TestCount,
}

// Client queries one project's analysis metrics.
type Client struct {
	base    string
	project string
	creds   transport.Credentials
	tr      *transport.Client
	log     *zap.Logger
}

// New builds a sonar client for the given server and project key.
func New(tr *transport.Client, baseURL, project string, creds transport.Credentials) *Client {
	return &Client{
		base:    strings.TrimRight(baseURL, "/") + "/",
		project: project,
		creds:   creds,
		tr:      tr,
		log:     logger.GetLogger(),
	}
}

type resource struct {
	Date string `json:"date"`
	Msr  []struct {
		Key string  `json:"key"`
		Val float64 `json:"val"`
	} `json:"msr"`
}

// Measurements fetches the project's analysis metrics and converts each one.
// All records share the analysis date as their timestamp.
func (c *Client) Measurements(ctx context.Context, factory *measurement.Factory) ([]measurement.Measurement, error) {
	keys := make([]string, 0, len(metricNames))
	for k := range metricNames {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := url.Values{}
	params.Set("resource", c.project)
	params.Set("scopes", "PRJ")
	params.Set("metrics", strings.Join(keys, ","))
	params.Set("format", "json")

	var resources []resource
	if err := c.tr.GetJSON(ctx, c.base+"api/resources", c.creds, params, &resources); err != nil {
		return nil, err
	}
	if len(resources) == 0 {
		return nil, fmt.Errorf("sonar: no analysis results for project %q", c.project)
	}

	res := resources[0]
	out := make([]measurement.Measurement, 0, len(res.Msr))
	for _, msr := range res.Msr {
		name, ok := metricNames[msr.Key]
		if !ok {
			c.log.Info("skipping unmapped sonar metric", zap.String("key", msr.Key))
			continue
		}
		m, err := factory.New(name, msr.Val, res.Date, c.project, measurement.SourceSonarQube)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
