package measurement

import (
	"fmt"
	"math"
	"time"
)

// Source identifies the upstream system a measurement was derived from.
type Source string

const (
	SourceJira      Source = "jira"
	SourceSonarQube Source = "sonarqube"
)

// Canonical metric names. The factory rejects anything outside this set.
const (
	OpenDefectCount  = "open_defect_count"
	DefectCount      = "defect_count"
	RequirementCount = "requirement_count"
	IssueCount       = "issue_count"
	CoveragePct      = "coverage_pct"
	LinesOfCode      = "loc"
	CommentLines     = "comment_lines"
	DuplicateLines   = "duplicate_lines"
	Complexity       = "complexity"
	TestCount        = "test_count"
)

var recognizedMetrics = map[string]struct{}{
	OpenDefectCount:  {},
	DefectCount:      {},
	RequirementCount: {},
	IssueCount:       {},
	CoveragePct:      {},
	LinesOfCode:      {},
	CommentLines:     {},
	DuplicateLines:   {},
	Complexity:       {},
	TestCount:        {},
}

// InvalidMetricError reports a metric name outside the recognized set.
type InvalidMetricError struct {
	Name string
}

func (e *InvalidMetricError) Error() string {
	return fmt.Sprintf("measurement: unrecognized metric name %q", e.Name)
}

// InvalidValueError reports a NaN or infinite measurement value.
type InvalidValueError struct {
	Metric string
	Value  float64
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("measurement: non-finite value %v for metric %q", e.Value, e.Metric)
}

// InvalidTimestampError reports a timestamp source that could not be parsed.
type InvalidTimestampError struct {
	Source string
	Err    error
}

func (e *InvalidTimestampError) Error() string {
	return fmt.Sprintf("measurement: cannot parse timestamp %q: %v", e.Source, e.Err)
}

func (e *InvalidTimestampError) Unwrap() error { return e.Err }

// Measurement is the canonical output record consumed by the analytics stage.
// Records are constructed through a Factory and never mutated afterwards.
type Measurement struct {
	MetricName string    `json:"metric_name"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
	ProjectID  string    `json:"project_id"`
	Source     Source    `json:"source"`
}

// Timestamp layouts accepted from upstream systems. Jira emits a zone offset
// without a colon, which RFC 3339 parsing rejects.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02",
}

// Factory builds validated Measurement records. The zero timestamp default is
// fixed at construction so every record of one run shares the same fallback.
type Factory struct {
	defaultTime time.Time
}

// NewFactory returns a factory whose timestamp default is runStart.
func NewFactory(runStart time.Time) *Factory {
	return &Factory{defaultTime: runStart.UTC()}
}

// New builds a Measurement. Validation order: metric name membership, value
// finiteness, then timestamp parsing. An empty tsSource selects the factory's
// default time.
func (f *Factory) New(metric string, value float64, tsSource, projectID string, source Source) (Measurement, error) {
	if _, ok := recognizedMetrics[metric]; !ok {
		return Measurement{}, &InvalidMetricError{Name: metric}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return Measurement{}, &InvalidValueError{Metric: metric, Value: value}
	}

	ts := f.defaultTime
	if tsSource != "" {
		parsed, err := parseTimestamp(tsSource)
		if err != nil {
			return Measurement{}, &InvalidTimestampError{Source: tsSource, Err: err}
		}
		ts = parsed.UTC()
	}

	return Measurement{
		MetricName: metric,
		Value:      value,
		Timestamp:  ts,
		ProjectID:  projectID,
		Source:     source,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
