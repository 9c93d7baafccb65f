// Package service composes the import pipeline: tracker aggregation, quality
// metrics, and report delivery.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GripQA/client-tools/internal/aggregator"
	"github.com/GripQA/client-tools/internal/config"
	"github.com/GripQA/client-tools/internal/jira"
	"github.com/GripQA/client-tools/internal/logger"
	"github.com/GripQA/client-tools/internal/measurement"
	"github.com/GripQA/client-tools/internal/report"
	"github.com/GripQA/client-tools/internal/sonar"
	"github.com/GripQA/client-tools/internal/transport"
)

// Collector runs one full collection pass across the configured sources and
// delivers the report to every sink. Either every sink receives the complete
// document or the run fails with no output.
type Collector struct {
	cfg   *config.Config
	tr    *transport.Client
	sinks []report.Sink
}

// NewCollector builds a collector. A nil doer selects the default HTTP client.
func NewCollector(cfg *config.Config, doer transport.HTTPDoer, sinks ...report.Sink) *Collector {
	if len(sinks) == 0 {
		sinks = []report.Sink{report.WriterSink{}}
	}
	return &Collector{
		cfg:   cfg,
		tr:    transport.New(doer),
		sinks: sinks,
	}
}

// Run executes one collection pass and writes the serialized report.
func (c *Collector) Run(ctx context.Context) (*aggregator.Result, error) {
	result, err := c.collect(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := report.Marshal(result.Measurements)
	if err != nil {
		return nil, fmt.Errorf("collector: serialize report: %w", err)
	}
	for _, sink := range c.sinks {
		if err := sink.Write(ctx, result.RunID, doc); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (c *Collector) collect(ctx context.Context) (*aggregator.Result, error) {
	var result *aggregator.Result

	if c.cfg.Jira.BaseURL != "" {
		adapter, err := jira.NewAdapter(c.tr, jira.Options{
			BaseURL: c.cfg.Jira.BaseURL,
			Credentials: transport.Credentials{
				Username: c.cfg.Jira.Username,
				Password: c.cfg.Jira.Password,
				Token:    c.cfg.Jira.Token,
			},
			VersionHint: c.cfg.Jira.APIVersion,
			PageSize:    c.cfg.Jira.PageSize,
		})
		if err != nil {
			return nil, err
		}
		agg, err := aggregator.New(adapter, c.cfg.Jira, c.cfg.Scanner)
		if err != nil {
			return nil, err
		}
		result, err = agg.Run(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		result = &aggregator.Result{
			RunID:     uuid.NewString(),
			StartedAt: time.Now().UTC(),
		}
	}

	if c.cfg.Sonar.BaseURL != "" {
		client := sonar.New(c.tr, c.cfg.Sonar.BaseURL, c.cfg.Sonar.Project, transport.Credentials{
			Username: c.cfg.Sonar.Username,
			Password: c.cfg.Sonar.Password,
			Token:    c.cfg.Sonar.Token,
		})
		factory := measurement.NewFactory(result.StartedAt)
		ms, err := client.Measurements(ctx, factory)
		if err != nil {
			return nil, err
		}
		result.Measurements = append(result.Measurements, ms...)
	}

	logger.WithRun(result.RunID).Info("collection complete",
		zap.Int("measurements", len(result.Measurements)))
	return result, nil
}
