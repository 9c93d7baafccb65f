package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/GripQA/client-tools/internal/config"
	"github.com/GripQA/client-tools/internal/logger"
	"github.com/GripQA/client-tools/internal/report"
	"github.com/GripQA/client-tools/internal/service"
)

// configPath resolves the bundled config file. Lambda deployments ship the
// YAML next to the binary.
func configPath() string {
	if p := os.Getenv("GRIP_CONFIG"); p != "" {
		return p
	}
	return "grip.yaml"
}

type handler struct {
	cfg *config.Config
}

// handleScheduledEvent runs one collection pass per scheduled trigger and
// stores the report in S3. Lambda invocations have no terminal to print to,
// so the S3 sink is mandatory here.
func (h *handler) handleScheduledEvent(ctx context.Context, event events.CloudWatchEvent) error {
	log := logger.WithInvocation(ctx, logger.GetLogger())
	log.Info("scheduled collection triggered",
		zap.String("event_id", event.ID),
		zap.Time("event_time", event.Time))

	if h.cfg.Output.S3Bucket == "" {
		return fmt.Errorf("lambda: output.s3_bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(h.cfg.Output.S3Region))
	if err != nil {
		return fmt.Errorf("lambda: load AWS configuration: %w", err)
	}
	store := report.NewS3Store(s3.NewFromConfig(awsCfg), h.cfg.Output.S3Bucket)

	collector := service.NewCollector(h.cfg, nil, store)
	result, err := collector.Run(ctx)
	if err != nil {
		log.Error("collection run failed", zap.Error(err))
		return err
	}
	log.Info("collection run stored",
		zap.String("run_id", result.RunID),
		zap.Int("measurements", len(result.Measurements)))
	return nil
}
