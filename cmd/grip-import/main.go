package main

import (
	"context"
	"log"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/GripQA/client-tools/internal/config"
	"github.com/GripQA/client-tools/internal/logger"
	"github.com/GripQA/client-tools/internal/report"
	"github.com/GripQA/client-tools/internal/service"
)

// The config path comes from the environment; argument parsing is the
// caller's concern, not this binary's.
const configEnv = "GRIP_CONFIG"

func main() {
	_ = godotenv.Load()

	path := os.Getenv(configEnv)
	if path == "" {
		path = "grip.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	sinks := []report.Sink{report.WriterSink{}}
	if cfg.Output.Basename != "" {
		sinks = append(sinks, report.NewFileSink(cfg.Output.Basename))
	}
	if cfg.Output.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Output.S3Region))
		if err != nil {
			logger.GetLogger().Fatal("failed to load AWS configuration", zap.Error(err))
		}
		sinks = append(sinks, report.NewS3Store(s3.NewFromConfig(awsCfg), cfg.Output.S3Bucket))
	}

	collector := service.NewCollector(cfg, nil, sinks...)
	result, err := collector.Run(ctx)
	if err != nil {
		logger.GetLogger().Fatal("collection run failed", zap.Error(err))
	}
	logger.GetLogger().Info("collection run finished",
		zap.String("run_id", result.RunID),
		zap.Int("measurements", len(result.Measurements)))
}
