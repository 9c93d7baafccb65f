package main

import (
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/GripQA/client-tools/internal/config"
	"github.com/GripQA/client-tools/internal/logger"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.LogLevel); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	h := &handler{cfg: cfg}
	lambda.Start(h.handleScheduledEvent)
}
