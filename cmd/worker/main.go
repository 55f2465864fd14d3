package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"tga-backend/internal/bootstrap"
	"tga-backend/internal/shared/config"
	"tga-backend/internal/shared/telemetry"
)

type settings struct {
	region          string
	visibility      time.Duration
	concurrency     int
	shutdownTimeout time.Duration
}

func loadSettings(cfg config.Config) settings {
	s := settings{
		region:          cfg.AWSRegion,
		visibility:      time.Duration(envInt("TGA_SQS_VISIBILITY_TIMEOUT_SECONDS", 1200)) * time.Second,
		concurrency:     envInt("TGA_WORKER_CONCURRENCY", 4),
		shutdownTimeout: time.Duration(envInt("TGA_SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,
	}
	if s.region == "" {
		s.region = "us-east-1"
	}
	return s
}

func main() {
	cfg := config.Load()
	queueURL := strings.TrimSpace(cfg.QueueURL)
	if queueURL == "" {
		log.Fatal("TGA_SQS_QUEUE_URL is required")
	}
	set := loadSettings(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(set.region))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	app, err := bootstrap.BuildFor(ctx, bootstrap.RoleWorker, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}

	c := &consumer{
		client:      sqs.NewFromConfig(awsCfg),
		runner:      app.Orchestrator,
		queueURL:    queueURL,
		visibility:  set.visibility,
		concurrency: set.concurrency,
		retryDelay:  time.Second,
	}
	telemetry.Info("worker.started", map[string]any{
		"queue":       queueURL,
		"concurrency": set.concurrency,
		"visibility":  set.visibility.String(),
	})

	if !c.run(ctx, set.shutdownTimeout) {
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"timeout": set.shutdownTimeout.String()})
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Close(closeCtx); err != nil {
		telemetry.Error("worker.close_failed", map[string]any{"err": err})
	}
	telemetry.Info("worker.stopped", nil)
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && v > 0 {
		return v
	}
	return def
}
