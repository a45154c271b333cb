// Package main is the entrypoint for the alert-worker Lambda function.
//
// The worker is triggered by SQS messages carrying evaluation batches. For
// each subscriber it fetches the hourly forecast, scores the current
// conditions, finds good-condition windows, gates the candidate alert
// through the dedup tracker, and enqueues allowed alerts for delivery.
//
// This file handles dependency wiring (cold start) and delegates business
// logic to the internal/worker package.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"skywatch/internal/alerts"
	"skywatch/internal/config"
	"skywatch/internal/db"
	"skywatch/internal/external"
	"skywatch/internal/queue"
	"skywatch/internal/types"
	"skywatch/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("alert-worker Lambda initializing (cold start)")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWS.Region),
	)
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	// Localstack-style endpoint override for local runs.
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.NewPool(ctx, cfg.Database)
	cancel()
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	adapted := &slogAdapter{logger: logger}
	repo := db.NewAlertRepository(pool)
	metrics := alerts.NewCloudWatchMetrics(cwClient, cfg.AWS.MetricNamespace, adapted)
	tracker := alerts.NewTracker(repo, types.RealClock{}, adapted, metrics)
	weather := external.NewWeatherClient(cfg.Weather)
	dispatcher := queue.NewDispatchTrigger(sqsClient, cfg.AWS.DispatchQueue, logger)

	workerCfg := worker.DefaultConfig()
	workerCfg.DefaultCooldown = cfg.Alerts.DefaultCooldown

	ev := worker.NewEvaluator(
		weather,
		weather,
		tracker,
		dispatcher,
		types.RealClock{},
		logger,
		cfg.Weather.CacheTTL,
		workerCfg,
	)

	logger.Info("alert-worker Lambda initialized",
		"dispatch_queue", cfg.AWS.DispatchQueue,
		"metric_namespace", cfg.AWS.MetricNamespace,
	)

	// Local mode: read an SQS event from stdin instead of starting the
	// Lambda runtime.
	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading SQS event from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil || len(payload) == 0 {
			logger.Error("failed to read event from stdin", "error", err)
			os.Exit(1)
		}
		var event events.SQSEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			logger.Error("failed to parse SQS event", "error", err)
			os.Exit(1)
		}
		resp, err := ev.Handle(context.Background(), event)
		if err != nil {
			logger.Error("handler execution failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("failed items: %d\n", len(resp.BatchItemFailures))
		return
	}

	lambda.Start(ev.Handle)
}

// slogAdapter bridges *slog.Logger to types.Logger for components that accept
// the interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}
