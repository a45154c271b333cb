// Package main is the entrypoint for the maintenance Lambda function.
//
// It runs on a schedule (EventBridge) and sweeps aged alert records: records
// past the retention period are archived as compressed JSONL and then
// deleted. A reference time can be supplied in the payload for manual
// backfills.
package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"skywatch/internal/config"
	"skywatch/internal/db"
	"skywatch/internal/scheduler"
)

// maintenancePayload is the scheduled event body. All fields are optional;
// zero values fall back to configuration.
type maintenancePayload struct {
	// ReferenceTime overrides "now" for manual backfill runs.
	ReferenceTime *time.Time `json:"reference_time,omitempty"`

	// RetentionDays overrides the configured retention period.
	RetentionDays int `json:"retention_days,omitempty"`
}

type handler struct {
	retention     *scheduler.RetentionService
	retentionDays int
	logger        *slog.Logger
}

func (h *handler) Handle(ctx context.Context, raw json.RawMessage) error {
	var payload maintenancePayload
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			h.logger.WarnContext(ctx, "ignoring malformed maintenance payload", "error", err.Error())
		}
	}

	now := time.Now().UTC()
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}
	days := h.retentionDays
	if payload.RetentionDays > 0 {
		days = payload.RetentionDays
	}

	_, err := h.retention.Run(ctx, now, days)
	return err
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("maintenance Lambda initializing (cold start)")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.NewPool(ctx, cfg.Database)
	cancel()
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var sink scheduler.ArchiveSink
	if cfg.Alerts.ArchivePath != "" {
		sink = scheduler.NewDirSink(cfg.Alerts.ArchivePath)
	}

	h := &handler{
		retention:     scheduler.NewRetentionService(db.NewAlertRepository(pool), sink, logger),
		retentionDays: cfg.Alerts.RetentionDays,
		logger:        logger,
	}

	logger.Info("maintenance Lambda initialized",
		"retention_days", cfg.Alerts.RetentionDays,
		"archive_path", cfg.Alerts.ArchivePath,
	)

	// Local mode: read the payload from stdin instead of starting the Lambda
	// runtime.
	if cfg.Environment == "local" {
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("failed to read stdin", "error", err)
			os.Exit(1)
		}
		if err := h.Handle(context.Background(), json.RawMessage(payload)); err != nil {
			logger.Error("handler execution failed", "error", err)
			os.Exit(1)
		}
		logger.Info("handler execution completed")
		return
	}

	lambda.Start(h.Handle)
}
