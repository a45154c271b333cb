// Package scheduler implements the scheduled maintenance jobs.
//
// The retention service keeps the alert_records table bounded: records past
// the retention period are serialized to zstd-compressed JSONL, handed to an
// archive sink, and then hard-deleted. All jobs accept a `now` parameter so
// runs are deterministic in tests and manual backfills can replay a past
// reference time.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"

	"skywatch/internal/types"
)

// RetentionBatchLimit caps how many records one archive batch carries. Fixed
// batch sizes keep a single invocation inside the Lambda timeout.
const RetentionBatchLimit = 500

// RetentionDB defines the database operations needed by the retention service.
type RetentionDB interface {
	// ListSentBefore returns alert records with sent_at < cutoff, oldest first.
	ListSentBefore(ctx context.Context, cutoff time.Time, limit int) ([]*types.AlertRecord, error)

	// Delete removes a single alert record.
	Delete(ctx context.Context, userID, rowKey string) error

	// DeleteBefore removes alert records with sent_at < cutoff and returns
	// the number of rows deleted.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ArchiveSink receives a compressed archive batch. Implementations write to
// local disk or object storage; the key is generated by the service as
// "alerts/YYYY/MM/batch_<unixnano>.jsonl.zst".
type ArchiveSink interface {
	WriteArchive(ctx context.Context, key string, data []byte) error
}

// RetentionService archives and purges aged alert records.
type RetentionService struct {
	db     RetentionDB
	sink   ArchiveSink // nil disables archival; purge still runs
	logger *slog.Logger
}

// NewRetentionService creates a RetentionService. The sink may be nil when
// no archive destination is configured, in which case purged records are
// simply dropped.
func NewRetentionService(db RetentionDB, sink ArchiveSink, logger *slog.Logger) *RetentionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionService{
		db:     db,
		sink:   sink,
		logger: logger,
	}
}

// Run archives then purges every alert record older than retentionDays,
// measured from now. Returns the number of rows deleted.
func (r *RetentionService) Run(ctx context.Context, now time.Time, retentionDays int) (int64, error) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	archived, err := r.archiveBefore(ctx, cutoff)
	if err != nil {
		// Purging without a completed archive would lose the records.
		return 0, fmt.Errorf("archiving alert records: %w", err)
	}

	deleted, err := r.db.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging alert records: %w", err)
	}

	r.logger.InfoContext(ctx, "alert record retention sweep complete",
		"cutoff", cutoff.Format(time.RFC3339),
		"archived", archived,
		"deleted", deleted,
	)
	return deleted, nil
}

// archiveBefore runs a fetch-upload-delete cycle over aged records in fixed
// batches. Each batch is deleted only after its archive write succeeds, so a
// mid-run failure leaves the remaining records for the next sweep. Returns
// the count of records archived.
func (r *RetentionService) archiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if r.sink == nil {
		r.logger.WarnContext(ctx, "archive sink not configured, skipping archival")
		return 0, nil
	}

	total := 0
	for {
		records, err := r.db.ListSentBefore(ctx, cutoff, RetentionBatchLimit)
		if err != nil {
			return total, fmt.Errorf("listing aged alert records: %w", err)
		}
		if len(records) == 0 {
			break
		}

		data, err := compressRecordsJSONL(records)
		if err != nil {
			return total, fmt.Errorf("serializing archive batch: %w", err)
		}

		key := fmt.Sprintf("alerts/%d/%02d/batch_%d.jsonl.zst",
			cutoff.Year(), cutoff.Month(), time.Now().UnixNano())
		if err := r.sink.WriteArchive(ctx, key, data); err != nil {
			return total, fmt.Errorf("writing archive %s: %w", key, err)
		}

		for _, rec := range records {
			if err := r.db.Delete(ctx, rec.UserID, rec.RowKey); err != nil {
				return total, fmt.Errorf("deleting archived record %s/%s: %w", rec.UserID, rec.RowKey, err)
			}
		}

		total += len(records)
		r.logger.InfoContext(ctx, "archived alert record batch",
			"batch_size", len(records),
			"archive_key", key,
			"total_archived", total,
		)

		if len(records) < RetentionBatchLimit {
			break
		}
	}
	return total, nil
}

// compressRecordsJSONL serializes records to newline-delimited JSON and
// compresses the result with zstd.
func compressRecordsJSONL(records []*types.AlertRecord) ([]byte, error) {
	var raw []byte
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("marshaling record %s/%s: %w", rec.UserID, rec.RowKey, err)
		}
		raw = append(raw, line...)
		raw = append(raw, '\n')
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}
