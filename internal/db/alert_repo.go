package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"skywatch/internal/types"
)

// Compile-time assertion that AlertRepository implements types.AlertStore.
var _ types.AlertStore = (*AlertRepository)(nil)

// AlertRepository provides data access for the alert_records table. The
// table holds at most one live record per (user_id, row_key) pair; a repeat
// send after cooldown expiry replaces the existing row rather than appending.
//
// Schema:
//
//	CREATE TABLE alert_records (
//	    user_id    TEXT NOT NULL,
//	    row_key    TEXT NOT NULL,
//	    alert_type TEXT NOT NULL,
//	    dedup_key  TEXT NOT NULL,
//	    sent_at    TIMESTAMPTZ NOT NULL,
//	    send_count INT NOT NULL DEFAULT 1,
//	    details    JSONB,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    PRIMARY KEY (user_id, row_key)
//	);
type AlertRepository struct {
	db DBTX
}

// NewAlertRepository creates an AlertRepository backed by the given database
// connection (pool or transaction).
func NewAlertRepository(db DBTX) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `user_id, row_key, alert_type, dedup_key, sent_at, send_count, details, created_at`

// Get fetches the record addressed by (userID, rowKey). Returns
// types.ErrRecordNotFound when no row exists; callers treat that as a normal
// "never sent" outcome.
func (r *AlertRepository) Get(ctx context.Context, userID, rowKey string) (*types.AlertRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+alertColumns+`
		 FROM alert_records
		 WHERE user_id = $1 AND row_key = $2`,
		userID, rowKey,
	)

	rec, err := scanAlertRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRecordNotFound
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get alert record", err)
	}
	return rec, nil
}

// UpsertReplace writes the record, replacing any existing row for the same
// (user_id, row_key) pair. sent_at, send_count, and details always take the
// incoming values; created_at is preserved from the original row.
func (r *AlertRepository) UpsertReplace(ctx context.Context, rec *types.AlertRecord) error {
	details, err := marshalDetails(rec.Details)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal alert details", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO alert_records
		 (user_id, row_key, alert_type, dedup_key, sent_at, send_count, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
		 ON CONFLICT (user_id, row_key) DO UPDATE SET
		    sent_at    = EXCLUDED.sent_at,
		    send_count = EXCLUDED.send_count,
		    dedup_key  = EXCLUDED.dedup_key,
		    details    = EXCLUDED.details`,
		rec.UserID,
		rec.RowKey,
		string(rec.AlertType),
		rec.DedupKey,
		rec.SentAt,
		rec.SendCount,
		details,
		nilIfZeroTime(rec.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert alert record", err)
	}
	return nil
}

// ListByUser returns all records in a user's partition, optionally filtered
// by alert type. Rows come back in storage (row_key) order; history ordering
// is the tracker's concern.
func (r *AlertRepository) ListByUser(ctx context.Context, userID string, alertType types.AlertType) ([]*types.AlertRecord, error) {
	query := `SELECT ` + alertColumns + `
	 FROM alert_records
	 WHERE user_id = $1`
	args := []any{userID}

	if alertType != "" {
		query += ` AND alert_type = $2`
		args = append(args, string(alertType))
	}
	query += ` ORDER BY row_key`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list alert records", err)
	}
	defer rows.Close()

	var results []*types.AlertRecord
	for rows.Next() {
		rec, scanErr := scanAlertRecord(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert record", scanErr)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating alert records", err)
	}
	return results, nil
}

// Delete removes a single record. Deleting a missing record is not an error.
func (r *AlertRepository) Delete(ctx context.Context, userID, rowKey string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM alert_records WHERE user_id = $1 AND row_key = $2`,
		userID, rowKey,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete alert record", err)
	}
	return nil
}

// DeleteBefore hard-deletes records sent before the cutoff. Used by the
// retention sweep. Returns the count of deleted records.
func (r *AlertRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM alert_records WHERE sent_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete old alert records", err)
	}
	return tag.RowsAffected(), nil
}

// ListSentBefore returns up to limit records sent before the cutoff, oldest
// first. The retention sweep uses this to archive records ahead of deletion.
func (r *AlertRepository) ListSentBefore(ctx context.Context, cutoff time.Time, limit int) ([]*types.AlertRecord, error) {
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+alertColumns+`
		 FROM alert_records
		 WHERE sent_at < $1
		 ORDER BY sent_at
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list expiring alert records", err)
	}
	defer rows.Close()

	var results []*types.AlertRecord
	for rows.Next() {
		rec, scanErr := scanAlertRecord(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan alert record", scanErr)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating alert records", err)
	}
	return results, nil
}

// scanAlertRecord scans one alert_records row. Works for both pgx.Row and
// pgx.Rows since both expose Scan.
func scanAlertRecord(row interface{ Scan(dest ...any) error }) (*types.AlertRecord, error) {
	var (
		rec       types.AlertRecord
		alertType string
		details   []byte
	)

	err := row.Scan(
		&rec.UserID,
		&rec.RowKey,
		&alertType,
		&rec.DedupKey,
		&rec.SentAt,
		&rec.SendCount,
		&details,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.AlertType = types.AlertType(alertType)
	if len(details) > 0 {
		// Malformed details degrade to nil rather than failing the read.
		_ = json.Unmarshal(details, &rec.Details)
	}
	return &rec, nil
}

func marshalDetails(details map[string]any) ([]byte, error) {
	if details == nil {
		return nil, nil
	}
	return json.Marshal(details)
}

func nilIfZeroTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
