package alerts

import (
	"context"
	"errors"
	"sort"
	"time"

	"skywatch/internal/types"
)

// Tracker gates alert sends behind a keyed cooldown backed by an external
// record store. It is the only component in the core touching shared state.
//
// The IsRecentlyAlerted read followed later by a RecordAlert write is not
// atomic: two invocations racing on the same key (an hourly timer and a
// manual trigger, say) can both observe "not recently alerted" and both
// send. That duplicate is an accepted cost, not a bug to architect around.
type Tracker struct {
	store   types.AlertStore
	clock   types.Clock
	logger  types.Logger
	metrics Metrics
}

// NewTracker builds a Tracker. A nil metrics collector disables metric
// emission.
func NewTracker(store types.AlertStore, clock types.Clock, logger types.Logger, metrics Metrics) *Tracker {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Tracker{
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// IsRecentlyAlerted reports whether an alert with the same dedup key was
// sent to the user within the cooldown window. Store unavailability and
// missing records both answer false (fail open): missed notifications are
// worse for this product than an occasional duplicate.
func (t *Tracker) IsRecentlyAlerted(ctx context.Context, userID string, alertType types.AlertType, data types.AlertData, cooldown time.Duration) bool {
	now := t.clock.Now()
	rowKey := RowKey(alertType, DedupKey(alertType, data, now))

	rec, err := t.store.Get(ctx, userID, rowKey)
	if err != nil {
		if !errors.Is(err, types.ErrRecordNotFound) {
			t.logger.Warn("alert store read failed, failing open",
				"error", err.Error(),
				"user_id", userID,
				"row_key", rowKey,
			)
			t.metrics.RecordDecision(ctx, alertType, DecisionFailOpen)
		}
		return false
	}

	if now.Sub(rec.SentAt) < cooldown {
		t.metrics.RecordDecision(ctx, alertType, DecisionSuppressed)
		return true
	}

	// Same key, but enough time has passed: the event may legitimately fire
	// again (e.g. a warning still active many hours later).
	t.metrics.RecordDecision(ctx, alertType, DecisionAllowed)
	return false
}

// RecordAlert upserts the record for an alert that has just been sent,
// replacing any previous record for the same key and incrementing its send
// counter. A write failure is logged and swallowed -- the send has already
// happened, and a duplicate on the next cycle is the accepted cost. Returns
// whether the record was persisted.
func (t *Tracker) RecordAlert(ctx context.Context, userID string, alertType types.AlertType, data types.AlertData) bool {
	now := t.clock.Now()
	dedupKey := DedupKey(alertType, data, now)
	rowKey := RowKey(alertType, dedupKey)

	sendCount := 1
	if prev, err := t.store.Get(ctx, userID, rowKey); err == nil {
		sendCount = prev.SendCount + 1
	}

	rec := &types.AlertRecord{
		UserID:    userID,
		RowKey:    rowKey,
		AlertType: alertType,
		DedupKey:  dedupKey,
		SentAt:    now,
		SendCount: sendCount,
		Details:   recordDetails(data),
		CreatedAt: now,
	}

	if err := t.store.UpsertReplace(ctx, rec); err != nil {
		t.logger.Error("failed to record alert send",
			"error", err.Error(),
			"user_id", userID,
			"row_key", rowKey,
		)
		return false
	}
	return true
}

// History returns the user's alert records sorted newest-first, optionally
// filtered by alert type. The limit applies after sorting. The store returns
// rows in storage order; sorting happens client-side.
func (t *Tracker) History(ctx context.Context, userID string, limit int, alertType types.AlertType) ([]*types.AlertRecord, error) {
	recs, err := t.store.ListByUser(ctx, userID, alertType)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].SentAt.After(recs[j].SentAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// PurgeOlderThan deletes records whose SentAt is more than retentionDays in
// the past, regardless of cooldown state. Returns the number of records
// removed. This is a maintenance sweep, independent of cooldown logic.
func (t *Tracker) PurgeOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := t.clock.Now().AddDate(0, 0, -retentionDays)
	deleted, err := t.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		t.logger.Info("purged expired alert records",
			"deleted", deleted,
			"retention_days", retentionDays,
		)
	}
	return deleted, nil
}

// recordDetails snapshots the display-relevant alert data for history views.
func recordDetails(data types.AlertData) map[string]any {
	details := make(map[string]any, len(data.Details)+4)
	for k, v := range data.Details {
		details[k] = v
	}
	if data.Summary != "" {
		details["summary"] = data.Summary
	}
	if data.WarningType != "" {
		details["warning_type"] = data.WarningType
		details["severity"] = data.Severity
	}
	if data.KpIndex != 0 {
		details["kp_index"] = data.KpIndex
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
