// Package alerts implements the alert deduplication and cooldown tracker.
//
// The tracker decides whether a computed condition is allowed to trigger a
// new notification. It deliberately fails open: for this product a missed
// notification is worse than an occasional duplicate, so store errors and
// missing records are both treated as "never sent".
package alerts

import (
	"fmt"
	"time"

	"skywatch/internal/types"
)

// DedupKey derives the string identifying "the same underlying event" for
// cooldown purposes. The key is deliberately coarser than the raw input:
//
//   - aurora alerts key on the integer part of the Kp index, so
//     observations drifting within a band (5.1, 5.7) collapse to one event
//   - severe-weather warnings key on (warningType, severity, onset date); a
//     new day's warning of the same type is a new event
//   - daily digests key on the calendar date, enforcing at most one per day
//   - everything else keys on the current hour, capping frequency at one
//     per hour by default
//
// now supplies the evaluation time so the derivation stays pure.
func DedupKey(alertType types.AlertType, data types.AlertData, now time.Time) string {
	switch alertType {
	case types.AlertTypeAurora:
		return fmt.Sprintf("kp%d", int(data.KpIndex))
	case types.AlertTypeSevereWeather:
		return fmt.Sprintf("%s|%s|%s", data.WarningType, data.Severity, data.OnsetAt.UTC().Format("2006-01-02"))
	case types.AlertTypeDailyForecast:
		return now.UTC().Format("2006-01-02")
	default:
		return now.UTC().Format("2006-01-02T15")
	}
}

// RowKey builds the store row key from an alert type and its dedup key.
// Together with the user ID it addresses the single live record per event.
func RowKey(alertType types.AlertType, dedupKey string) string {
	return string(alertType) + ":" + dedupKey
}
