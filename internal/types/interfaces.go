package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the core.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}

// AlertStore is the minimal key-value record surface the dedup tracker needs.
// Get returns ErrRecordNotFound when no record exists for the key; callers
// treat that as a normal outcome, not a failure. No transactions or secondary
// indexes are required of an implementation.
type AlertStore interface {
	Get(ctx context.Context, userID, rowKey string) (*AlertRecord, error)
	UpsertReplace(ctx context.Context, rec *AlertRecord) error
	ListByUser(ctx context.Context, userID string, alertType AlertType) ([]*AlertRecord, error)
	Delete(ctx context.Context, userID, rowKey string) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WeatherSource supplies normalized hourly samples for a location. Units and
// presence of optional fields are the source's responsibility.
type WeatherSource interface {
	HourlyForecast(ctx context.Context, loc Location, hours int) ([]HourlySample, error)
}

// SpaceWeatherSource supplies the current planetary geomagnetic index.
type SpaceWeatherSource interface {
	CurrentKpIndex(ctx context.Context) (float64, error)
}
