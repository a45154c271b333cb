package types

import "time"

// Location represents a geographic coordinate with an optional display name.
type Location struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name,omitempty"`
}

// HourlySample is one hour's worth of normalized metrics from the weather
// source. Optional metrics use pointers; a nil value means the upstream did
// not report it and the scorer substitutes a profile-neutral default.
type HourlySample struct {
	Timestamp time.Time `json:"timestamp"`

	TemperatureC      float64 `json:"temperature_c"`
	PrecipProbability float64 `json:"precipitation_probability"` // 0-100
	PrecipMM          float64 `json:"precipitation_mm"`          // mm per hour
	WindSpeedKmh      float64 `json:"wind_speed_kmh"`

	FeelsLikeC    *float64 `json:"feels_like_c,omitempty"`
	UVIndex       *float64 `json:"uv_index,omitempty"`
	VisibilityM   *float64 `json:"visibility_m,omitempty"`
	CloudCoverPct *float64 `json:"cloud_cover_pct,omitempty"`
	KpIndex       *float64 `json:"kp_index,omitempty"`

	// Condition is the coarse condition label from the provider
	// (e.g. "clear", "rain", "snow").
	Condition string `json:"condition,omitempty"`
}

// FactorScore captures how a single factor contributed to a score.
type FactorScore struct {
	Value     float64 `json:"value"`
	Penalty   int     `json:"penalty"`
	MaxPoints int     `json:"max_points"`
}

// ScoreResult is the output of one scoring evaluation. Created fresh on every
// evaluation and never mutated; it is not persisted by the core.
type ScoreResult struct {
	Score          int                     `json:"score"`
	Rating         Rating                  `json:"rating"`
	Factors        map[FactorID]FactorScore `json:"factors"`
	Reasons        []string                `json:"reasons"`
	Recommendation string                  `json:"recommendation"`
	Timestamp      time.Time               `json:"timestamp"`
}

// Window is a maximal contiguous run of hourly samples whose score stays at
// or above a caller-supplied minimum. Computed transiently per scoring pass.
type Window struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	PeakScore       int       `json:"peak_score"`
	AverageScore    float64   `json:"average_score"`
	BestHour        time.Time `json:"best_hour"`
}

// AlertData carries the alert-specific fields used for dedup key derivation
// and display details. Only the fields relevant to the alert type need to be
// populated.
type AlertData struct {
	KpIndex     float64        `json:"kp_index,omitempty"`
	WarningType string         `json:"warning_type,omitempty"`
	Severity    string         `json:"severity,omitempty"`
	OnsetAt     time.Time      `json:"onset_at,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// AlertRecord is one durable fact: "alert of type T with dedup key K was sent
// to user U at time S". The store holds at most one live record per
// (UserID, RowKey) pair; a recurring key after cooldown expiry replaces the
// existing record rather than appending to a log.
type AlertRecord struct {
	UserID    string         `json:"user_id" db:"user_id"`
	RowKey    string         `json:"row_key" db:"row_key"`
	AlertType AlertType      `json:"alert_type" db:"alert_type"`
	DedupKey  string         `json:"dedup_key" db:"dedup_key"`
	SentAt    time.Time      `json:"sent_at" db:"sent_at"`
	SendCount int            `json:"send_count" db:"send_count"`
	Details   map[string]any `json:"details,omitempty" db:"details"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Subscriber describes one user's standing interest in an activity at a
// location. Subscription management lives outside this core; the evaluation
// worker receives subscribers inline in its batch message.
type Subscriber struct {
	UserID        string   `json:"user_id"`
	Activity      string   `json:"activity"`
	Location      Location `json:"location"`
	MinScore      int      `json:"min_score"`
	CooldownHours int      `json:"cooldown_hours"`
}

// EvalBatch is the SQS payload consumed by the alert worker. One batch holds
// the subscribers to evaluate in a single invocation.
type EvalBatch struct {
	BatchID     string       `json:"batch_id"`
	TraceID     string       `json:"trace_id"`
	EnqueuedAt  time.Time    `json:"enqueued_at"`
	Subscribers []Subscriber `json:"subscribers"`
}

// DispatchMessage is the SQS payload handed to downstream delivery workers
// (Telegram/WhatsApp formatters, out of scope here) once the dedup gate has
// allowed a send.
type DispatchMessage struct {
	MessageID   string    `json:"message_id"`
	TraceID     string    `json:"trace_id"`
	UserID      string    `json:"user_id"`
	AlertType   AlertType `json:"alert_type"`
	DedupKey    string    `json:"dedup_key"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Score       int       `json:"score,omitempty"`
	TriggeredAt time.Time `json:"triggered_at"`
}
