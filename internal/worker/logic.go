// Package worker implements the evaluation pipeline run by the alert-worker
// Lambda: fetch hourly forecasts, score them per subscriber activity, detect
// notable windows, gate each candidate alert through the dedup tracker, and
// enqueue allowed alerts for delivery.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"skywatch/internal/alerts"
	"skywatch/internal/cache"
	"skywatch/internal/scoring"
	"skywatch/internal/types"
	"skywatch/internal/windows"
)

// Dispatcher hands an allowed alert to the delivery queue.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg types.DispatchMessage) error
}

// Config holds the evaluator tunables.
type Config struct {
	// ForecastHours is how far ahead to fetch per location.
	ForecastHours int

	// Concurrency caps parallel subscriber evaluations. Scoring itself is
	// pure and stateless; the cap only protects the upstream fetchers.
	Concurrency int

	// DefaultMinScore applies when a subscriber has none configured.
	DefaultMinScore int

	// DefaultCooldown applies when a subscriber has none configured.
	DefaultCooldown time.Duration

	// Window detection defaults.
	MinWindowMinutes int
	MaxWindows       int
}

// DefaultConfig returns the standard evaluator tuning.
func DefaultConfig() Config {
	return Config{
		ForecastHours:    24,
		Concurrency:      8,
		DefaultMinScore:  65,
		DefaultCooldown:  12 * time.Hour,
		MinWindowMinutes: 120,
		MaxWindows:       3,
	}
}

// Stats summarizes one batch evaluation.
type Stats struct {
	Evaluated  int
	Dispatched int
	Suppressed int
	Failed     int
}

// Evaluator runs the scoring pipeline for a batch of subscribers.
type Evaluator struct {
	weather    types.WeatherSource
	space      types.SpaceWeatherSource
	tracker    *alerts.Tracker
	dispatcher Dispatcher
	registry   *scoring.Registry
	clock      types.Clock
	logger     *slog.Logger
	cfg        Config

	// forecastCache collapses duplicate fetches for subscribers sharing a
	// location within one process lifetime.
	forecastCache *cache.Cache[string, []types.HourlySample]
	kpCache       *cache.Cache[string, float64]
}

// NewEvaluator wires an Evaluator. The caches are owned here and sized by
// the weather cache TTL.
func NewEvaluator(
	weather types.WeatherSource,
	space types.SpaceWeatherSource,
	tracker *alerts.Tracker,
	dispatcher Dispatcher,
	clock types.Clock,
	logger *slog.Logger,
	cacheTTL time.Duration,
	cfg Config,
) *Evaluator {
	return &Evaluator{
		weather:       weather,
		space:         space,
		tracker:       tracker,
		dispatcher:    dispatcher,
		registry:      scoring.Default(),
		clock:         clock,
		logger:        logger,
		cfg:           cfg,
		forecastCache: cache.New[string, []types.HourlySample](cacheTTL, clock),
		kpCache:       cache.New[string, float64](cacheTTL, clock),
	}
}

// ProcessBatch evaluates every subscriber in the batch with bounded
// parallelism. Individual subscriber failures are counted and logged but do
// not abort the batch; the returned error is non-nil only when the batch
// could not be processed at all.
func (e *Evaluator) ProcessBatch(ctx context.Context, batch types.EvalBatch) (Stats, error) {
	if len(batch.Subscribers) == 0 {
		return Stats{}, nil
	}

	var (
		mu    sync.Mutex
		stats Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, sub := range batch.Subscribers {
		g.Go(func() error {
			outcome, err := e.evaluateSubscriber(gctx, batch.TraceID, sub)

			mu.Lock()
			defer mu.Unlock()
			stats.Evaluated++
			switch {
			case err != nil:
				stats.Failed++
				e.logger.ErrorContext(gctx, "subscriber evaluation failed",
					"error", err.Error(),
					"trace_id", batch.TraceID,
					"user_id", sub.UserID,
					"activity", sub.Activity,
				)
			case outcome == outcomeDispatched:
				stats.Dispatched++
			case outcome == outcomeSuppressed:
				stats.Suppressed++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	e.logger.InfoContext(ctx, "evaluation batch processed",
		"batch_id", batch.BatchID,
		"trace_id", batch.TraceID,
		"evaluated", stats.Evaluated,
		"dispatched", stats.Dispatched,
		"suppressed", stats.Suppressed,
		"failed", stats.Failed,
	)
	return stats, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeDispatched
	outcomeSuppressed
)

// evaluateSubscriber runs the full pipeline for one subscriber.
func (e *Evaluator) evaluateSubscriber(ctx context.Context, traceID string, sub types.Subscriber) (outcome, error) {
	samples, err := e.samplesFor(ctx, sub)
	if err != nil {
		return outcomeSkipped, err
	}
	if len(samples) == 0 {
		return outcomeSkipped, fmt.Errorf("no forecast samples for %s", sub.Location.DisplayName)
	}

	minScore := sub.MinScore
	if minScore <= 0 {
		minScore = e.cfg.DefaultMinScore
	}

	current := scoring.ScoreWith(e.registry, samples[0], sub.Activity)
	if current.Score < minScore {
		return outcomeSkipped, nil
	}

	found := windows.FindWith(e.registry, samples, sub.Activity, windows.Options{
		MinScore:           minScore,
		MinDurationMinutes: e.cfg.MinWindowMinutes,
		MaxWindows:         e.cfg.MaxWindows,
	})

	alertType, data := e.alertFor(sub, samples[0], current)

	cooldown := time.Duration(sub.CooldownHours) * time.Hour
	if cooldown <= 0 {
		cooldown = e.cfg.DefaultCooldown
	}
	if e.tracker.IsRecentlyAlerted(ctx, sub.UserID, alertType, data, cooldown) {
		return outcomeSuppressed, nil
	}

	msg := types.DispatchMessage{
		TraceID:     traceID,
		UserID:      sub.UserID,
		AlertType:   alertType,
		DedupKey:    alerts.DedupKey(alertType, data, e.clock.Now()),
		Title:       fmt.Sprintf("%s conditions: %s", titleCase(sub.Activity), current.Rating),
		Body:        messageBody(sub, current, found),
		Score:       current.Score,
		TriggeredAt: e.clock.Now(),
	}
	if err := e.dispatcher.Dispatch(ctx, msg); err != nil {
		return outcomeSkipped, fmt.Errorf("dispatch: %w", err)
	}

	// The send has happened; a failed record write is logged inside the
	// tracker and accepted (next cycle may duplicate).
	e.tracker.RecordAlert(ctx, sub.UserID, alertType, data)
	return outcomeDispatched, nil
}

// samplesFor returns the hourly samples for the subscriber's location,
// attaching the current Kp index for aurora subscribers. Forecasts and Kp
// readings are cached per location/feed for the cache TTL.
func (e *Evaluator) samplesFor(ctx context.Context, sub types.Subscriber) ([]types.HourlySample, error) {
	key := fmt.Sprintf("%.4f,%.4f", sub.Location.Lat, sub.Location.Lon)

	samples, ok := e.forecastCache.Get(key)
	if !ok {
		var err error
		samples, err = e.weather.HourlyForecast(ctx, sub.Location, e.cfg.ForecastHours)
		if err != nil {
			return nil, fmt.Errorf("hourly forecast: %w", err)
		}
		e.forecastCache.Set(key, samples)
	}

	if sub.Activity != "aurora" {
		return samples, nil
	}

	kp, ok := e.kpCache.Get("kp")
	if !ok {
		var err error
		kp, err = e.space.CurrentKpIndex(ctx)
		if err != nil {
			return nil, fmt.Errorf("kp index: %w", err)
		}
		e.kpCache.Set("kp", kp)
	}

	// Copy before annotating; the cached slice is shared across subscribers.
	annotated := make([]types.HourlySample, len(samples))
	copy(annotated, samples)
	for i := range annotated {
		v := kp
		annotated[i].KpIndex = &v
	}
	return annotated, nil
}

// alertFor picks the alert type and dedup-relevant data for a result.
func (e *Evaluator) alertFor(sub types.Subscriber, sample types.HourlySample, res types.ScoreResult) (types.AlertType, types.AlertData) {
	data := types.AlertData{
		Summary: res.Recommendation,
		Details: map[string]any{
			"activity": sub.Activity,
			"score":    res.Score,
			"rating":   string(res.Rating),
			"location": sub.Location.DisplayName,
		},
	}

	if sub.Activity == "aurora" {
		if sample.KpIndex != nil {
			data.KpIndex = *sample.KpIndex
		}
		return types.AlertTypeAurora, data
	}
	return types.AlertTypeConditions, data
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// messageBody renders the notification body: recommendation, top reasons,
// and the best upcoming window if one was found.
func messageBody(sub types.Subscriber, res types.ScoreResult, found []types.Window) string {
	var b strings.Builder
	b.WriteString(res.Recommendation)
	b.WriteString(fmt.Sprintf(" (score %d/100)", res.Score))

	for _, reason := range res.Reasons {
		b.WriteString("\n- ")
		b.WriteString(reason)
	}

	if len(found) > 0 {
		best := found[0]
		b.WriteString(fmt.Sprintf(
			"\nBest stretch: %s to %s (peak %d).",
			best.Start.Format("Mon 15:04"),
			best.End.Format("15:04"),
			best.PeakScore,
		))
	}
	return b.String()
}
