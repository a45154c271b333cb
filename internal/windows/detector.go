// Package windows turns an hourly forecast into ranked "best time" windows:
// maximal contiguous runs of hours whose conditions score clears a minimum.
package windows

import (
	"sort"
	"time"

	"skywatch/internal/scoring"
	"skywatch/internal/types"
)

// Options controls window detection.
type Options struct {
	// MinScore is the score an hour must reach to extend a window.
	MinScore int

	// MinDurationMinutes discards windows shorter than this once closed.
	MinDurationMinutes int

	// MaxWindows truncates the ranked result. Zero or negative means no cap.
	MaxWindows int
}

// Find scores each sample against the named profile and returns the notable
// windows, ordered descending by peak score. Ties on peak score keep
// encounter order, so the soonest equally-good opportunity ranks first.
func Find(samples []types.HourlySample, profileName string, opts Options) []types.Window {
	return FindWith(scoring.Default(), samples, profileName, opts)
}

// FindWith is Find against an explicit profile registry. It is a single
// left-to-right pass over the samples; nothing is buffered beyond the
// currently open window.
func FindWith(reg *scoring.Registry, samples []types.HourlySample, profileName string, opts Options) []types.Window {
	spacing := sampleSpacing(samples)

	var result []types.Window
	var open *accumulator

	for _, sample := range samples {
		res := scoring.ScoreWith(reg, sample, profileName)

		if res.Score >= opts.MinScore {
			if open == nil {
				open = &accumulator{start: sample.Timestamp}
			}
			open.add(sample.Timestamp, res.Score)
			continue
		}

		if open != nil {
			if w, ok := open.finalize(spacing, opts.MinDurationMinutes); ok {
				result = append(result, w)
			}
			open = nil
		}
	}

	// A window may legitimately run off the end of the available forecast.
	if open != nil {
		if w, ok := open.finalize(spacing, opts.MinDurationMinutes); ok {
			result = append(result, w)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PeakScore > result[j].PeakScore
	})
	if opts.MaxWindows > 0 && len(result) > opts.MaxWindows {
		result = result[:opts.MaxWindows]
	}
	return result
}

// sampleSpacing derives the hourly spacing from the first two samples,
// defaulting to one hour.
func sampleSpacing(samples []types.HourlySample) time.Duration {
	if len(samples) >= 2 {
		if d := samples[1].Timestamp.Sub(samples[0].Timestamp); d > 0 {
			return d
		}
	}
	return time.Hour
}

// accumulator tracks the currently open window during the scan.
type accumulator struct {
	start    time.Time
	count    int
	sum      int
	peak     int
	peakTime time.Time
}

func (a *accumulator) add(ts time.Time, score int) {
	a.count++
	a.sum += score
	if score > a.peak || a.count == 1 {
		a.peak = score
		a.peakTime = ts
	}
}

func (a *accumulator) finalize(spacing time.Duration, minDurationMinutes int) (types.Window, bool) {
	durationMinutes := a.count * int(spacing.Minutes())
	if durationMinutes < minDurationMinutes {
		return types.Window{}, false
	}
	return types.Window{
		Start:           a.start,
		End:             a.start.Add(time.Duration(a.count) * spacing),
		DurationMinutes: durationMinutes,
		PeakScore:       a.peak,
		AverageScore:    float64(a.sum) / float64(a.count),
		BestHour:        a.peakTime,
	}, true
}
