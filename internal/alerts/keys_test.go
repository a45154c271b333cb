package alerts

import (
	"testing"
	"time"

	"skywatch/internal/types"
)

var keyNow = time.Date(2026, 3, 14, 21, 37, 0, 0, time.UTC)

func TestDedupKey_AuroraTruncatesKpToBand(t *testing.T) {
	a := DedupKey(types.AlertTypeAurora, types.AlertData{KpIndex: 5.1}, keyNow)
	b := DedupKey(types.AlertTypeAurora, types.AlertData{KpIndex: 5.6}, keyNow)
	if a != b {
		t.Errorf("Kp 5.1 and 5.6 should share a band: %q vs %q", a, b)
	}
	if a != "kp5" {
		t.Errorf("expected kp5, got %q", a)
	}

	c := DedupKey(types.AlertTypeAurora, types.AlertData{KpIndex: 6.4}, keyNow)
	if a == c {
		t.Errorf("Kp 5.1 and 6.4 should be distinct events, both %q", a)
	}
	if c != "kp6" {
		t.Errorf("expected kp6, got %q", c)
	}
}

func TestDedupKey_SevereWeatherKeysOnTypeSeverityOnsetDate(t *testing.T) {
	data := types.AlertData{
		WarningType: "thunderstorm",
		Severity:    string(types.SeverityWarning),
		OnsetAt:     time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC),
	}
	k := DedupKey(types.AlertTypeSevereWeather, data, keyNow)
	if k != "thunderstorm|warning|2026-03-14" {
		t.Errorf("unexpected severe key %q", k)
	}

	// Same warning with a next-day onset is a fresh event.
	data.OnsetAt = data.OnsetAt.Add(24 * time.Hour)
	if DedupKey(types.AlertTypeSevereWeather, data, keyNow) == k {
		t.Error("next-day onset should produce a new key")
	}
}

func TestDedupKey_DailyForecastKeysOnDate(t *testing.T) {
	k := DedupKey(types.AlertTypeDailyForecast, types.AlertData{}, keyNow)
	if k != "2026-03-14" {
		t.Errorf("expected date key, got %q", k)
	}

	later := keyNow.Add(2 * time.Hour) // still the 14th
	if DedupKey(types.AlertTypeDailyForecast, types.AlertData{}, later) != k {
		t.Error("same calendar day should share the daily key")
	}
}

func TestDedupKey_DefaultKeysOnHour(t *testing.T) {
	k := DedupKey(types.AlertTypeConditions, types.AlertData{}, keyNow)
	if k != "2026-03-14T21" {
		t.Errorf("expected hour key, got %q", k)
	}

	nextHour := keyNow.Add(time.Hour)
	if DedupKey(types.AlertTypeConditions, types.AlertData{}, nextHour) == k {
		t.Error("a new hour should produce a new key")
	}
}

func TestRowKey_PrefixesAlertType(t *testing.T) {
	if got := RowKey(types.AlertTypeAurora, "kp5"); got != "aurora:kp5" {
		t.Errorf("unexpected row key %q", got)
	}
}
