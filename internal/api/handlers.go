package api

import (
	"net/http"
	"strconv"

	"skywatch/internal/scoring"
	"skywatch/internal/types"
	"skywatch/internal/windows"
)

const (
	defaultForecastHours = 24
	maxForecastHours     = 168

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HandleScore scores the current hour for a location and activity profile.
//
// GET /v1/conditions/score?lat=&lon=&activity=
func (s *Server) HandleScore(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocation(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	activity := activityParam(r)

	samples, ferr := s.Weather.HourlyForecast(r.Context(), loc, 1)
	if ferr != nil {
		Error(w, r, ferr)
		return
	}
	if len(samples) == 0 {
		Error(w, r, types.NewAppError(types.ErrCodeUpstreamWeather, "no forecast data available", nil))
		return
	}

	result := scoring.ScoreWith(s.Registry, samples[0], activity)
	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}

// HandleWindows returns ranked good-condition windows over the forecast
// horizon for a location and activity profile.
//
// GET /v1/conditions/windows?lat=&lon=&activity=&hours=&min_score=&min_duration_minutes=&max_windows=
func (s *Server) HandleWindows(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocation(r)
	if err != nil {
		Error(w, r, err)
		return
	}
	activity := activityParam(r)

	hours, err := intParam(r, "hours", defaultForecastHours)
	if err != nil {
		Error(w, r, err)
		return
	}
	if hours < 1 || hours > maxForecastHours {
		Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidWindow,
			"hours must be between 1 and 168",
			nil,
			map[string]any{"hours": hours},
		))
		return
	}

	opts := windows.Options{}
	if opts.MinScore, err = intParam(r, "min_score", 65); err != nil {
		Error(w, r, err)
		return
	}
	if opts.MinDurationMinutes, err = intParam(r, "min_duration_minutes", 60); err != nil {
		Error(w, r, err)
		return
	}
	if opts.MaxWindows, err = intParam(r, "max_windows", 3); err != nil {
		Error(w, r, err)
		return
	}
	if opts.MinScore < 0 || opts.MinScore > 100 {
		Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidWindow, "min_score must be between 0 and 100", nil))
		return
	}

	samples, ferr := s.Weather.HourlyForecast(r.Context(), loc, hours)
	if ferr != nil {
		Error(w, r, ferr)
		return
	}

	found := windows.FindWith(s.Registry, samples, activity, opts)
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]any{
		"windows": found,
		"count":   len(found),
	}})
}

// HandleProfiles lists the registered activity profiles.
//
// GET /v1/profiles
func (s *Server) HandleProfiles(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]any{
		"profiles": s.Registry.Names(),
		"default":  scoring.DefaultProfileName,
	}})
}

// HandleAlertHistory returns a user's sent alerts, newest first.
//
// GET /v1/alerts/history?user_id=&type=&limit=
func (s *Server) HandleAlertHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField, "user_id is required", nil))
		return
	}

	limit, err := intParam(r, "limit", defaultHistoryLimit)
	if err != nil {
		Error(w, r, err)
		return
	}
	if limit < 1 || limit > maxHistoryLimit {
		Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidLimit, "limit must be between 1 and 100", nil))
		return
	}

	alertType := types.AlertType(r.URL.Query().Get("type"))

	records, herr := s.Tracker.History(r.Context(), userID, limit, alertType)
	if herr != nil {
		Error(w, r, herr)
		return
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]any{
		"alerts": records,
		"count":  len(records),
	}})
}

// parseLocation extracts and validates lat/lon query parameters.
func parseLocation(r *http.Request) (types.Location, error) {
	q := r.URL.Query()

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		return types.Location{}, types.NewAppError(
			types.ErrCodeValidationInvalidLat,
			"lat must be a number between -90 and 90",
			err,
		)
	}

	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		return types.Location{}, types.NewAppError(
			types.ErrCodeValidationInvalidLon,
			"lon must be a number between -180 and 180",
			err,
		)
	}

	return types.Location{Lat: lat, Lon: lon}, nil
}

// activityParam returns the activity profile name, defaulting when absent.
// Unknown names are accepted here; the registry falls back to the default
// profile so a typo degrades rather than fails.
func activityParam(r *http.Request) string {
	if v := r.URL.Query().Get("activity"); v != "" {
		return v
	}
	return scoring.DefaultProfileName
}

// intParam parses an optional integer query parameter.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidWindow,
			name+" must be an integer",
			err,
			map[string]any{"param": name, "value": raw},
		)
	}
	return v, nil
}
