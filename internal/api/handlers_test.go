package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skywatch/internal/alerts"
	"skywatch/internal/config"
	"skywatch/internal/types"
)

// stubWeather serves canned forecast samples.
type stubWeather struct {
	samples []types.HourlySample
	err     error
}

func (s *stubWeather) HourlyForecast(_ context.Context, _ types.Location, _ int) ([]types.HourlySample, error) {
	return s.samples, s.err
}

// stubStore is a minimal in-memory types.AlertStore for wiring a Tracker.
type stubStore struct {
	records []*types.AlertRecord
	listErr error
}

func (s *stubStore) Get(context.Context, string, string) (*types.AlertRecord, error) {
	return nil, types.ErrRecordNotFound
}
func (s *stubStore) UpsertReplace(context.Context, *types.AlertRecord) error { return nil }
func (s *stubStore) Delete(context.Context, string, string) error { return nil }
func (s *stubStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *stubStore) ListByUser(_ context.Context, userID string, _ types.AlertType) ([]*types.AlertRecord, error) {
	return s.records, s.listErr
}

// stubLogger satisfies types.Logger for the tracker.
type stubLogger struct{}

func (stubLogger) Info(string, ...any) {}

func (stubLogger) Error(string, ...any) {}

func (stubLogger) Warn(string, ...any) {}

func (stubLogger) With(...any) types.Logger { return stubLogger{} }

// pingFn adapts a func to the Pinger interface.
type pingFn func(ctx context.Context) error

func (f pingFn) Ping(ctx context.Context) error { return f(ctx) }

func fairSample() types.HourlySample {
	return types.HourlySample{
		Timestamp:         time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		TemperatureC:      15,
		PrecipProbability: 0,
		PrecipMM:          0,
		WindSpeedKmh:      10,
	}
}

func newTestServer(t *testing.T, weather types.WeatherSource, store types.AlertStore, db Pinger) *Server {
	t.Helper()
	if store == nil {
		store = &stubStore{}
	}
	cfg := &config.Config{
		Environment: "local",
		Build:       config.BuildInfo{Version: "test"},
	}
	tracker := alerts.NewTracker(store, types.RealClock{}, stubLogger{}, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := NewServer(cfg, weather, nil, tracker, db, logger)
	require.NoError(t, err)
	return srv
}

func doRequest(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHandleScore_ReturnsScore(t *testing.T) {
	srv := newTestServer(t, &stubWeather{samples: []types.HourlySample{fairSample()}}, nil, nil)

	rec := doRequest(t, srv, "/v1/conditions/score?lat=59.91&lon=10.75&activity=hiking")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data types.ScoreResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 100, resp.Data.Score)
	assert.Equal(t, types.RatingExcellent, resp.Data.Rating)
	assert.NotEmpty(t, resp.Data.Recommendation)
}

func TestHandleScore_RejectsInvalidLatitude(t *testing.T) {
	srv := newTestServer(t, &stubWeather{samples: []types.HourlySample{fairSample()}}, nil, nil)

	rec := doRequest(t, srv, "/v1/conditions/score?lat=91&lon=10")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationInvalidLat), detail.Code)
	assert.NotEmpty(t, detail.RequestID)
}

func TestHandleScore_EmptyForecastIsUpstreamError(t *testing.T) {
	srv := newTestServer(t, &stubWeather{}, nil, nil)

	rec := doRequest(t, srv, "/v1/conditions/score?lat=60&lon=10")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeUpstreamWeather), detail.Code)
}

func TestHandleScore_UpstreamFailurePropagatesCode(t *testing.T) {
	weather := &stubWeather{err: types.NewAppError(types.ErrCodeUpstreamRateLimited, "upstream rate limit exceeded", nil)}
	srv := newTestServer(t, weather, nil, nil)

	rec := doRequest(t, srv, "/v1/conditions/score?lat=60&lon=10")
	require.Equal(t, http.StatusBadGateway, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeUpstreamRateLimited), detail.Code)
}

func TestHandleWindows_ReturnsWindows(t *testing.T) {
	samples := make([]types.HourlySample, 4)
	base := time.Date(2026, 6, 1, 6, 0, 0, 0, time.UTC)
	for i := range samples {
		s := fairSample()
		s.Timestamp = base.Add(time.Duration(i) * time.Hour)
		samples[i] = s
	}
	srv := newTestServer(t, &stubWeather{samples: samples}, nil, nil)

	rec := doRequest(t, srv, "/v1/conditions/windows?lat=60&lon=10&hours=4")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Windows []types.Window `json:"windows"`
			Count   int            `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Equal(t, 1, resp.Data.Count)
	assert.Equal(t, 100, resp.Data.Windows[0].PeakScore)
	assert.Equal(t, 240, resp.Data.Windows[0].DurationMinutes)
}

func TestHandleWindows_RejectsOutOfRangeHours(t *testing.T) {
	srv := newTestServer(t, &stubWeather{}, nil, nil)

	rec := doRequest(t, srv, "/v1/conditions/windows?lat=60&lon=10&hours=500")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationInvalidWindow), detail.Code)
	assert.Equal(t, float64(500), detail.Details["hours"])
}

func TestHandleWindows_RejectsNonIntegerParam(t *testing.T) {
	srv := newTestServer(t, &stubWeather{}, nil, nil)

	rec := doRequest(t, srv, "/v1/conditions/windows?lat=60&lon=10&min_score=high")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, "min_score", detail.Details["param"])
}

func TestHandleWindows_RejectsOutOfRangeMinScore(t *testing.T) {
	srv := newTestServer(t, &stubWeather{}, nil, nil)

	rec := doRequest(t, srv, "/v1/conditions/windows?lat=60&lon=10&min_score=150")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProfiles_ListsBuiltins(t *testing.T) {
	srv := newTestServer(t, &stubWeather{}, nil, nil)

	rec := doRequest(t, srv, "/v1/profiles")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Profiles []string `json:"profiles"`
			Default  string   `json:"default"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "outdoor", resp.Data.Default)
	assert.Contains(t, resp.Data.Profiles, "hiking")
	assert.Contains(t, resp.Data.Profiles, "aurora")
}

func TestHandleAlertHistory_RequiresUserID(t *testing.T) {
	srv := newTestServer(t, &stubWeather{}, nil, nil)

	rec := doRequest(t, srv, "/v1/alerts/history")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), detail.Code)
}

func TestHandleAlertHistory_RejectsOversizedLimit(t *testing.T) {
	srv := newTestServer(t, &stubWeather{}, nil, nil)

	rec := doRequest(t, srv, "/v1/alerts/history?user_id=user-1&limit=500")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationInvalidLimit), detail.Code)
}

func TestHandleAlertHistory_ReturnsRecords(t *testing.T) {
	store := &stubStore{records: []*types.AlertRecord{
		{
			UserID:    "user-1",
			RowKey:    "aurora:kp6",
			AlertType: types.AlertTypeAurora,
			DedupKey:  "kp6",
			SentAt:    time.Date(2026, 3, 14, 21, 0, 0, 0, time.UTC),
			SendCount: 1,
		},
	}}
	srv := newTestServer(t, &stubWeather{}, store, nil)

	rec := doRequest(t, srv, "/v1/alerts/history?user_id=user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Alerts []*types.AlertRecord `json:"alerts"`
			Count  int                  `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	require.Equal(t, 1, resp.Data.Count)
	assert.Equal(t, "aurora:kp6", resp.Data.Alerts[0].RowKey)
}

func TestHandleAlertHistory_StoreFailureIs500(t *testing.T) {
	store := &stubStore{listErr: errors.New("connection refused")}
	srv := newTestServer(t, &stubWeather{}, store, nil)

	rec := doRequest(t, srv, "/v1/alerts/history?user_id=user-1")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// Raw errors never leak to clients.
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), detail.Code)
	assert.NotContains(t, detail.Message, "connection refused")
}

func TestHandleHealth_HealthyWithDatabase(t *testing.T) {
	srv := newTestServer(t, &stubWeather{}, nil, pingFn(func(context.Context) error { return nil }))

	rec := doRequest(t, srv, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "test", resp.Version)
	assert.Equal(t, "healthy", resp.Components["database"].Status)
}

func TestHandleHealth_UnreachableDatabaseIs503(t *testing.T) {
	srv := newTestServer(t, &stubWeather{}, nil, pingFn(func(context.Context) error {
		return errors.New("dial timeout")
	}))

	rec := doRequest(t, srv, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["database"].Status)
}

func TestMiddleware_SetsSecurityAndRequestIDHeaders(t *testing.T) {
	srv := newTestServer(t, &stubWeather{}, nil, nil)

	rec := doRequest(t, srv, "/v1/profiles")

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestMiddleware_ReusesIncomingRequestID(t *testing.T) {
	srv := newTestServer(t, &stubWeather{samples: []types.HourlySample{fairSample()}}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/profiles", nil)
	req.Header.Set("X-Request-Id", "upstream-trace-1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "upstream-trace-1", rec.Header().Get("X-Request-Id"))
}

func TestRecoverer_ConvertsPanicTo500(t *testing.T) {
	srv := newTestServer(t, &stubWeather{}, nil, nil)
	srv.router.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	rec := doRequest(t, srv, "/boom")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), detail.Code)
}

func TestNewServer_RequiresWeatherSource(t *testing.T) {
	cfg := &config.Config{Environment: "local"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewServer(cfg, nil, nil, nil, nil, logger)
	assert.Error(t, err)
}
