package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"skywatch/internal/config"
	"skywatch/internal/types"
)

// Compile-time assertions against the domain interfaces.
var (
	_ types.WeatherSource      = (*WeatherClient)(nil)
	_ types.SpaceWeatherSource = (*WeatherClient)(nil)
)

// WeatherClient fetches hourly forecasts from an Open-Meteo-compatible API
// and the planetary Kp index from the NOAA SWPC products feed, normalizing
// both into domain types.
type WeatherClient struct {
	base            *BaseClient
	forecastBaseURL string
	spaceWeatherURL string
}

// NewWeatherClient creates a WeatherClient from the weather configuration.
func NewWeatherClient(cfg config.WeatherConfig, opts ...BaseClientOption) *WeatherClient {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &WeatherClient{
		base: NewBaseClient(
			httpClient,
			"weather-upstream",
			DefaultRetryPolicy(),
			cfg.UserAgent,
			cfg.RequestsPerSecond,
			opts...,
		),
		forecastBaseURL: cfg.BaseURL,
		spaceWeatherURL: cfg.SpaceWeatherURL,
	}
}

// hourlyResponse mirrors the Open-Meteo hourly forecast payload. All series
// are parallel arrays indexed by the time series.
type hourlyResponse struct {
	Hourly struct {
		Time                 []string  `json:"time"`
		Temperature          []float64 `json:"temperature_2m"`
		ApparentTemperature  []float64 `json:"apparent_temperature"`
		PrecipitationProb    []float64 `json:"precipitation_probability"`
		Precipitation        []float64 `json:"precipitation"`
		WindSpeed            []float64 `json:"wind_speed_10m"`
		UVIndex              []float64 `json:"uv_index"`
		Visibility           []float64 `json:"visibility"`
		CloudCover           []float64 `json:"cloud_cover"`
		WeatherCode          []int     `json:"weather_code"`
	} `json:"hourly"`
}

// HourlyForecast fetches up to hours of normalized hourly samples for the
// location. Optional series absent from the upstream response are left nil
// on the samples; the scorer substitutes neutral defaults.
func (c *WeatherClient) HourlyForecast(ctx context.Context, loc types.Location, hours int) ([]types.HourlySample, error) {
	if hours <= 0 {
		hours = 24
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(loc.Lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(loc.Lon, 'f', 4, 64))
	q.Set("hourly", "temperature_2m,apparent_temperature,precipitation_probability,precipitation,wind_speed_10m,uv_index,visibility,cloud_cover,weather_code")
	q.Set("forecast_hours", strconv.Itoa(hours))
	q.Set("timezone", "UTC")

	endpoint := fmt.Sprintf("%s/forecast?%s", c.forecastBaseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build forecast request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			fmt.Sprintf("forecast request returned %d", resp.StatusCode),
			nil,
		)
	}

	var payload hourlyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to decode forecast response", err)
	}

	return normalizeHourly(payload), nil
}

// normalizeHourly converts the parallel-array payload into HourlySamples.
// Required series shorter than the time series truncate the result; optional
// series shorter than the time series are treated as absent past their end.
func normalizeHourly(payload hourlyResponse) []types.HourlySample {
	h := payload.Hourly
	n := len(h.Time)
	for _, required := range [][]float64{h.Temperature, h.PrecipitationProb, h.Precipitation, h.WindSpeed} {
		if len(required) < n {
			n = len(required)
		}
	}

	samples := make([]types.HourlySample, 0, n)
	for i := 0; i < n; i++ {
		ts, err := time.Parse("2006-01-02T15:04", h.Time[i])
		if err != nil {
			continue
		}

		sample := types.HourlySample{
			Timestamp:         ts.UTC(),
			TemperatureC:      h.Temperature[i],
			PrecipProbability: h.PrecipitationProb[i],
			PrecipMM:          h.Precipitation[i],
			WindSpeedKmh:      h.WindSpeed[i],
			FeelsLikeC:        optionalAt(h.ApparentTemperature, i),
			UVIndex:           optionalAt(h.UVIndex, i),
			VisibilityM:       optionalAt(h.Visibility, i),
			CloudCoverPct:     optionalAt(h.CloudCover, i),
		}
		if i < len(h.WeatherCode) {
			sample.Condition = conditionForCode(h.WeatherCode[i])
		}
		samples = append(samples, sample)
	}
	return samples
}

func optionalAt(series []float64, i int) *float64 {
	if i >= len(series) {
		return nil
	}
	v := series[i]
	return &v
}

// conditionForCode collapses WMO weather codes into coarse condition labels.
func conditionForCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "partly_cloudy"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain"
	case code >= 85 && code <= 86:
		return "snow"
	case code >= 95:
		return "thunderstorm"
	default:
		return "cloudy"
	}
}

// CurrentKpIndex fetches the most recent planetary K-index observation from
// the SWPC products feed. The feed is a JSON array of string rows with a
// header row: [["time_tag","Kp","a_running","station_count"], ...].
func (c *WeatherClient) CurrentKpIndex(ctx context.Context) (float64, error) {
	endpoint := c.spaceWeatherURL + "/products/noaa-planetary-k-index.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build kp request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, types.NewAppError(
			types.ErrCodeUpstreamWeather,
			fmt.Sprintf("kp index request returned %d", resp.StatusCode),
			nil,
		)
	}

	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamWeather, "failed to decode kp index response", err)
	}
	if len(rows) < 2 || len(rows[len(rows)-1]) < 2 {
		return 0, types.NewAppError(types.ErrCodeUpstreamWeather, "kp index feed returned no observations", nil)
	}

	kp, err := strconv.ParseFloat(rows[len(rows)-1][1], 64)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeUpstreamWeather, "kp index feed returned a non-numeric value", err)
	}
	return kp, nil
}
