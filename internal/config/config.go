// Package config defines the global configuration for the skywatch platform.
// Configuration is loaded once at process initialization (Lambda cold start)
// and is immutable thereafter, following 12-Factor principles. Any missing
// required value or invalid format fails startup immediately.
package config

import (
	"time"

	"skywatch/internal/types"
)

// SecretString aliases types.SecretString, the redacted secret type used in
// configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"skywatch"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	Database DatabaseConfig
	AWS      AWSConfig
	Weather  WeatherConfig
	Alerts   AlertsConfig

	// Build metadata injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region          string `envconfig:"AWS_REGION" default:"us-east-1"`
	DispatchQueue   string `envconfig:"SQS_DISPATCH_QUEUE" validate:"omitempty,url"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Skywatch"`

	// LocalStack support (empty in prod).
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// WeatherConfig holds upstream weather data source settings.
type WeatherConfig struct {
	BaseURL         string        `envconfig:"WEATHER_BASE_URL" default:"https://api.open-meteo.com/v1"`
	SpaceWeatherURL string        `envconfig:"SPACE_WEATHER_URL" default:"https://services.swpc.noaa.gov"`
	Timeout         time.Duration `envconfig:"WEATHER_TIMEOUT" default:"10s"`
	UserAgent       string        `envconfig:"WEATHER_USER_AGENT" default:"Skywatch/1.0"`
	// RequestsPerSecond caps outbound calls to the weather provider.
	RequestsPerSecond float64       `envconfig:"WEATHER_RPS" default:"5"`
	CacheTTL          time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"10m"`
}

// AlertsConfig holds cooldown and retention tuning for the dedup tracker.
type AlertsConfig struct {
	DefaultCooldown time.Duration `envconfig:"ALERT_DEFAULT_COOLDOWN" default:"12h"`
	RetentionDays   int           `envconfig:"ALERT_RETENTION_DAYS" default:"30" validate:"min=1"`
	ArchivePath     string        `envconfig:"ALERT_ARCHIVE_PATH"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}
