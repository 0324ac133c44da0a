// Package config loads process configuration from the environment.
//
// Values are read with envconfig after an optional .env file has been
// applied, then checked with validator. Both binaries (api and worker)
// share the same struct; sections a binary does not use are simply
// ignored by it.
package config

import (
	"fmt"
	"time"
)

// Environment names accepted in APP_ENV.
const (
	EnvLocal       = "local"
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config is the root configuration.
type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	Auth         AuthConfig
	Database     DatabaseConfig
	Providers    ProvidersConfig
	Notification NotificationConfig
	Forecast     ForecastConfig
	Worker       WorkerConfig
	Telemetry    TelemetryConfig
}

// AppConfig holds process-wide settings.
type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"development" validate:"required,oneof=local development staging production"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"required,oneof=trace debug info warn error"`
}

// IsLocal reports whether the process runs on a developer machine.
func (a AppConfig) IsLocal() bool {
	return a.Env == EnvLocal
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port            int           `envconfig:"APP_PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"30s"`

	// PublicRateLimit is requests per minute per IP on the monitor endpoint.
	PublicRateLimit int `envconfig:"HTTP_PUBLIC_RATE_LIMIT" default:"60" validate:"min=1"`
	// UserRateLimit is requests per minute per authenticated subject.
	UserRateLimit int `envconfig:"HTTP_USER_RATE_LIMIT" default:"120" validate:"min=1"`

	// RequireTLS rejects plain HTTP requests not forwarded from a TLS proxy.
	RequireTLS bool `envconfig:"HTTP_REQUIRE_TLS" default:"false"`
}

// Addr returns the listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSigningKey string `envconfig:"JWT_SIGNING_KEY" validate:"required,min=16"`
	JWTIssuer     string `envconfig:"JWT_ISSUER" default:"aqiguard"`
	JWTAudience   string `envconfig:"JWT_AUDIENCE" default:"aqiguard-api"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	// InMemory skips PostgreSQL and keeps users, devices and history in
	// process memory. Meant for local runs and demos.
	InMemory bool `envconfig:"DB_IN_MEMORY" default:"false"`

	Host            string        `envconfig:"DB_HOST" default:"localhost" validate:"required"`
	Port            int           `envconfig:"DB_PORT" default:"5432" validate:"min=1,max=65535"`
	User            string        `envconfig:"DB_USER" default:"aqiguard" validate:"required"`
	Password        string        `envconfig:"DB_PASSWORD" default:"localdev"`
	Name            string        `envconfig:"DB_NAME" default:"aqiguard" validate:"required"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10" validate:"min=1,max=200"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"2" validate:"min=0,ltefield=MaxOpenConns"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// ProvidersConfig configures the upstream data providers.
type ProvidersConfig struct {
	OpenAQBaseURL string `envconfig:"OPENAQ_BASE_URL" default:"https://api.openaq.org" validate:"required,url"`
	OpenAQAPIKey  string `envconfig:"OPENAQ_API_KEY"`

	// TEMPOEndpoint is optional; without it only OpenAQ is queried.
	TEMPOEndpoint string `envconfig:"TEMPO_ENDPOINT" validate:"omitempty,url"`
	TEMPOAPIKey   string `envconfig:"TEMPO_API_KEY"`

	OpenWeatherMapBaseURL string `envconfig:"OPENWEATHERMAP_BASE_URL" default:"https://api.openweathermap.org/data/2.5" validate:"required,url"`
	OpenWeatherMapAPIKey  string `envconfig:"OPENWEATHERMAP_API_KEY"`

	StationRadiusMeters int           `envconfig:"AQ_STATION_RADIUS_METERS" default:"2000" validate:"min=1,max=100000"`
	CacheTTL            time.Duration `envconfig:"PROVIDER_CACHE_TTL" default:"10m"`
}

// Fallback store kinds.
const (
	FallbackFile   = "file"
	FallbackSQLite = "sqlite"
)

// NotificationConfig configures alert channels and the fallback store.
type NotificationConfig struct {
	SendGridAPIKey  string `envconfig:"SENDGRID_API_KEY"`
	SendGridBaseURL string `envconfig:"SENDGRID_BASE_URL" default:"https://api.sendgrid.com" validate:"required,url"`
	FromEmail       string `envconfig:"ALERT_FROM_EMAIL" default:"alerts@aqiguard.local" validate:"required,email"`
	FromName        string `envconfig:"ALERT_FROM_NAME" default:"AQI Guard"`

	// PushTopic is the Pub/Sub topic push alerts are published to. Push is
	// disabled when empty.
	PushTopic string `envconfig:"PUSH_TOPIC"`

	FallbackStore string `envconfig:"FALLBACK_STORE" default:"sqlite" validate:"oneof=file sqlite"`
	FallbackDir   string `envconfig:"FALLBACK_DIR" default:"./data/failed_messages"`
	FallbackDB    string `envconfig:"FALLBACK_SQLITE_PATH" default:"./data/fallback.db"`
}

// EmailEnabled reports whether SendGrid credentials are present.
func (n NotificationConfig) EmailEnabled() bool {
	return n.SendGridAPIKey != ""
}

// ForecastConfig configures the forecast model.
type ForecastConfig struct {
	// ModelPath points at a JSON linear model. The built-in model is used
	// when empty.
	ModelPath      string  `envconfig:"FORECAST_MODEL_PATH"`
	SolarRadiation float64 `envconfig:"FORECAST_SOLAR_RADIATION" default:"200" validate:"gte=0"`
}

// WorkerConfig configures the background worker.
type WorkerConfig struct {
	ProjectID    string `envconfig:"GCP_PROJECT_ID"`
	Subscription string `envconfig:"WORKER_SUBSCRIPTION" default:"aqiguard-jobs"`
	Concurrency  int    `envconfig:"WORKER_CONCURRENCY" default:"4" validate:"min=1,max=64"`

	RedeliveryInterval time.Duration `envconfig:"REDELIVERY_INTERVAL" default:"15m"`
	RedeliveryBatch    int           `envconfig:"REDELIVERY_BATCH" default:"100" validate:"min=1"`

	// SweepInterval schedules a full evaluate_subjects run. Zero disables it.
	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"0s"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
}
