// Package config reads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// ErrInvalidStorageBackend is returned for an unknown STORAGE_BACKEND.
var ErrInvalidStorageBackend = errors.New("invalid storage backend")

// Config holds configuration shared by the API server and the worker.
// Database connection settings are read separately by database.ConfigFromEnv.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	OTelEnabled        bool
	OTLPEndpoint       string
	OTelSampleRatio    float64
	OTelMetricInterval time.Duration

	OpenMeteoForecastURL   string
	OpenMeteoAirQualityURL string
	NominatimURL           string
	NominatimUserAgent     string
	OSRMURL                string
	UpstreamTimeout        time.Duration

	SessionTTL     time.Duration
	StorageBackend string
	SQLitePath     string

	OperatorTokenKey string
	RequireTLS       bool

	PubSubProject      string
	PubSubSubscription string
	RefreshInterval    time.Duration

	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string
}

// LoadDotEnv loads variables from a .env file in the working directory if one
// exists. Variables already set in the environment win.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

// FromEnv reads Config from the environment, applying defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:     getEnvOrDefault("APP_PORT", "8080"),
		Env:      getEnvOrDefault("APP_ENV", "development"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),

		OTelEnabled:  os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		OpenMeteoForecastURL:   os.Getenv("OPEN_METEO_FORECAST_URL"),
		OpenMeteoAirQualityURL: os.Getenv("OPEN_METEO_AIR_QUALITY_URL"),
		NominatimURL:           os.Getenv("NOMINATIM_URL"),
		NominatimUserAgent:     os.Getenv("NOMINATIM_USER_AGENT"),
		OSRMURL:                os.Getenv("OSRM_URL"),

		StorageBackend: getEnvOrDefault("STORAGE_BACKEND", StorageMemory),
		SQLitePath:     getEnvOrDefault("SQLITE_PATH", "atmosguard.db"),

		OperatorTokenKey: os.Getenv("OPERATOR_TOKEN_KEY"),
		RequireTLS:       os.Getenv("REQUIRE_TLS") == "true",

		PubSubProject:      os.Getenv("PUBSUB_PROJECT"),
		PubSubSubscription: os.Getenv("PUBSUB_SUBSCRIPTION"),

		MQTTBrokerURL:   os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:    getEnvOrDefault("MQTT_CLIENT_ID", "atmosguard-worker"),
		MQTTTopicPrefix: getEnvOrDefault("MQTT_TOPIC_PREFIX", "atmosguard"),
	}

	var err error
	if cfg.UpstreamTimeout, err = durationFromEnv("UPSTREAM_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = durationFromEnv("SESSION_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RefreshInterval, err = durationFromEnv("REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.OTelMetricInterval, err = durationFromEnv("OTEL_METRIC_EXPORT_INTERVAL", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.OTelSampleRatio, err = ratioFromEnv("OTEL_TRACES_SAMPLER_ARG", 1); err != nil {
		return Config{}, err
	}

	switch cfg.StorageBackend {
	case StorageMemory, StoragePostgres, StorageSQLite:
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidStorageBackend, cfg.StorageBackend)
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		// Plain integers are seconds.
		secs, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, fmt.Errorf("parse %s: %w", key, err)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse %s: must be positive, got %s", key, raw)
	}
	return d, nil
}

func ratioFromEnv(key string, def float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("parse %s: must be within [0, 1], got %s", key, raw)
	}
	return v, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
