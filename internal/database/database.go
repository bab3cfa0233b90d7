// Package database provides connection management for the Postgres and
// SQLite storage backends, and the schema both of them share.
package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config describes the Postgres connection. URL, when set, wins over the
// individual fields.
type Config struct {
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// ConfigFromEnv reads DATABASE_URL or the DB_* variables. Unparseable
// numbers fall back to their defaults.
func ConfigFromEnv() Config {
	return Config{
		URL:             os.Getenv("DATABASE_URL"),
		Host:            envString("DB_HOST", "localhost"),
		Port:            envInt("DB_PORT", 5432),
		User:            envString("DB_USER", "atmosguard"),
		Password:        envString("DB_PASSWORD", "localdev"),
		Database:        envString("DB_NAME", "atmosguard"),
		SSLMode:         envString("DB_SSL_MODE", "disable"),
		MaxConns:        int32(envInt("DB_MAX_CONNS", 10)), //nolint:gosec // small config value
		MinConns:        int32(envInt("DB_MIN_CONNS", 1)),  //nolint:gosec // small config value
		ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// ConnectionString returns the pgx DSN, escaping credentials.
func (c Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Connect opens a pool and pings it.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS geocode_cache (
		query      TEXT PRIMARY KEY,
		lat        DOUBLE PRECISION NOT NULL,
		lon        DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS regional_readings (
		region       TEXT PRIMARY KEY,
		lat          DOUBLE PRECISION NOT NULL,
		lon          DOUBLE PRECISION NOT NULL,
		temperature  INTEGER,
		humidity     INTEGER,
		pm25         DOUBLE PRECISION,
		aqi          INTEGER,
		status       TEXT NOT NULL,
		refreshed_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates any missing tables. It is safe to call on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return def
}
