// Package main provides the entrypoint for the AtmosGuard API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/api"
	"github.com/atmosguard/atmosguard/internal/api/middleware"
	"github.com/atmosguard/atmosguard/internal/auth"
	"github.com/atmosguard/atmosguard/internal/config"
	"github.com/atmosguard/atmosguard/internal/dashboard"
	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geocache"
	"github.com/atmosguard/atmosguard/internal/geolocation"
	"github.com/atmosguard/atmosguard/internal/nominatim"
	"github.com/atmosguard/atmosguard/internal/openmeteo"
	"github.com/atmosguard/atmosguard/internal/osrm"
	"github.com/atmosguard/atmosguard/internal/provider/resilience"
	"github.com/atmosguard/atmosguard/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "atmosguard-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if config.LoadDotEnv() {
		log.Info().Msg("loaded .env file")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting AtmosGuard API")

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
		MetricInterval: cfg.OTelMetricInterval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to open storage")
	}
	defer store.Close()

	// Upstream clients share one health registry.
	registry := resilience.NewRegistry()

	weather := openmeteo.NewClient(openmeteo.ClientConfig{
		ForecastURL:   cfg.OpenMeteoForecastURL,
		AirQualityURL: cfg.OpenMeteoAirQualityURL,
		Timeout:       cfg.UpstreamTimeout,
		Registry:      registry,
		Metrics:       providerMetrics,
		Logger:        log,
	})

	geocoder := geocache.NewCachingGeocoder(
		nominatim.NewClient(nominatim.ClientConfig{
			BaseURL:   cfg.NominatimURL,
			UserAgent: cfg.NominatimUserAgent,
			Timeout:   cfg.UpstreamTimeout,
			Registry:  registry,
			Metrics:   providerMetrics,
			Logger:    log,
		}),
		store.Geocodes,
		geocache.WithLogger(log),
		geocache.WithMetrics(providerMetrics),
		geocache.WithProviderName(nominatim.ProviderName),
	)

	router := osrm.NewClient(osrm.ClientConfig{
		BaseURL:  cfg.OSRMURL,
		Timeout:  cfg.UpstreamTimeout,
		Registry: registry,
		Metrics:  providerMetrics,
		Logger:   log,
	})

	envService := environment.NewService(environment.ServiceConfig{
		Weather:        weather,
		AirQuality:     weather,
		Geocoder:       geocoder,
		Router:         router,
		Logger:         log,
		RequestTimeout: cfg.UpstreamTimeout,
	})
	log.Info().
		Strs("providers", registry.Names()).
		Msg("environment service initialized")

	geolocator := geolocation.New(log)

	sessions := dashboard.NewStore(dashboard.StoreConfig{
		Session: dashboard.Config{
			Fetcher:    envService,
			Geolocator: geolocator,
			Logger:     log,
		},
		TTL: cfg.SessionTTL,
	})
	defer sessions.Close()

	tokens := auth.NewTokenService(auth.TokenConfig{SigningKey: cfg.OperatorTokenKey})
	if !tokens.Enabled() {
		log.Warn().Msg("OPERATOR_TOKEN_KEY not set - admin and status endpoints are disabled")
	}

	// Create router with configuration
	handler := api.NewRouter(api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      metrics,
		RequireTLS:   cfg.RequireTLS,
		Environment:  envService,
		Geolocator:   geolocator,
		Sessions:     sessions,
		Regions:      store.Regions,
		GeocodeCache: geocoder,
		Tokens:       tokens,
		Registry:     registry,
		Checks:       store.Checks,
	})

	// WriteTimeout stays zero: session streams are long-lived WebSocket connections.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Hijacked stream connections are not tracked by Shutdown; closing the
	// sessions ends them.
	sessions.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
