package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/config"
	"github.com/atmosguard/atmosguard/internal/database"
	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/openmeteo"
	"github.com/atmosguard/atmosguard/internal/provider/resilience"
	"github.com/atmosguard/atmosguard/internal/publisher"
	"github.com/atmosguard/atmosguard/internal/regional"
	"github.com/atmosguard/atmosguard/internal/telemetry"
	"github.com/atmosguard/atmosguard/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "atmosguard-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	config.LoadDotEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	log.Info().Str("build_time", BuildTime).Msg("starting AtmosGuard worker")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	repo, closeRepo, err := openRegions(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("failed to open storage")
	}
	defer closeRepo()

	registry := resilience.NewRegistry()
	upstream := openmeteo.NewClient(openmeteo.ClientConfig{
		ForecastURL:   cfg.OpenMeteoForecastURL,
		AirQualityURL: cfg.OpenMeteoAirQualityURL,
		Timeout:       cfg.UpstreamTimeout,
		Registry:      registry,
		Metrics:       providerMetrics,
		Logger:        log,
	})
	envService := environment.NewService(environment.ServiceConfig{
		Weather:        upstream,
		AirQuality:     upstream,
		Logger:         log,
		RequestTimeout: cfg.UpstreamTimeout,
	})

	pub := newPublisher(ctx, cfg, log)
	defer pub.Close()

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:     worker.DefaultRefreshConfig(),
		Logger:     log,
		Fetcher:    envService,
		Repository: repo,
		Publisher:  pub,
	})

	// Worker also exposes health endpoint for Cloud Run
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]interface{}{
			"status":  "healthy",
			"version": Version,
			"refresh": job.MetricsSnapshot(),
		}
		if !registry.Healthy() {
			body["status"] = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Pub/Sub triggers refreshes when a subscription is configured; otherwise a ticker does.
	if cfg.PubSubSubscription != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProject,
			SubscriptionName: cfg.PubSubSubscription,
			RefreshJob:       job,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() {
			if err := handler.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		go job.RunEvery(ctx, cfg.RefreshInterval)
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}

func openRegions(ctx context.Context, cfg config.Config, log zerolog.Logger) (regional.Repository, func(), error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pool, err := database.Connect(ctx, database.ConfigFromEnv())
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return regional.NewPostgresRepository(pool), pool.Close, nil

	case config.StorageSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return regional.NewSQLiteRepository(db), closeDB(db, log), nil

	case config.StorageMemory:
		log.Warn().Msg("using in-memory storage - the API will not see refreshed regions")
		return regional.NewInMemoryRepository(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrInvalidStorageBackend, cfg.StorageBackend)
	}
}

func closeDB(db *sql.DB, log zerolog.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close sqlite database")
		}
	}
}

// newPublisher connects to the MQTT broker when one is configured. A broker
// that cannot be reached at start-up does not stop the worker.
func newPublisher(ctx context.Context, cfg config.Config, log zerolog.Logger) publisher.Publisher {
	if cfg.MQTTBrokerURL == "" {
		return publisher.NoopPublisher{}
	}

	mqttPub := publisher.NewMQTTPublisher(publisher.MQTTConfig{
		BrokerURL:   cfg.MQTTBrokerURL,
		ClientID:    cfg.MQTTClientID,
		TopicPrefix: cfg.MQTTTopicPrefix,
		Logger:      log,
	})

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mqttPub.Connect(connectCtx); err != nil {
		log.Warn().Err(err).Str("broker", cfg.MQTTBrokerURL).Msg("mqtt broker unavailable, will keep retrying")
	} else {
		log.Info().Str("broker", cfg.MQTTBrokerURL).Msg("mqtt publisher connected")
	}
	return mqttPub
}
