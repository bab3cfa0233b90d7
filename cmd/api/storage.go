package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/api/handler"
	"github.com/atmosguard/atmosguard/internal/config"
	"github.com/atmosguard/atmosguard/internal/database"
	"github.com/atmosguard/atmosguard/internal/geocache"
	"github.com/atmosguard/atmosguard/internal/regional"
)

// storage bundles the repositories for the configured backend.
type storage struct {
	Geocodes geocache.Repository
	Regions  regional.Repository
	Checks   []handler.DependencyCheck

	close func()
}

func (s *storage) Close() {
	if s.close != nil {
		s.close()
	}
}

func openStorage(ctx context.Context, cfg config.Config, log zerolog.Logger) (*storage, error) {
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		dbConfig := database.ConfigFromEnv()
		pool, err := database.Connect(ctx, dbConfig)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Msg("database connected")

		return &storage{
			Geocodes: geocache.NewPostgresRepository(pool),
			Regions:  regional.NewPostgresRepository(pool),
			Checks:   []handler.DependencyCheck{{Name: "postgres", Check: pool.Ping}},
			close:    pool.Close,
		}, nil

	case config.StorageSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("sqlite database opened")

		return &storage{
			Geocodes: geocache.NewSQLiteRepository(db),
			Regions:  regional.NewSQLiteRepository(db),
			Checks:   []handler.DependencyCheck{{Name: "sqlite", Check: db.PingContext}},
			close: func() {
				if err := db.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close sqlite database")
				}
			},
		}, nil

	case config.StorageMemory:
		log.Warn().Msg("using in-memory storage - geocode cache and regional board are not persisted")
		return &storage{
			Geocodes: geocache.NewInMemoryRepository(),
			Regions:  regional.NewInMemoryRepository(),
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStorageBackend, cfg.StorageBackend)
	}
}
