package geocache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmosguard/atmosguard/internal/geo"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL geocode cache.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get returns the cached coordinate for query.
func (r *PostgresRepository) Get(ctx context.Context, query string) (geo.Coordinate, bool, error) {
	var c geo.Coordinate
	err := r.pool.QueryRow(ctx,
		`SELECT lat, lon FROM geocode_cache WHERE query = $1`,
		Normalize(query),
	).Scan(&c.Lat, &c.Lon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return geo.Coordinate{}, false, nil
		}
		return geo.Coordinate{}, false, fmt.Errorf("get geocode cache: %w", err)
	}
	return c, true, nil
}

// Put stores the coordinate for query, replacing any previous entry.
func (r *PostgresRepository) Put(ctx context.Context, query string, coord geo.Coordinate) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO geocode_cache (query, lat, lon)
		VALUES ($1, $2, $3)
		ON CONFLICT (query) DO UPDATE
		SET lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			created_at = now()
	`, Normalize(query), coord.Lat, coord.Lon)
	if err != nil {
		return fmt.Errorf("put geocode cache %q: %w", query, err)
	}
	return nil
}

// Clear removes every entry.
func (r *PostgresRepository) Clear(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM geocode_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear geocode cache: %w", err)
	}
	return tag.RowsAffected(), nil
}
