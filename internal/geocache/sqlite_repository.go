package geocache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atmosguard/atmosguard/internal/geo"
)

// SQLiteRepository is a SQLite implementation of Repository for single-node deployments.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a geocode cache on an open SQLite handle
// (see database.OpenSQLite).
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Get returns the cached coordinate for query.
func (r *SQLiteRepository) Get(ctx context.Context, query string) (geo.Coordinate, bool, error) {
	var c geo.Coordinate
	err := r.db.QueryRowContext(ctx,
		`SELECT lat, lon FROM geocode_cache WHERE query = ?`,
		Normalize(query),
	).Scan(&c.Lat, &c.Lon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return geo.Coordinate{}, false, nil
		}
		return geo.Coordinate{}, false, fmt.Errorf("get geocode cache: %w", err)
	}
	return c, true, nil
}

// Put stores the coordinate for query, replacing any previous entry.
func (r *SQLiteRepository) Put(ctx context.Context, query string, coord geo.Coordinate) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (query, lat, lon)
		VALUES (?, ?, ?)
		ON CONFLICT (query) DO UPDATE
		SET lat = excluded.lat,
			lon = excluded.lon,
			created_at = CURRENT_TIMESTAMP
	`, Normalize(query), coord.Lat, coord.Lon)
	if err != nil {
		return fmt.Errorf("put geocode cache %q: %w", query, err)
	}
	return nil
}

// Clear removes every entry.
func (r *SQLiteRepository) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM geocode_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear geocode cache: %w", err)
	}
	return res.RowsAffected()
}
