package regional

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmosguard/atmosguard/internal/environment"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL regional repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save upserts the reading for r.Region.
func (r *PostgresRepository) Save(ctx context.Context, reading Reading) error {
	v := reading.Reading
	_, err := r.pool.Exec(ctx, `
		INSERT INTO regional_readings (region, lat, lon, temperature, humidity, pm25, aqi, status, refreshed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (region) DO UPDATE
		SET lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			temperature = EXCLUDED.temperature,
			humidity = EXCLUDED.humidity,
			pm25 = EXCLUDED.pm25,
			aqi = EXCLUDED.aqi,
			status = EXCLUDED.status,
			refreshed_at = EXCLUDED.refreshed_at
	`,
		reading.Region, reading.Coordinate.Lat, reading.Coordinate.Lon,
		v.Temperature, v.Humidity, v.PM25, v.AQI, string(v.Status), reading.RefreshedAt,
	)
	if err != nil {
		return fmt.Errorf("save regional reading %q: %w", reading.Region, err)
	}
	return nil
}

// List returns every reading ordered by region name.
func (r *PostgresRepository) List(ctx context.Context) ([]Reading, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT region, lat, lon, temperature, humidity, pm25, aqi, status, refreshed_at
		FROM regional_readings
		ORDER BY region
	`)
	if err != nil {
		return nil, fmt.Errorf("list regional readings: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var (
			reading Reading
			status  string
		)
		v := &reading.Reading
		if err := rows.Scan(
			&reading.Region, &reading.Coordinate.Lat, &reading.Coordinate.Lon,
			&v.Temperature, &v.Humidity, &v.PM25, &v.AQI, &status, &reading.RefreshedAt,
		); err != nil {
			return nil, fmt.Errorf("scan regional reading: %w", err)
		}
		v.Status = environment.Status(status)
		out = append(out, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regional readings: %w", err)
	}
	return out, nil
}
