package regional

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atmosguard/atmosguard/internal/environment"
)

// SQLiteRepository is a SQLite implementation of Repository.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a regional repository on an open SQLite handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save upserts the reading for r.Region.
func (r *SQLiteRepository) Save(ctx context.Context, reading Reading) error {
	v := reading.Reading
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO regional_readings (region, lat, lon, temperature, humidity, pm25, aqi, status, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (region) DO UPDATE
		SET lat = excluded.lat,
			lon = excluded.lon,
			temperature = excluded.temperature,
			humidity = excluded.humidity,
			pm25 = excluded.pm25,
			aqi = excluded.aqi,
			status = excluded.status,
			refreshed_at = excluded.refreshed_at
	`,
		reading.Region, reading.Coordinate.Lat, reading.Coordinate.Lon,
		nullInt(v.Temperature), nullInt(v.Humidity), nullFloat(v.PM25), nullInt(v.AQI),
		string(v.Status), reading.RefreshedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save regional reading %q: %w", reading.Region, err)
	}
	return nil
}

// List returns every reading ordered by region name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Reading, error) {
	rows, err := r.db.QueryContext(ctx, `
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
			reading               Reading
			temperature, humidity sql.NullInt64
			aqi                   sql.NullInt64
			pm25                  sql.NullFloat64
			status, refreshedAt   string
		)
		if err := rows.Scan(
			&reading.Region, &reading.Coordinate.Lat, &reading.Coordinate.Lon,
			&temperature, &humidity, &pm25, &aqi, &status, &refreshedAt,
		); err != nil {
			return nil, fmt.Errorf("scan regional reading: %w", err)
		}

		reading.RefreshedAt, err = time.Parse(time.RFC3339Nano, refreshedAt)
		if err != nil {
			return nil, fmt.Errorf("parse refreshed_at for %q: %w", reading.Region, err)
		}
		reading.Reading = environment.Reading{
			Temperature: intFromNull(temperature),
			Humidity:    intFromNull(humidity),
			PM25:        floatFromNull(pm25),
			AQI:         intFromNull(aqi),
			Status:      environment.Status(status),
		}
		out = append(out, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regional readings: %w", err)
	}
	return out, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func intFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatFromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
