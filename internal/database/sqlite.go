package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"
)

// DefaultSQLitePath is used when SQLITE_PATH is unset.
const DefaultSQLitePath = "atmosguard.db"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS geocode_cache (
		query      TEXT PRIMARY KEY,
		lat        REAL NOT NULL,
		lon        REAL NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS regional_readings (
		region       TEXT PRIMARY KEY,
		lat          REAL NOT NULL,
		lon          REAL NOT NULL,
		temperature  INTEGER,
		humidity     INTEGER,
		pm25         REAL,
		aqi          INTEGER,
		status       TEXT NOT NULL,
		refreshed_at TEXT NOT NULL
	)`,
}

// SQLitePathFromEnv returns SQLITE_PATH or DefaultSQLitePath.
func SQLitePathFromEnv() string {
	return envString("SQLITE_PATH", DefaultSQLitePath)
}

// OpenSQLite opens (creating if needed) the database file at path and
// applies the schema.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("open sqlite: empty path")
	}

	// WAL lets the worker and the API read while a refresh writes.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := initSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func initSQLiteSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range sqliteSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit: %w", err)
	}
	return nil
}
