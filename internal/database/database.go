package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Postgres driver
	_ "github.com/lib/pq"
)

// DB wraps the sql connection pool
type DB struct {
	*sql.DB
}

// New creates a new database connection
func New(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			_ = closeErr
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate creates the schema if it does not exist. Both tables are keyed by
// the voice-platform user identifier, which is an opaque string.
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS usage_records (
			user_id           TEXT PRIMARY KEY,
			api_calls         BIGINT NOT NULL DEFAULT 0,
			daily_api_calls   BIGINT NOT NULL DEFAULT 0,
			total_api_calls   BIGINT NOT NULL DEFAULT 0,
			last_request_time BIGINT NOT NULL,
			start_date        DATE NOT NULL,
			created_at        TIMESTAMPTZ NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS question_log (
			user_id  TEXT NOT NULL,
			asked_at TIMESTAMPTZ NOT NULL,
			question TEXT NOT NULL,
			PRIMARY KEY (user_id, asked_at)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
