package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Import postgres driver
)

func Connect(dsn string, timeout time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err = db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database within %v: %w (close also failed: %v)", timeout, err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database within %v: %w", timeout, err)
	}

	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS match_history (
		id            SERIAL PRIMARY KEY,
		tournament_id UUID NULL,
		player1       TEXT NOT NULL,
		player2       TEXT NOT NULL,
		score1        INTEGER NOT NULL CHECK (score1 >= 0),
		score2        INTEGER NOT NULL CHECK (score2 >= 0),
		winner        TEXT NOT NULL,
		stage         TEXT NOT NULL,
		match_date    DATE NOT NULL DEFAULT CURRENT_DATE,
		forfeit       BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT match_history_distinct_players CHECK (player1 <> player2)
	)`,
	`CREATE INDEX IF NOT EXISTS match_history_tournament_id_idx ON match_history (tournament_id)`,
}

// Migrate creates the tables used by the engine if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d failed: %w", i+1, err)
		}
	}
	return nil
}
