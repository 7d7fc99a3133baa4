package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/jmoiron/sqlx"
)

// PostgresConfig holds PostgreSQL sink configuration.
type PostgresConfig struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// PostgresReporter persists failure events in a failure_events table.
type PostgresReporter struct {
	db *sqlx.DB
}

// NewPostgres opens the database, applies pending migrations and verifies
// the connection.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresReporter, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresReporter{db: db}, nil
}

func (r *PostgresReporter) Report(ctx context.Context, ev Event) {
	query := `
		INSERT INTO failure_events (id, call_id, message, occurred_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, ev.ID, ev.CallID, ev.Message, ev.At)
	if err != nil {
		slog.Warn("Failed to store failure event", "event_id", ev.ID, "error", err)
	}
}

// Recent returns up to n of the most recent failure events, newest first.
func (r *PostgresReporter) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		n = 10
	}
	query := `
		SELECT id, call_id, message, occurred_at
		FROM failure_events
		ORDER BY occurred_at DESC
		LIMIT $1
	`

	var events []Event
	if err := r.db.SelectContext(ctx, &events, query, n); err != nil {
		return nil, fmt.Errorf("failed to query failure events: %w", err)
	}
	return events, nil
}

// Close closes the database connection.
func (r *PostgresReporter) Close() error {
	return r.db.Close()
}
