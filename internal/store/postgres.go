// Package store provides persistence backends for the baraholka-watch dedup state.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists dedup records in PostgreSQL. Records are written
// through on Record, so Save is a no-op.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	slog.Debug("Postgres database opened")

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Postgres ping successful")

	// Run migrations to ensure the sent_ads table exists
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// Load verifies connectivity; records are queried on demand.
func (s *PostgresStore) Load() error {
	if err := s.db.Ping(); err != nil {
		slog.Error("PostgresStore Load ping failed", "error", err)
		return fmt.Errorf("failed to reach postgres database: %w", err)
	}
	return nil
}

func (s *PostgresStore) Contains(id string) (bool, error) {
	var got string
	err := s.db.QueryRow(`SELECT id FROM sent_ads WHERE id = $1`, id).Scan(&got)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		slog.Error("PostgresStore Contains failed", "error", err, "id", id)
		return false, fmt.Errorf("dedup check for %s failed: %w", id, err)
	}
	return true, nil
}

func (s *PostgresStore) Record(rec models.DedupRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO sent_ads (id, notified_at) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET notified_at = EXCLUDED.notified_at`,
		rec.ID, rec.NotifiedAt,
	)
	if err != nil {
		slog.Error("PostgresStore Record failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to record listing %s: %w", rec.ID, err)
	}
	slog.Debug("PostgresStore Record succeeded", "id", rec.ID)
	return nil
}

func (s *PostgresStore) Prune(olderThan time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM sent_ads WHERE notified_at < $1`, olderThan)
	if err != nil {
		slog.Error("PostgresStore Prune failed", "error", err)
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned records: %w", err)
	}
	if n > 0 {
		slog.Debug("PostgresStore pruned records", "count", n, "cutoff", olderThan)
	}
	return int(n), nil
}

// Save is a no-op: records are written through on Record.
func (s *PostgresStore) Save() error {
	slog.Debug("PostgresStore Save is a no-op")
	return nil
}

func (s *PostgresStore) Stats() (models.StateStats, error) {
	// The DSN carries credentials, so it is not echoed in StatePath.
	stats := models.StateStats{Backend: DSNTypePostgres}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sent_ads`).Scan(&stats.TotalRecords); err != nil {
		slog.Error("PostgresStore Stats count failed", "error", err)
		return stats, fmt.Errorf("failed to count records: %w", err)
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sent_ads WHERE notified_at > $1`, cutoff).Scan(&stats.SentLast24h); err != nil {
		slog.Error("PostgresStore Stats recent count failed", "error", err)
		return stats, fmt.Errorf("failed to count recent records: %w", err)
	}
	var oldest, newest sql.NullTime
	if err := s.db.QueryRow(`SELECT MIN(notified_at), MAX(notified_at) FROM sent_ads`).Scan(&oldest, &newest); err != nil {
		slog.Error("PostgresStore Stats range failed", "error", err)
		return stats, fmt.Errorf("failed to read record range: %w", err)
	}
	if oldest.Valid {
		stats.OldestRecord = &oldest.Time
	}
	if newest.Valid {
		stats.NewestRecord = &newest.Time
	}
	return stats, nil
}

// Reset deletes all records.
func (s *PostgresStore) Reset() error {
	if _, err := s.db.Exec(`DELETE FROM sent_ads`); err != nil {
		slog.Error("PostgresStore Reset failed", "error", err)
		return fmt.Errorf("failed to reset state: %w", err)
	}
	slog.Info("PostgresStore state reset")
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
