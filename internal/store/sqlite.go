// Package store provides persistence backends for the baraholka-watch dedup state.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for state directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists dedup records in an SQLite database. Records are
// written through on Record, so Save is a no-op.
type SQLiteStore struct {
	db  *sql.DB
	dsn string
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	slog.Debug("Opening SQLite database connection")
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	slog.Debug("SQLite ping successful")

	// Run migrations to ensure the sent_ads table exists
	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db, dsn: dsn}, nil
}

// Load verifies connectivity; records are queried on demand.
func (s *SQLiteStore) Load() error {
	if err := s.db.Ping(); err != nil {
		slog.Error("SQLiteStore Load ping failed", "error", err)
		return fmt.Errorf("failed to reach sqlite database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Contains(id string) (bool, error) {
	var got string
	err := s.db.QueryRow(`SELECT id FROM sent_ads WHERE id = ?`, id).Scan(&got)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore Contains failed", "error", err, "id", id)
		return false, fmt.Errorf("dedup check for %s failed: %w", id, err)
	}
	return true, nil
}

// Record upserts a dedup record. Timestamps are normalized to UTC so that
// string comparisons inside SQLite stay consistent.
func (s *SQLiteStore) Record(rec models.DedupRecord) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO sent_ads (id, notified_at) VALUES (?, ?)`,
		rec.ID, rec.NotifiedAt.UTC(),
	)
	if err != nil {
		slog.Error("SQLiteStore Record failed", "error", err, "id", rec.ID)
		return fmt.Errorf("failed to record listing %s: %w", rec.ID, err)
	}
	slog.Debug("SQLiteStore Record succeeded", "id", rec.ID)
	return nil
}

func (s *SQLiteStore) Prune(olderThan time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM sent_ads WHERE notified_at < ?`, olderThan.UTC())
	if err != nil {
		slog.Error("SQLiteStore Prune failed", "error", err)
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned records: %w", err)
	}
	if n > 0 {
		slog.Debug("SQLiteStore pruned records", "count", n, "cutoff", olderThan)
	}
	return int(n), nil
}

// Save is a no-op: records are written through on Record.
func (s *SQLiteStore) Save() error {
	slog.Debug("SQLiteStore Save is a no-op")
	return nil
}

func (s *SQLiteStore) Stats() (models.StateStats, error) {
	stats := models.StateStats{Backend: DSNTypeSQLite, StatePath: s.dsn}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sent_ads`).Scan(&stats.TotalRecords); err != nil {
		slog.Error("SQLiteStore Stats count failed", "error", err)
		return stats, fmt.Errorf("failed to count records: %w", err)
	}
	cutoff := time.Now().Add(-24 * time.Hour).UTC()
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sent_ads WHERE notified_at > ?`, cutoff).Scan(&stats.SentLast24h); err != nil {
		slog.Error("SQLiteStore Stats recent count failed", "error", err)
		return stats, fmt.Errorf("failed to count recent records: %w", err)
	}
	// MIN/MAX drop the column's declared type, so the driver would hand the
	// timestamps back as raw text; ordered LIMIT 1 queries keep the conversion.
	var oldest, newest time.Time
	err := s.db.QueryRow(`SELECT notified_at FROM sent_ads ORDER BY notified_at ASC LIMIT 1`).Scan(&oldest)
	if err != nil && err != sql.ErrNoRows {
		slog.Error("SQLiteStore Stats oldest failed", "error", err)
		return stats, fmt.Errorf("failed to read oldest record: %w", err)
	}
	if err == nil {
		stats.OldestRecord = &oldest
	}
	err = s.db.QueryRow(`SELECT notified_at FROM sent_ads ORDER BY notified_at DESC LIMIT 1`).Scan(&newest)
	if err != nil && err != sql.ErrNoRows {
		slog.Error("SQLiteStore Stats newest failed", "error", err)
		return stats, fmt.Errorf("failed to read newest record: %w", err)
	}
	if err == nil {
		stats.NewestRecord = &newest
	}
	if _, err := os.Stat(s.dsn); err == nil {
		stats.FileExists = true
	}
	return stats, nil
}

// Reset deletes all records.
func (s *SQLiteStore) Reset() error {
	if _, err := s.db.Exec(`DELETE FROM sent_ads`); err != nil {
		slog.Error("SQLiteStore Reset failed", "error", err)
		return fmt.Errorf("failed to reset state: %w", err)
	}
	slog.Info("SQLiteStore state reset", "dsn", s.dsn)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
