// Package store provides persistence backends for the baraholka-watch dedup state.
//
// A Store remembers which listings have already been notified so that
// repeated polls and process restarts do not produce duplicate messages.
// Backends include a JSON file store, SQLite, PostgreSQL, and an in-memory
// store for tests.
package store

import (
	"strings"
	"time"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
)

// DSN type constants returned by DetectDSNType.
const (
	DSNTypePostgres = "postgres"
	DSNTypeSQLite   = "sqlite"
)

// Store defines the interface for dedup record persistence.
type Store interface {
	// Load reads previously persisted records into memory. Backends that
	// query on demand treat this as a connectivity check. A missing or
	// corrupt state file must not be fatal: the store starts empty and
	// logs a warning instead.
	Load() error

	// Contains reports whether a notification for the listing ID has
	// already been recorded.
	Contains(id string) (bool, error)

	// Record upserts a dedup record. Recording the same ID twice
	// refreshes its timestamp rather than failing.
	Record(rec models.DedupRecord) error

	// Prune removes records older than the cutoff and returns how many
	// were removed.
	Prune(olderThan time.Time) (int, error)

	// Save persists in-memory state. Backends that write through on
	// Record implement this as a no-op.
	Save() error

	// Stats summarizes the stored records.
	Stats() (models.StateStats, error)

	// Reset removes all records and any on-disk state.
	Reset() error

	// Close releases underlying resources.
	Close() error
}

// Opts holds configuration options for store construction.
type Opts struct {
	// DSN is the connection string for SQL-backed stores. For SQLite this
	// is a file path.
	DSN string
	// Path is the JSON state file location for the file-backed store.
	Path string
}

// Option defines a functional option for store configuration.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPath sets the state file path for the file-backed store.
func WithPath(path string) Option {
	return func(o *Opts) {
		o.Path = path
	}
}

// DetectDSNType classifies a DSN as PostgreSQL or SQLite. Anything that
// does not look like a Postgres URL or key/value connection string is
// treated as an SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return DSNTypePostgres
	}
	return DSNTypeSQLite
}
