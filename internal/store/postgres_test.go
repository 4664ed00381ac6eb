package store

import (
	"testing"
	"time"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
)

// TestPostgresStore requires a running PostgreSQL instance.
// Set the DATABASE_URL environment variable for the connection string.
func TestPostgresStore(t *testing.T) {
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pgStore, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()

	// Clean up table before test
	pgStore.db.Exec("DELETE FROM sent_ads")

	now := time.Now()
	if err := pgStore.Record(models.DedupRecord{ID: "445772", NotifiedAt: now}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	seen, err := pgStore.Contains("445772")
	if err != nil {
		t.Fatalf("Contains failed: %v", err)
	}
	if !seen {
		t.Error("record not stored or retrieved correctly in Postgres")
	}

	// Recording the same ID again refreshes the timestamp instead of failing.
	if err := pgStore.Record(models.DedupRecord{ID: "445772", NotifiedAt: now.Add(time.Hour)}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	pgStore.Record(models.DedupRecord{ID: "stale", NotifiedAt: now.Add(-8 * 24 * time.Hour)})
	pruned, err := pgStore.Prune(now.Add(-7 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("expected 1 pruned record, got %d", pruned)
	}

	stats, err := pgStore.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRecords != 1 {
		t.Errorf("expected 1 record after prune, got %d", stats.TotalRecords)
	}
	if stats.Backend != DSNTypePostgres {
		t.Errorf("expected postgres backend, got %q", stats.Backend)
	}
}
