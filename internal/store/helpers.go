package store

import (
	"time"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
)

// summarize computes StateStats for records held in memory.
func summarize(records map[string]time.Time, backend, path string) models.StateStats {
	stats := models.StateStats{
		TotalRecords: len(records),
		Backend:      backend,
		StatePath:    path,
	}
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, at := range records {
		if at.After(cutoff) {
			stats.SentLast24h++
		}
		if stats.OldestRecord == nil || at.Before(*stats.OldestRecord) {
			t := at
			stats.OldestRecord = &t
		}
		if stats.NewestRecord == nil || at.After(*stats.NewestRecord) {
			t := at
			stats.NewestRecord = &t
		}
	}
	return stats
}
