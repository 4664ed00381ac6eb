package store

import (
	"sync"
	"time"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
)

// InMemoryStore keeps dedup records in memory only. It is used by tests
// and exercises the same interface as the persistent backends.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]time.Time
}

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]time.Time)}
}

func (s *InMemoryStore) Load() error { return nil }

func (s *InMemoryStore) Contains(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok, nil
}

func (s *InMemoryStore) Record(rec models.DedupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.NotifiedAt
	return nil
}

func (s *InMemoryStore) Prune(olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for id, at := range s.records {
		if at.Before(olderThan) {
			delete(s.records, id)
			pruned++
		}
	}
	return pruned, nil
}

func (s *InMemoryStore) Save() error { return nil }

func (s *InMemoryStore) Stats() (models.StateStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return summarize(s.records, "memory", ""), nil
}

func (s *InMemoryStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]time.Time)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }
