// Package store provides persistence backends for the baraholka-watch dedup state.
//
// This file implements the JSON file-backed store, the default backend.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/baraholka-watch/baraholka-watch/internal/models"
)

// stateFile is the on-disk JSON layout of the file store.
type stateFile struct {
	SentAds     map[string]time.Time `json:"sent_ads"`
	LastUpdated time.Time            `json:"last_updated"`
}

// FileStore keeps dedup records in memory and persists them to a JSON
// file on Save. Writes go through a temp file in the same directory
// followed by a rename, so an interrupted save leaves the previous state
// intact.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records map[string]time.Time
}

// Compile-time check that FileStore implements Store.
var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed store at the path set via WithPath.
// The parent directory is created if it does not exist.
func NewFileStore(opts ...Option) (*FileStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewFileStore invoked", "path_set", cfg.Path != "")

	if cfg.Path == "" {
		slog.Error("FileStore path not set")
		return nil, fmt.Errorf("state file path not set")
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create state directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	slog.Debug("State directory verified/created", "dir", dir)

	return &FileStore{path: cfg.Path, records: make(map[string]time.Time)}, nil
}

// Load reads the state file into memory. A missing file starts an empty
// store; an unreadable or corrupt file is logged and treated as empty so
// one bad write never wedges the bot.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("FileStore state file does not exist, starting empty", "path", s.path)
		s.records = make(map[string]time.Time)
		return nil
	}
	if err != nil {
		slog.Warn("FileStore failed to read state file, starting empty", "error", err, "path", s.path)
		s.records = make(map[string]time.Time)
		return nil
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		slog.Warn("FileStore state file is corrupt, starting empty", "error", err, "path", s.path)
		s.records = make(map[string]time.Time)
		return nil
	}
	if state.SentAds == nil {
		state.SentAds = make(map[string]time.Time)
	}
	s.records = state.SentAds
	slog.Debug("FileStore state loaded", "path", s.path, "records", len(s.records))
	return nil
}

func (s *FileStore) Contains(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[id]
	return ok, nil
}

func (s *FileStore) Record(rec models.DedupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.NotifiedAt
	slog.Debug("FileStore Record succeeded", "id", rec.ID)
	return nil
}

func (s *FileStore) Prune(olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pruned := 0
	for id, at := range s.records {
		if at.Before(olderThan) {
			delete(s.records, id)
			pruned++
		}
	}
	if pruned > 0 {
		slog.Debug("FileStore pruned records", "count", pruned, "cutoff", olderThan)
	}
	return pruned, nil
}

// Save writes the state atomically via temp file and rename.
func (s *FileStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := stateFile{SentAds: s.records, LastUpdated: time.Now()}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		slog.Error("FileStore marshal failed", "error", err)
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		slog.Error("FileStore failed to create temp state file", "error", err, "dir", dir)
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		slog.Error("FileStore failed to write temp state file", "error", err, "path", tmpName)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		slog.Warn("FileStore temp state file sync failed", "error", err, "path", tmpName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		slog.Error("FileStore failed to close temp state file", "error", err, "path", tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		slog.Error("FileStore failed to replace state file", "error", err, "path", s.path)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	slog.Debug("FileStore state saved", "path", s.path, "records", len(s.records))
	return nil
}

func (s *FileStore) Stats() (models.StateStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := summarize(s.records, "file", s.path)
	if _, err := os.Stat(s.path); err == nil {
		stats.FileExists = true
	}
	return stats, nil
}

// Reset drops all records and removes the state file.
func (s *FileStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]time.Time)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("FileStore failed to remove state file", "error", err, "path", s.path)
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	slog.Info("FileStore state reset", "path", s.path)
	return nil
}

func (s *FileStore) Close() error { return nil }
