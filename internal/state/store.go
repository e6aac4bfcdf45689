// Package state persists the set of tracked employees between checks and
// computes additions/removals against fresh snapshots.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/keltjd-git-314/medical-monitor/internal/record"
)

// Tracked is one persisted employee entry, keyed by the record identity key.
type Tracked struct {
	Name           string    `json:"name"`
	Position       string    `json:"position"`
	DaysLeft       int       `json:"days_left"`
	HasMedicalBook bool      `json:"has_medical_book"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	Key            string    `json:"key"`
}

// Record converts a tracked entry back to its normalized record form.
func (t Tracked) Record() record.Record {
	return record.Record{
		Name:           t.Name,
		Position:       t.Position,
		DaysLeft:       t.DaysLeft,
		HasMedicalBook: t.HasMedicalBook,
	}
}

// fileLayout is the on-disk shape of a monitor's state file.
type fileLayout struct {
	MonitorName string             `json:"monitor_name"`
	LastUpdate  time.Time          `json:"last_update"`
	Employees   map[string]Tracked `json:"employees"`
}

// Store holds the last-known employee set for one monitor and persists it as
// a single JSON file. A Store is owned by exactly one monitor and is never
// mutated concurrently; the scheduler serializes runs per monitor.
type Store struct {
	logger      *zap.Logger
	monitorName string
	path        string
	employees   map[string]*Tracked
	now         func() time.Time
}

// New creates a Store backed by <stateDir>/<monitorName>.json. The file is
// not read until Load is called.
func New(logger *zap.Logger, stateDir, monitorName string) *Store {
	return &Store{
		logger:      logger.Named("state").With(zap.String("monitor", monitorName)),
		monitorName: monitorName,
		path:        filepath.Join(stateDir, monitorName+".json"),
		employees:   make(map[string]*Tracked),
		now:         time.Now,
	}
}

// SetClock overrides the clock. Intended for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Load reads the persisted state. A missing file or parse error is not
// fatal: the store starts empty and the error is logged. Cold-start data
// loss is accepted; the next check rebuilds the set.
func (s *Store) Load() bool {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("Failed to read state file", zap.Error(err))
		}
		return false
	}

	var layout fileLayout
	if err := json.Unmarshal(data, &layout); err != nil {
		s.logger.Error("Failed to parse state file, starting empty", zap.Error(err))
		return false
	}

	s.employees = make(map[string]*Tracked, len(layout.Employees))
	for key, entry := range layout.Employees {
		e := entry
		e.Key = key
		s.employees[key] = &e
	}

	s.logger.Info("Loaded state", zap.Int("employees", len(s.employees)))
	return true
}

// Save atomically writes the full current store to disk (temp file + rename)
// and fails soft: on error the in-memory store stays authoritative, the
// failure is logged, and false is returned.
func (s *Store) Save() bool {
	layout := fileLayout{
		MonitorName: s.monitorName,
		LastUpdate:  s.now().Truncate(time.Second),
		Employees:   make(map[string]Tracked, len(s.employees)),
	}
	for key, entry := range s.employees {
		layout.Employees[key] = *entry
	}

	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		s.logger.Error("Failed to encode state", zap.Error(err))
		return false
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.logger.Error("Failed to create state directory", zap.Error(err))
		return false
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		s.logger.Error("Failed to create temp state file", zap.Error(err))
		return false
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		s.logger.Error("Failed to write state file", zap.Error(err))
		return false
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		s.logger.Error("Failed to close state file", zap.Error(err))
		return false
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		s.logger.Error("Failed to replace state file", zap.Error(err))
		return false
	}

	s.logger.Debug("State saved", zap.Int("employees", len(s.employees)))
	return true
}

// Update diffs the current snapshot against the store and mutates the store
// in place:
//
//   - known keys get LastSeen refreshed; an empty stored Position is
//     backfilled from the snapshot (the only mutable field besides timestamps)
//   - unknown keys are inserted with FirstSeen = LastSeen = now and returned
//     as added
//   - stored keys absent from the snapshot are deleted and returned as
//     removed, in the same check that observed the absence
//
// Callers must Save afterwards to persist the mutation.
func (s *Store) Update(current []record.Record) (added, removed []Tracked) {
	now := s.now().Truncate(time.Second)
	currentKeys := make(map[string]bool, len(current))

	for _, rec := range current {
		key := rec.Key()
		currentKeys[key] = true

		if existing, ok := s.employees[key]; ok {
			existing.LastSeen = now
			if existing.Position == "" && rec.Position != "" {
				existing.Position = rec.Position
			}
			continue
		}

		entry := &Tracked{
			Name:           rec.Name,
			Position:       rec.Position,
			DaysLeft:       rec.DaysLeft,
			HasMedicalBook: rec.HasMedicalBook,
			FirstSeen:      now,
			LastSeen:       now,
			Key:            key,
		}
		s.employees[key] = entry
		added = append(added, *entry)
	}

	var removedKeys []string
	for key := range s.employees {
		if !currentKeys[key] {
			removedKeys = append(removedKeys, key)
		}
	}
	sort.Strings(removedKeys)
	for _, key := range removedKeys {
		removed = append(removed, *s.employees[key])
		delete(s.employees, key)
	}

	return added, removed
}

// Count returns the number of tracked employees.
func (s *Store) Count() int { return len(s.employees) }

// Snapshot returns all tracked entries sorted by key. Used by the CLI
// status command and tests.
func (s *Store) Snapshot() []Tracked {
	keys := make([]string, 0, len(s.employees))
	for key := range s.employees {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]Tracked, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, *s.employees[key])
	}
	return entries
}

// Describe returns a short human-readable summary of the store, for logs.
func (s *Store) Describe() string {
	return fmt.Sprintf("%s (%d employees)", s.path, len(s.employees))
}
