package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keltjd-git-314/medical-monitor/internal/record"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := New(zap.NewNop(), t.TempDir(), "canteen")
	s.SetClock(func() time.Time {
		return time.Date(2025, 6, 15, 9, 30, 42, 123456789, time.UTC)
	})
	return s
}

func rec(name string, days int, hasBook bool) record.Record {
	return record.Record{Name: name, DaysLeft: days, HasMedicalBook: hasBook}
}

func TestUpdate_InsertsNewEmployees(t *testing.T) {
	s := testStore(t)

	added, removed := s.Update([]record.Record{
		rec("Ivanov", -5, true),
		rec("Petrov", 20, true),
	})

	require.Len(t, added, 2)
	assert.Empty(t, removed)
	assert.Equal(t, 2, s.Count())

	assert.Equal(t, "Ivanov", added[0].Name)
	assert.Equal(t, "Ivanov_-5_true", added[0].Key)
	assert.Equal(t, added[0].FirstSeen, added[0].LastSeen)
}

func TestUpdate_Idempotent(t *testing.T) {
	s := testStore(t)
	snapshot := []record.Record{rec("Ivanov", -5, true), rec("Petrov", 20, true)}

	s.Update(snapshot)
	added, removed := s.Update(snapshot)

	assert.Empty(t, added)
	assert.Empty(t, removed)
	assert.Equal(t, 2, s.Count())
}

func TestUpdate_AddedAndRemoved(t *testing.T) {
	s := testStore(t)

	// Store holds {A, B}; snapshot produces {B, C}.
	s.Update([]record.Record{rec("A", 10, true), rec("B", 20, true)})
	added, removed := s.Update([]record.Record{rec("B", 20, true), rec("C", 30, true)})

	require.Len(t, added, 1)
	assert.Equal(t, "C", added[0].Name)
	require.Len(t, removed, 1)
	assert.Equal(t, "A", removed[0].Name)

	keys := make([]string, 0, 2)
	for _, entry := range s.Snapshot() {
		keys = append(keys, entry.Name)
	}
	assert.Equal(t, []string{"B", "C"}, keys)
}

func TestUpdate_DaysTickProducesAddRemovePair(t *testing.T) {
	s := testStore(t)

	s.Update([]record.Record{rec("Ivanov", 20, true)})
	added, removed := s.Update([]record.Record{rec("Ivanov", 19, true)})

	// Identity embeds the countdown, so the same person churns.
	require.Len(t, added, 1)
	require.Len(t, removed, 1)
	assert.Equal(t, "Ivanov_19_true", added[0].Key)
	assert.Equal(t, "Ivanov_20_true", removed[0].Key)
	assert.Equal(t, 1, s.Count())
}

func TestUpdate_RefreshesLastSeen(t *testing.T) {
	s := testStore(t)
	first := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	second := first.Add(10 * time.Minute)

	s.SetClock(func() time.Time { return first })
	s.Update([]record.Record{rec("Ivanov", 20, true)})

	s.SetClock(func() time.Time { return second })
	s.Update([]record.Record{rec("Ivanov", 20, true)})

	entry := s.Snapshot()[0]
	assert.Equal(t, first, entry.FirstSeen)
	assert.Equal(t, second, entry.LastSeen)
}

func TestUpdate_BackfillsEmptyPosition(t *testing.T) {
	s := testStore(t)

	s.Update([]record.Record{rec("Ivanov", 20, true)})

	withPosition := rec("Ivanov", 20, true)
	withPosition.Position = "Повар"
	s.Update([]record.Record{withPosition})

	assert.Equal(t, "Повар", s.Snapshot()[0].Position)

	// An already-set position is never overwritten.
	changed := withPosition
	changed.Position = "Администратор"
	s.Update([]record.Record{changed})
	assert.Equal(t, "Повар", s.Snapshot()[0].Position)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 15, 9, 30, 42, 0, time.UTC)

	s := New(zap.NewNop(), dir, "canteen")
	s.SetClock(func() time.Time { return now })

	withPosition := rec("Ivanov", 20, true)
	withPosition.Position = "Повар"
	s.Update([]record.Record{withPosition, rec("Sidorov", record.DaysAbsent, false)})
	require.True(t, s.Save())

	loaded := New(zap.NewNop(), dir, "canteen")
	require.True(t, loaded.Load())

	assert.Equal(t, s.Snapshot(), loaded.Snapshot())
}

func TestSave_FileLayout(t *testing.T) {
	dir := t.TempDir()
	s := New(zap.NewNop(), dir, "canteen")
	s.SetClock(func() time.Time {
		return time.Date(2025, 6, 15, 9, 30, 42, 0, time.UTC)
	})
	s.Update([]record.Record{rec("Ivanov", 20, true)})
	require.True(t, s.Save())

	data, err := os.ReadFile(filepath.Join(dir, "canteen.json"))
	require.NoError(t, err)

	var layout map[string]any
	require.NoError(t, json.Unmarshal(data, &layout))
	assert.Equal(t, "canteen", layout["monitor_name"])
	assert.Contains(t, layout, "last_update")

	employees, ok := layout["employees"].(map[string]any)
	require.True(t, ok)
	entry, ok := employees["Ivanov_20_true"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Ivanov", entry["name"])
	assert.Equal(t, float64(20), entry["days_left"])
	assert.Equal(t, true, entry["has_medical_book"])
	assert.Contains(t, entry, "first_seen")
	assert.Contains(t, entry, "last_seen")
}

func TestLoad_MissingFileStartsEmpty(t *testing.T) {
	s := New(zap.NewNop(), t.TempDir(), "canteen")
	assert.False(t, s.Load())
	assert.Equal(t, 0, s.Count())
}

func TestLoad_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "canteen.json"), []byte("{not json"), 0o644))

	s := New(zap.NewNop(), dir, "canteen")
	assert.False(t, s.Load())
	assert.Equal(t, 0, s.Count())
}

func TestSave_UnwritableDirectoryFailsSoft(t *testing.T) {
	// A regular file where the state directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := New(zap.NewNop(), blocker, "canteen")
	s.Update([]record.Record{rec("Ivanov", 20, true)})

	assert.False(t, s.Save())
	// In-memory store stays intact.
	assert.Equal(t, 1, s.Count())
}
