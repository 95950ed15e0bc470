package history

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, maxLines int) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.jsonl")
	return NewStore(path, maxLines), path
}

func record(camera string, age time.Duration) Record {
	return Record{
		Timestamp: time.Now().UTC().Add(-age),
		EventID:   "evt-" + camera,
		Camera:    camera,
		Risk:      "medium",
		RiskScore: 3,
		EventType: "unknown_person",
	}
}

func TestAppendAndRecent(t *testing.T) {
	s, _ := testStore(t, 100)

	require.NoError(t, s.Append(record("front_door", time.Minute)))
	require.NoError(t, s.Append(record("driveway", time.Minute)))
	require.NoError(t, s.Append(record("front_door", 2*time.Hour)))

	all, err := s.Recent("", 10*time.Minute)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	front, err := s.Recent("front_door", 10*time.Minute)
	require.NoError(t, err)
	assert.Len(t, front, 1)
	assert.Equal(t, "front_door", front[0].Camera)
}

func TestCountSince(t *testing.T) {
	s, _ := testStore(t, 100)
	require.NoError(t, s.Append(record("patio", 30*time.Second)))
	require.NoError(t, s.Append(record("patio", 45*time.Second)))
	require.NoError(t, s.Append(record("patio", time.Hour)))

	assert.Equal(t, 2, s.CountSince("patio", 10*time.Minute))
	assert.Equal(t, 0, s.CountSince("garage", 10*time.Minute))
}

func TestTrimKeepsNewest(t *testing.T) {
	s, path := testStore(t, 5)
	for i := 0; i < 12; i++ {
		rec := record("cam", time.Duration(12-i)*time.Second)
		rec.EventID = string(rune('a' + i))
		require.NoError(t, s.Append(rec))
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 5)

	recs, err := s.Recent("cam", time.Hour)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	// Oldest records were dropped; the newest (latest event id) survives.
	assert.Equal(t, "l", recs[len(recs)-1].EventID)
}

func TestRecentToleratesPartialLastLine(t *testing.T) {
	s, path := testStore(t, 100)
	require.NoError(t, s.Append(record("cam", time.Minute)))

	// Simulate a crash mid-append.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0640)
	require.NoError(t, err)
	_, err = f.WriteString(`{"ts":"2026-08-25T10:00:00Z","camera":"cam","ri`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	recs, err := s.Recent("cam", time.Hour)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	// Appends keep working after the partial line.
	require.NoError(t, s.Append(record("cam", time.Second)))
}

func TestRecentMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "absent.jsonl"), 10)
	recs, err := s.Recent("", time.Hour)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 0, s.CountSince("cam", time.Hour))
}

func TestSummarize(t *testing.T) {
	recs := []Record{
		record("front_door", 10*time.Minute),
		record("front_door", 5*time.Minute),
		record("front_door", time.Minute),
	}
	out := Summarize(recs, 2)
	assert.Equal(t, 2, strings.Count(out, "unknown_person"))
	assert.Contains(t, out, "front_door")
	assert.Empty(t, Summarize(nil, 5))
}
