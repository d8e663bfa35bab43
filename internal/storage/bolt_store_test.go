package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echobench/internal/runner"
	"echobench/internal/stats"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAssignsIDAndTimestamp(t *testing.T) {
	s := openStore(t)

	saved, err := s.Save(HistoryItem{Config: runner.DefaultConfig()})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.Timestamp.IsZero())

	got, err := s.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, 1000, got.Config.TotalMessages)
}

func TestListNewestFirst(t *testing.T) {
	s := openStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		item, err := s.Save(HistoryItem{
			Runs: []RunSummary{{Transport: "MQTT", Completed: i, Latency: stats.Summary{Avg: float64(i)}}},
		})
		require.NoError(t, err)
		ids = append(ids, item.ID)
		time.Sleep(2 * time.Millisecond)
	}

	items, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, ids[2], items[0].ID)
	assert.Equal(t, ids[0], items[2].ID)
	assert.Equal(t, 2, items[0].Runs[0].Completed)

	limited, err := s.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetMissing(t *testing.T) {
	s := openStore(t)

	_, err := s.Get("nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReopenKeepsItems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	saved, err := s.Save(HistoryItem{})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewStore(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(saved.ID)
	assert.NoError(t, err)
}
