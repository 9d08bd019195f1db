package sync

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/bundlesync/bundlesync/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openHistory(t *testing.T) *History {
	t.Helper()
	h := NewHistory(filepath.Join(t.TempDir(), "meta", "history.db"))
	require.NoError(t, h.Open())
	t.Cleanup(func() { h.Close() })
	return h
}

func TestHistory_RecordAndRecent(t *testing.T) {
	h := openHistory(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	res := &Result{
		ID:              "round-1",
		State:           StateDone,
		Degraded:        true,
		LocalTag:        manifest.VersionTag("1.0.0_aaa"),
		RemoteTag:       manifest.VersionTag("1.1.0_bbb"),
		CommittedTag:    manifest.VersionTag("1.1.0_ccc"),
		Planned:         []string{"a.bundle", "b.bundle"},
		Downloaded:      []string{"a.bundle"},
		Failed:          []FileFailure{{Name: "b.bundle", Error: "timeout"}},
		DownloadedBytes: 42,
		StartedAt:       started,
		FinishedAt:      started.Add(3 * time.Second),
	}
	require.NoError(t, h.Record(res))

	entries, err := h.Recent(5)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, "round-1", e.ID)
	assert.Equal(t, StateDone, e.State)
	assert.True(t, e.Degraded)
	assert.Equal(t, "1.1.0_ccc", e.CommittedTag)
	assert.Equal(t, 2, e.Planned)
	assert.Equal(t, 1, e.Downloaded)
	assert.Equal(t, 1, e.Failed)
	assert.Equal(t, int64(42), e.Bytes)
	assert.True(t, started.Equal(e.StartedAt))
	assert.Equal(t, 3*time.Second, e.FinishedAt.Sub(e.StartedAt))
}

func TestHistory_NewestFirstAndTrimmed(t *testing.T) {
	h := openHistory(t)

	for i := 0; i < historyKeep+5; i++ {
		require.NoError(t, h.Record(&Result{ID: fmt.Sprintf("r%03d", i), State: StateUpToDate, StartedAt: time.Now(), FinishedAt: time.Now()}))
	}

	count, err := h.Count()
	require.NoError(t, err)
	assert.Equal(t, historyKeep, count)

	entries, err := h.Recent(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, fmt.Sprintf("r%03d", historyKeep+4), entries[0].ID)
	assert.Equal(t, fmt.Sprintf("r%03d", historyKeep+3), entries[1].ID)
}

func TestHistory_NotOpen(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "history.db"))
	assert.ErrorIs(t, h.Record(&Result{ID: "x"}), ErrHistoryNotOpen)
	_, err := h.Recent(1)
	assert.ErrorIs(t, err, ErrHistoryNotOpen)
	assert.ErrorIs(t, h.Close(), ErrHistoryNotOpen)

	require.NoError(t, h.Open())
	assert.Error(t, h.Open(), "double open")
	require.NoError(t, h.Close())
}
