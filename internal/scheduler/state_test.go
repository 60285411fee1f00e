package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	store := NewStore(path)
	require.NoError(t, store.Load())
	return store, path
}

func TestStoreLoadMissingFile(t *testing.T) {
	store, _ := newTestStore(t)
	assert.False(t, store.IsProcessed("gulf", "t1"))
	assert.Zero(t, store.RunCount())
	assert.Zero(t, store.ConsecutiveFailures())
}

func TestStoreMarkProcessedPersists(t *testing.T) {
	store, path := newTestStore(t)

	require.NoError(t, store.MarkProcessed("gulf", "t1"))
	require.NoError(t, store.MarkProcessed("gulf", "t2"))
	require.NoError(t, store.MarkProcessed("baltic", "t9"))
	assert.True(t, store.IsProcessed("gulf", "t1"))
	assert.False(t, store.IsProcessed("baltic", "t1"))

	// A fresh store over the same file sees the same ledger.
	reloaded := NewStore(path)
	require.NoError(t, reloaded.Load())
	assert.True(t, reloaded.IsProcessed("gulf", "t1"))
	assert.True(t, reloaded.IsProcessed("gulf", "t2"))
	assert.True(t, reloaded.IsProcessed("baltic", "t9"))
	assert.False(t, reloaded.IsProcessed("gulf", "t3"))
}

func TestStoreMarkProcessedIdempotent(t *testing.T) {
	store, path := newTestStore(t)

	require.NoError(t, store.MarkProcessed("gulf", "t1"))
	require.NoError(t, store.MarkProcessed("gulf", "t1"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var state PipelineState
	require.NoError(t, json.Unmarshal(raw, &state))
	assert.Equal(t, []string{"t1"}, state.AOIs["gulf"].ProcessedTileIDs)
	assert.Equal(t, "t1", state.AOIs["gulf"].LastTileID)
}

func TestStoreFailureCounter(t *testing.T) {
	store, path := newTestStore(t)

	n, err := store.RecordFailure()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = store.RecordFailure()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// The streak survives a restart.
	reloaded := NewStore(path)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 2, reloaded.ConsecutiveFailures())

	require.NoError(t, reloaded.ResetFailures())
	assert.Zero(t, reloaded.ConsecutiveFailures())
}

func TestStoreRecordRun(t *testing.T) {
	store, path := newTestStore(t)

	when := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.RecordRun(when))
	require.NoError(t, store.RecordRun(when.Add(time.Hour)))

	reloaded := NewStore(path)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 2, reloaded.RunCount())
}

func TestStoreSaveLeavesNoTempFiles(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.MarkProcessed("gulf", "t1"))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(path), entries[0].Name())
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewStore(path)
	assert.Error(t, store.Load())
}
