package statestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daydemir/orchestrator/internal/task"
)

func TestLoadOnMissingFileReturnsFreshState(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	state, err := store.Load()
	require.NoError(t, err)
	require.NotEmpty(t, state.RunID)
	require.Equal(t, 1, state.Version)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	state, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, state.Tasks.Create(&task.Task{
		ID:       "t1",
		Title:    "do a thing",
		Priority: task.PriorityHigh,
		Category: task.CategoryInvestigation,
		Status:   task.StatusPending,
	}))
	require.NoError(t, store.Save(state))

	reloaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, state.RunID, reloaded.RunID)
	got, ok := reloaded.Tasks.Get("t1")
	require.True(t, ok)
	require.Equal(t, "do a thing", got.Title)
}

func TestSaveRejectsStaleVersion(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	state, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, store.Save(state))

	state.Version = 5
	require.NoError(t, store.Save(state))

	stale := NewState()
	stale.RunID = state.RunID
	stale.Version = 2
	err = store.Save(stale)
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestLoadRejectsCorruptJSON(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, writeFile(filepath.Join(dir, stateFileName), []byte("{not json")))

	_, err = store.Load()
	require.ErrorIs(t, err, ErrStateCorruption)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, writeFile(filepath.Join(dir, stateFileName), []byte(`{"version":1,"runId":"x","taskGraph":{"tasks":{},"refactoringTasks":{},"files":{}},"phases":{},"polytope":{},"updatedAt":"2026-01-01T00:00:00Z","bogusField":true}`)))

	_, err = store.Load()
	require.ErrorIs(t, err, ErrStateCorruption)
}

func TestSnapshotDoesNotMutateCanonicalVersion(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	state, err := store.Load()
	require.NoError(t, err)
	require.NoError(t, store.Save(state))

	path, err := store.Snapshot(state, "fatal")
	require.NoError(t, err)
	require.FileExists(t, path)

	reloaded, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, state.Version, reloaded.Version)
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
