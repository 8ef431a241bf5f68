package tool

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, projectDir string) *Registry {
	t.Helper()
	r := NewRegistry(log.New(io.Discard))
	RegisterBuiltins(r, BuildConfig{
		ProjectDir: projectDir,
		BuildCmd:   "true",
		TestCmd:    "true",
		VerifyCmd:  "true",
	})
	return r
}

func TestCreateAndReadFile(t *testing.T) {
	dir := t.TempDir()
	r := newTestRegistry(t, dir)
	ctx := context.Background()

	res, err := r.Dispatch(ctx, "create_file", map[string]any{"path": "a.txt", "content": "hello"})
	require.NoError(t, err)
	require.False(t, res.IsError)

	res, err = r.Dispatch(ctx, "read_file", map[string]any{"path": "a.txt"})
	require.NoError(t, err)
	require.Equal(t, "hello", res.Output)
}

func TestModifyFileReportsOriginalAndNew(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("old"), 0o644))
	r := newTestRegistry(t, dir)

	res, err := r.Dispatch(context.Background(), "modify_file", map[string]any{"path": "a.txt", "content": "new"})
	require.NoError(t, err)
	require.Contains(t, res.Output, `"original":"old"`)
	require.Contains(t, res.Output, `"new":"new"`)

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

func TestDeleteFileRemovesFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	r := newTestRegistry(t, dir)

	_, err := r.Dispatch(context.Background(), "delete_file", map[string]any{"path": "a.txt"})
	require.NoError(t, err)
	require.NoFileExists(t, path)
}

func TestMoveFileRenamesAndAliasMatches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	r := newTestRegistry(t, dir)

	_, err := r.Dispatch(context.Background(), "move_file", map[string]any{"from": "a.txt", "to": "sub/b.txt"})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "sub", "b.txt"))
	require.NoFileExists(t, filepath.Join(dir, "a.txt"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("y"), 0o644))
	_, err = r.Dispatch(context.Background(), "rename_file", map[string]any{"from": "c.txt", "to": "d.txt"})
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "d.txt"))
}

func TestResolvePathRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	r := newTestRegistry(t, dir)

	_, err := r.Dispatch(context.Background(), "read_file", map[string]any{"path": "../../etc/passwd"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidArgs)
}

func TestRunToolsExecuteConfiguredCommand(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(log.New(io.Discard))
	RegisterBuiltins(r, BuildConfig{
		ProjectDir: dir,
		BuildCmd:   "echo build-ok",
		TestCmd:    "",
		VerifyCmd:  "",
	})

	res, err := r.Dispatch(context.Background(), "run_build", nil)
	require.NoError(t, err)
	require.Contains(t, res.Output, "build-ok")

	res, err = r.Dispatch(context.Background(), "run_tests", nil)
	require.NoError(t, err)
	require.Equal(t, "no command configured", res.Output)
}

func TestLifecycleToolsAcknowledge(t *testing.T) {
	dir := t.TempDir()
	r := newTestRegistry(t, dir)

	res, err := r.Dispatch(context.Background(), "complete_task", map[string]any{"taskId": "t1"})
	require.NoError(t, err)
	require.Equal(t, "ok", res.Output)
}

func TestCleanupRedundantFilesRemovesListedPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("y"), 0o644))
	r := newTestRegistry(t, dir)

	res, err := r.Dispatch(context.Background(), "cleanup_redundant_files", map[string]any{
		"paths": []any{"a.txt", "b.txt"},
	})
	require.NoError(t, err)
	require.Equal(t, "removed 2 files", res.Output)
	require.NoFileExists(t, filepath.Join(dir, "a.txt"))
	require.NoFileExists(t, filepath.Join(dir, "b.txt"))
}
