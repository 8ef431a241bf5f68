package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(cwd)) })
}

func TestFindReturnsErrWhenNoWorkspace(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Find()
	require.ErrorIs(t, err, ErrNoWorkspace)
}

func TestInitScaffoldsWorkspaceAndFindLocatesIt(t *testing.T) {
	chdir(t, t.TempDir())

	require.NoError(t, Init(false))

	for _, dir := range []string{"", "snapshots", "threads", "mailboxes", "issues", "backups", "tools"} {
		cwd, err := os.Getwd()
		require.NoError(t, err)
		info, err := os.Stat(filepath.Join(Path(cwd), dir))
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.FileExists(t, ConfigPath(cwd))
	require.FileExists(t, PolytopePath(cwd))

	found, err := Find()
	require.NoError(t, err)
	require.Equal(t, cwd, found)
}

func TestInitRefusesToOverwriteWithoutForce(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, Init(false))
	err := Init(false)
	require.ErrorIs(t, err, ErrWorkspaceExists)
}

func TestInitForceOverwritesExistingWorkspace(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, Init(false))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	marker := filepath.Join(Path(cwd), "snapshots", "marker.txt")
	require.NoError(t, os.WriteFile(marker, []byte("x"), 0o644))

	require.NoError(t, Init(true))
	require.NoFileExists(t, marker)
}

func TestFindWalksUpFromNestedDirectory(t *testing.T) {
	root := t.TempDir()
	chdir(t, root)
	require.NoError(t, Init(false))

	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	chdir(t, nested)

	found, err := Find()
	require.NoError(t, err)
	require.Equal(t, root, found)
}
