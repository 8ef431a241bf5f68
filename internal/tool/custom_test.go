package tool

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiscoverCustomRegistersToolFromYAML(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("subprocess tool definitions below assume a posix shell")
	}
	dir := t.TempDir()
	def := `
name: echo_args
description: echoes its stdin back out
command: ["cat"]
timeout: 1s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echo.tool.yaml"), []byte(def), 0o644))

	r := NewRegistry(testLogger())
	require.NoError(t, r.DiscoverCustom(dir))

	res, err := r.Dispatch(context.Background(), "echo_args", map[string]any{"hello": "world"})
	require.NoError(t, err)
	require.Contains(t, res.Output, "hello")
}

func TestDiscoverCustomSkipsMalformedDefinitions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.tool.yaml"), []byte("not: [valid"), 0o644))

	r := NewRegistry(testLogger())
	require.NoError(t, r.DiscoverCustom(dir))
	require.Empty(t, r.Schemas())
}
