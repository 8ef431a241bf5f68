package polytope

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[[vertex]]
name = "planning"
weights = [1, 0, 0, 0, 0, 0, 0]

[[vertex]]
name = "coding"
weights = [0, 1, 0, 0, 0, 0, 0]

[[vertex]]
name = "qa"
weights = [0, 0, 1, 0, 0, 0, 0]

[[edge]]
from = "planning"
to = "coding"

[[edge]]
from = "coding"
to = "qa"
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "polytope.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefinitionParsesVerticesAndEdges(t *testing.T) {
	path := writeTemp(t, sampleTOML)
	g, err := LoadDefinition(path)
	require.NoError(t, err)
	require.Len(t, g.Vertices(), 3)
	require.True(t, g.CanTransition("planning", "coding"))
	require.False(t, g.CanTransition("planning", "qa"))
}

func TestLoadDefinitionRejectsDanglingEdge(t *testing.T) {
	path := writeTemp(t, `
[[vertex]]
name = "planning"
weights = [1, 0, 0, 0, 0, 0, 0]

[[edge]]
from = "planning"
to = "nonexistent"
`)
	_, err := LoadDefinition(path)
	require.Error(t, err)
}

func TestLoadDefinitionRejectsUnknownKeys(t *testing.T) {
	path := writeTemp(t, `
[[vertex]]
name = "planning"
weights = [1, 0, 0, 0, 0, 0, 0]
bogus = "field"
`)
	_, err := LoadDefinition(path)
	require.Error(t, err)
}

func TestScoreRanksByDotProduct(t *testing.T) {
	path := writeTemp(t, sampleTOML)
	g, err := LoadDefinition(path)
	require.NoError(t, err)

	situation := Dim7{0, 5, 0, 0, 0, 0, 0}
	candidates := g.Score("planning", situation)
	require.Len(t, candidates, 1)
	require.Equal(t, "coding", candidates[0].Vertex.Name)
	require.Equal(t, 5.0, candidates[0].Score)
}

func TestAwarenessLevelClampedToUnitInterval(t *testing.T) {
	require.Equal(t, 0.0, AwarenessLevel(0))
	require.InDelta(t, 1.0, AwarenessLevel(100), 0.001)
	require.Less(t, AwarenessLevel(10), 1.0)
}
