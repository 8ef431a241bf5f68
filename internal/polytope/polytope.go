// Package polytope defines the Dim7-weighted phase-selection graph: a
// labelled directed multigraph over phase names, loaded from a
// polytope.toml definition distinct from the application's own config.
package polytope

import (
	"fmt"
	"math"
	"sort"

	"github.com/BurntSushi/toml"
)

// Dim is the fixed dimensionality of a situation/phase weight vector
// (the "Dim7" scoring space).
const Dim = 7

// Dim7 is a fixed-size weight vector scored against a situation.
type Dim7 [Dim]float64

// Dot computes the weighted dot product of two Dim7 vectors, used to
// score a candidate phase vertex against the current situation vector.
func (d Dim7) Dot(other Dim7) float64 {
	var sum float64
	for i := range d {
		sum += d[i] * other[i]
	}
	return sum
}

// Vertex is one phase in the selection graph.
type Vertex struct {
	Name    string  `toml:"name"`
	Weights Dim7    `toml:"weights"`
}

// Edge is a directed, labelled transition the selector is allowed to
// consider between two phases. Edges must close over declared
// vertices — every edge's From/To names a real vertex.
type Edge struct {
	From  string `toml:"from"`
	To    string `toml:"to"`
	Label string `toml:"label,omitempty"`
}

// Definition is the on-disk polytope.toml shape.
type Definition struct {
	Vertex []Vertex `toml:"vertex"`
	Edge   []Edge   `toml:"edge"`
}

// Graph is the loaded, validated selection graph.
type Graph struct {
	vertices map[string]Vertex
	edges    map[string][]Edge // keyed by From
}

// LoadDefinition reads and validates a polytope.toml file, enforcing
// that every edge endpoint names a declared vertex.
func LoadDefinition(path string) (*Graph, error) {
	var def Definition
	md, err := toml.DecodeFile(path, &def)
	if err != nil {
		return nil, fmt.Errorf("polytope: loading %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("polytope: %s: unknown keys %v", path, undecoded)
	}
	return newGraph(def)
}

func newGraph(def Definition) (*Graph, error) {
	g := &Graph{
		vertices: make(map[string]Vertex, len(def.Vertex)),
		edges:    make(map[string][]Edge),
	}
	for _, v := range def.Vertex {
		if v.Name == "" {
			return nil, fmt.Errorf("polytope: vertex with empty name")
		}
		g.vertices[v.Name] = v
	}
	for _, e := range def.Edge {
		if _, ok := g.vertices[e.From]; !ok {
			return nil, fmt.Errorf("polytope: edge %s->%s: unknown vertex %q", e.From, e.To, e.From)
		}
		if _, ok := g.vertices[e.To]; !ok {
			return nil, fmt.Errorf("polytope: edge %s->%s: unknown vertex %q", e.From, e.To, e.To)
		}
		g.edges[e.From] = append(g.edges[e.From], e)
	}
	return g, nil
}

// Vertices returns every declared phase vertex.
func (g *Graph) Vertices() []Vertex {
	out := make([]Vertex, 0, len(g.vertices))
	for _, v := range g.vertices {
		out = append(out, v)
	}
	return out
}

// Vertex returns the named vertex, if declared.
func (g *Graph) Vertex(name string) (Vertex, bool) {
	v, ok := g.vertices[name]
	return v, ok
}

// CanTransition reports whether an edge from -> to exists in the graph.
func (g *Graph) CanTransition(from, to string) bool {
	for _, e := range g.edges[from] {
		if e.To == to {
			return true
		}
	}
	return false
}

// Candidate is a scored phase vertex during selection.
type Candidate struct {
	Vertex Vertex
	Score  float64
}

// Score ranks every vertex reachable from `from` (or, if from is empty,
// every declared vertex) against situation, highest first.
func (g *Graph) Score(from string, situation Dim7) []Candidate {
	var names []string
	if from == "" {
		for name := range g.vertices {
			names = append(names, name)
		}
	} else {
		for _, e := range g.edges[from] {
			names = append(names, e.To)
		}
	}

	candidates := make([]Candidate, 0, len(names))
	for _, name := range names {
		v := g.vertices[name]
		candidates = append(candidates, Candidate{Vertex: v, Score: v.Weights.Dot(situation)})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	return candidates
}

// AwarenessLevel implements the adaptive-counter formula:
// log(1+n)/log(100), clamped to [0, 1].
func AwarenessLevel(experienceCount int) float64 {
	if experienceCount <= 0 {
		return 0
	}
	level := math.Log(1+float64(experienceCount)) / math.Log(100)
	if level > 1 {
		return 1
	}
	if level < 0 {
		return 0
	}
	return level
}
