package coordinator

import (
	"sort"

	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// alwaysAvailable are the sink phases always eligible for selection even
// without a declared polytope edge from the current vertex.
var alwaysAvailable = []string{"refactoring", "investigation", "documentation"}

// pingPongWindow bounds how far back selectPhase looks for an A,B,A,B
// alternation before refusing to honour an IPC nextPhase hint.
const pingPongWindow = 4

// selectPhase applies tactical overrides first, then
// Dim7-weighted scoring over the union of polytope edges from the current
// vertex and the always-available sinks. Never returns "".
func (c *Coordinator) selectPhase(state *statestore.PipelineState, s Situation, iteration int) string {
	if name, ok := c.tacticalOverride(state, s); ok {
		return name
	}

	curr := currentVertex(state)
	weights := weightsFor(s, iteration)

	scored := map[string]float64{}
	for _, cand := range c.Polytope.Score(curr, weights) {
		scored[cand.Vertex.Name] = cand.Score
	}
	for _, name := range alwaysAvailable {
		if _, known := scored[name]; known {
			continue
		}
		if v, ok := c.Polytope.Vertex(name); ok {
			scored[name] = v.Weights.Dot(weights)
		}
	}
	if s.DuplicatePatternsDetected {
		if v, ok := c.Polytope.Vertex("refactoring"); ok {
			scored["refactoring"] = v.Weights.Dot(weights) + 1 // force candidacy
		}
	}
	if iteration > 0 && iteration%hygieneInterval == 0 {
		if v, ok := c.Polytope.Vertex("refactoring"); ok {
			scored["refactoring"] = v.Weights.Dot(weights) + 1
		}
	}

	best, bestScore := "", 0.0
	first := true
	for name, score := range scored {
		if _, ok := c.Phases[name]; !ok {
			continue
		}
		if first || score > bestScore {
			best, bestScore = name, score
			first = false
		}
	}
	if best != "" && bestScore > 0 {
		return best
	}

	// Never-null fallback: every score <= 0, pick curr's
	// highest-dimension-sum neighbour, or any known phase if curr has none.
	return c.highestDimensionSumNeighbour(curr)
}

// tacticalOverride applies the fast-path rules that take precedence over
// scoring: a QA rejection routes straight to debugging, a
// documentation-category current task routes to documentation, and an
// IPC hint is honoured unless doing so would create a loop-detected
// ping-pong with the last few phase-history entries.
func (c *Coordinator) tacticalOverride(state *statestore.PipelineState, s Situation) (string, bool) {
	for _, t := range state.Tasks.Tasks {
		if t.Status == task.StatusQAFailed {
			if _, ok := c.Phases["debugging"]; ok {
				return "debugging", true
			}
		}
	}

	if t := mostRecentInProgress(state); t != nil && t.Category == task.CategoryDocumentation {
		if _, ok := c.Phases["documentation"]; ok {
			return "documentation", true
		}
	}

	for _, hint := range s.IPCHints {
		if hint.NextPhase == "" {
			continue
		}
		if _, ok := c.Phases[hint.NextPhase]; !ok {
			continue
		}
		if wouldPingPong(state.PhaseHistory, hint.NextPhase) {
			continue
		}
		return hint.NextPhase, true
	}

	return "", false
}

func mostRecentInProgress(state *statestore.PipelineState) *task.Task {
	var best *task.Task
	for _, t := range state.Tasks.Tasks {
		if t.Status != task.StatusInProgress {
			continue
		}
		if best == nil || t.UpdatedAt.After(best.UpdatedAt) {
			best = t
		}
	}
	return best
}

// wouldPingPong reports whether appending candidate to history would
// complete an A,B,A,B alternation within the last pingPongWindow entries.
func wouldPingPong(history []statestore.PhaseHistoryEntry, candidate string) bool {
	if len(history) < pingPongWindow-1 {
		return false
	}
	tail := history[len(history)-(pingPongWindow-1):]
	seq := make([]string, 0, pingPongWindow)
	for _, e := range tail {
		seq = append(seq, e.Phase)
	}
	seq = append(seq, candidate)
	if len(seq) < 4 {
		return false
	}
	n := len(seq)
	return seq[n-1] == seq[n-3] && seq[n-2] == seq[n-4] && seq[n-1] != seq[n-2]
}

func currentVertex(state *statestore.PipelineState) string {
	if len(state.PhaseHistory) == 0 {
		return ""
	}
	return state.PhaseHistory[len(state.PhaseHistory)-1].Phase
}

func (c *Coordinator) highestDimensionSumNeighbour(curr string) string {
	var candidates []polytope.Candidate
	if curr != "" {
		candidates = c.Polytope.Score(curr, polytope.Dim7{1, 1, 1, 1, 1, 1, 1})
	}
	if len(candidates) == 0 {
		candidates = c.Polytope.Score("", polytope.Dim7{1, 1, 1, 1, 1, 1, 1})
	}
	for _, cand := range candidates {
		if _, ok := c.Phases[cand.Vertex.Name]; ok {
			return cand.Vertex.Name
		}
	}
	// Last resort: any registered phase, deterministic by name.
	if len(c.Phases) == 0 {
		return ""
	}
	names := make([]string, 0, len(c.Phases))
	for name := range c.Phases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0]
}
