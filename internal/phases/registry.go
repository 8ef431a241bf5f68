package phases

import "github.com/daydemir/orchestrator/internal/phase"

// All returns every built-in phase.Definition, in a stable order. The
// coordinator builds its name -> Definition lookup table from it, and
// workspace.Init's default polytope.toml declares one vertex per entry.
func All() []phase.Definition {
	return []phase.Definition{
		Planning{},
		Coding{},
		QA{},
		Debugging{},
		Investigation{},
		Refactoring{},
		Documentation{},
		ProjectPlanning{},
		PromptTuning,
		PatternLearning,
	}
}
