package phases

import (
	"github.com/daydemir/orchestrator/internal/phase"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// selfImprovement is the shared shape behind the several self-improvement
// phase variants (spec.md §2: "plus several self-improvement phases").
// None of them operate on a task.Graph entry -- they reflect on
// PipelineState's own adaptive bookkeeping (PerformanceMetrics,
// LearnedPatterns, PhaseHistory) and record what they learn directly
// into it, so one LLM turn is enough per run.
type selfImprovement struct {
	name   string
	prompt string
	tools  []string
	dim    polytope.Dim7
}

func (s selfImprovement) Name() string { return s.name }

func (s selfImprovement) SystemPrompt(state *statestore.PipelineState) string { return s.prompt }

func (s selfImprovement) AllowedTools(state *statestore.PipelineState) []string { return s.tools }

func (s selfImprovement) SelectOrCreateTask(state *statestore.PipelineState) (*task.Task, error) {
	return nil, nil
}

// CompletionPredicate stops after one full conversational turn: these
// phases distill a single observation per run rather than iterating to
// a task's terminal status.
func (s selfImprovement) CompletionPredicate(rs phase.RunState) bool {
	return rs.Iteration > 1
}

func (s selfImprovement) Dim7() polytope.Dim7 { return s.dim }

// PromptTuning reviews recent phase outcomes and records adjustments to
// how phases should be approached, stored in LearnedPatterns. No phase
// reads LearnedPatterns back into its prompt.
var PromptTuning = selfImprovement{
	name:   "self-improvement-prompt-tuning",
	prompt: "You are the self-improvement (prompt tuning) phase. Review recent phase history for recurring friction and call record_learned_pattern with a concise adjustment.",
	tools:  []string{"read_file", "record_learned_pattern"},
	dim:    dim7(0.7, 0.2, 0.2, 0.3, 0.5, 0.9, 0.4),
}

// PatternLearning looks for recurring structural patterns across
// completed tasks (e.g. a file that keeps needing the same kind of fix)
// and records them in PipelineState.Correlations. Situation analysis
// does not read Correlations.
var PatternLearning = selfImprovement{
	name:   "self-improvement-pattern-learning",
	prompt: "You are the self-improvement (pattern learning) phase. Look for files or tasks that keep correlating with the same kind of failure and call record_correlation.",
	tools:  []string{"read_file", "list_files", "record_correlation"},
	dim:    dim7(0.6, 0.3, 0.6, 0.4, 0.6, 0.7, 0.5),
}
