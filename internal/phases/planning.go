package phases

import (
	"github.com/daydemir/orchestrator/internal/phase"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// planningSingletonID names the per-run meta task planning hangs its
// create_task calls off; it carries no file-level meaning itself.
const planningSingletonID task.ID = "planning-pass"

// Planning breaks the project's current goal down into feature/bugfix
// tasks via create_task calls. It never edits files itself.
type Planning struct{}

func (Planning) Name() string { return "planning" }

func (Planning) SystemPrompt(state *statestore.PipelineState) string {
	return "You are the planning phase. Break down outstanding work into " +
		"concrete feature and bugfix tasks using create_task. Call " +
		"complete_task when you have produced enough tasks for this pass."
}

func (Planning) AllowedTools(state *statestore.PipelineState) []string {
	return []string{"create_task", "complete_task", "read_file", "list_files"}
}

func (Planning) SelectOrCreateTask(state *statestore.PipelineState) (*task.Task, error) {
	return findOrCreateSingleton(state, planningSingletonID,
		"Planning pass", "Decompose outstanding work into actionable tasks.",
		task.CategoryProjectPlan)
}

func (Planning) CompletionPredicate(rs phase.RunState) bool {
	return rs.Task == nil || terminal(rs.Task.Status)
}

func (Planning) Dim7() polytope.Dim7 {
	return dim7(0.8, 0.9, 0.3, 0.2, 0.1, 0.7, 0.4)
}
