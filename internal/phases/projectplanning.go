package phases

import (
	"github.com/daydemir/orchestrator/internal/phase"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// projectPlanningSingletonID is ProjectPlanning's own per-run meta task,
// distinct from Planning's so the two phases never contend for the same
// singleton row.
const projectPlanningSingletonID task.ID = "project-planning-pass"

// ProjectPlanning operates at the roadmap level: it reviews overall
// progress (performance metrics, correlations, pending task mix) and
// creates or reprioritises project-plan tasks, a level above Planning's
// per-feature breakdown.
type ProjectPlanning struct{}

func (ProjectPlanning) Name() string { return "project-planning" }

func (ProjectPlanning) SystemPrompt(state *statestore.PipelineState) string {
	return "You are the project-planning phase. Review overall project " +
		"health and create high-level project-plan tasks for the next " +
		"milestone using create_task. Call complete_task when done."
}

func (ProjectPlanning) AllowedTools(state *statestore.PipelineState) []string {
	return []string{"create_task", "complete_task", "read_file", "list_files"}
}

func (ProjectPlanning) SelectOrCreateTask(state *statestore.PipelineState) (*task.Task, error) {
	return findOrCreateSingleton(state, projectPlanningSingletonID,
		"Project planning pass", "Review overall progress and set the next milestone's tasks.",
		task.CategoryProjectPlan)
}

func (ProjectPlanning) CompletionPredicate(rs phase.RunState) bool {
	return rs.Task == nil || terminal(rs.Task.Status)
}

func (ProjectPlanning) Dim7() polytope.Dim7 {
	return dim7(0.9, 0.6, 0.5, 0.3, 0.2, 0.8, 0.6)
}
