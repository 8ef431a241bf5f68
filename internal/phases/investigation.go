package phases

import (
	"github.com/daydemir/orchestrator/internal/phase"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// Investigation works a CategoryInvestigation task: read-only exploration
// that ends by filing findings as new feature/bugfix tasks or an issue
// report, never by editing files directly.
type Investigation struct{}

func (Investigation) Name() string { return "investigation" }

func (Investigation) SystemPrompt(state *statestore.PipelineState) string {
	return "You are the investigation phase. Explore the codebase to " +
		"answer the task's question. Record findings with create_task " +
		"(for follow-up work) or report_issue, then call complete_task."
}

func (Investigation) AllowedTools(state *statestore.PipelineState) []string {
	return []string{
		"read_file", "list_files", "run_tests",
		"create_task", "report_issue", "complete_task", "fail_task",
	}
}

func (Investigation) SelectOrCreateTask(state *statestore.PipelineState) (*task.Task, error) {
	return selectByCategory(state, task.CategoryInvestigation), nil
}

func (Investigation) CompletionPredicate(rs phase.RunState) bool {
	return rs.Task == nil || terminal(rs.Task.Status)
}

func (Investigation) Dim7() polytope.Dim7 {
	return dim7(0.4, 0.3, 0.8, 0.3, 0.6, 0.9, 0.3)
}
