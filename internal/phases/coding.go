package phases

import (
	"github.com/daydemir/orchestrator/internal/phase"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// Coding implements the currently selected feature/bugfix task, ending
// its run either at a terminal status (a hard failure it can detect
// itself) or by handing the task off to QA via mark_ready_for_review,
// leaving it IN_PROGRESS for QA to approve or reject.
type Coding struct{}

func (Coding) Name() string { return "coding" }

func (Coding) SystemPrompt(state *statestore.PipelineState) string {
	return "You are the coding phase. Implement the selected task's target " +
		"file using create_file/modify_file/full_file_rewrite. Run the " +
		"project's build/tests before handing off. Call " +
		"mark_ready_for_review when implementation is complete, or " +
		"fail_task/mark_blocked if the task cannot be completed."
}

func (Coding) AllowedTools(state *statestore.PipelineState) []string {
	return []string{
		"read_file", "list_files", "create_file", "modify_file",
		"full_file_rewrite", "move_file", "delete_file",
		"run_build", "run_tests", "mark_ready_for_review",
		"fail_task", "mark_blocked",
	}
}

func (Coding) SelectOrCreateTask(state *statestore.PipelineState) (*task.Task, error) {
	return selectByCategory(state, task.CategoryFeature, task.CategoryBugfix), nil
}

func (Coding) CompletionPredicate(rs phase.RunState) bool {
	if rs.Task == nil {
		return true
	}
	return terminal(rs.Task.Status) || rs.HandoffCalled
}

func (Coding) Dim7() polytope.Dim7 {
	return dim7(0.5, 0.9, 0.7, 0.6, 0.4, 0.5, 0.6)
}
