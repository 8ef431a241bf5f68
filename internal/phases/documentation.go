package phases

import (
	"github.com/daydemir/orchestrator/internal/phase"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// Documentation keeps doc comments, README content, and design notes in
// sync with recently completed work.
type Documentation struct{}

func (Documentation) Name() string { return "documentation" }

func (Documentation) SystemPrompt(state *statestore.PipelineState) string {
	return "You are the documentation phase. Bring docs and comments up " +
		"to date with the task's changes using modify_file or " +
		"full_file_rewrite, then call complete_task."
}

func (Documentation) AllowedTools(state *statestore.PipelineState) []string {
	return []string{"read_file", "list_files", "modify_file", "full_file_rewrite", "complete_task", "fail_task"}
}

func (Documentation) SelectOrCreateTask(state *statestore.PipelineState) (*task.Task, error) {
	return selectByCategory(state, task.CategoryDocumentation), nil
}

func (Documentation) CompletionPredicate(rs phase.RunState) bool {
	return rs.Task == nil || terminal(rs.Task.Status)
}

func (Documentation) Dim7() polytope.Dim7 {
	return dim7(0.6, 0.2, 0.3, 0.2, 0.1, 0.4, 0.3)
}
