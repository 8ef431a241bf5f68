package phases

import (
	"github.com/daydemir/orchestrator/internal/phase"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// Debugging picks up a task QA rejected (QA_FAILED) or one coding
// blocked on, and tries again with the recorded issues as context.
type Debugging struct{}

func (Debugging) Name() string { return "debugging" }

func (Debugging) SystemPrompt(state *statestore.PipelineState) string {
	return "You are the debugging phase. A task was rejected or blocked; " +
		"its error history lists why. Fix the underlying problem, then " +
		"call mark_ready_for_review again, or fail_task if it's truly " +
		"unrecoverable."
}

func (Debugging) AllowedTools(state *statestore.PipelineState) []string {
	return []string{
		"read_file", "list_files", "modify_file", "full_file_rewrite",
		"run_build", "run_tests", "mark_ready_for_review", "fail_task",
	}
}

func (Debugging) SelectOrCreateTask(state *statestore.PipelineState) (*task.Task, error) {
	if t := selectByStatus(state, task.StatusQAFailed); t != nil {
		return t, nil
	}
	return selectByStatus(state, task.StatusBlocked), nil
}

func (Debugging) CompletionPredicate(rs phase.RunState) bool {
	if rs.Task == nil {
		return true
	}
	return terminal(rs.Task.Status) || rs.HandoffCalled
}

func (Debugging) Dim7() polytope.Dim7 {
	return dim7(0.3, 0.7, 0.6, 0.5, 1.0, 0.6, 0.5)
}
