package phases

import (
	"github.com/daydemir/orchestrator/internal/phase"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// QA picks up the task coding most recently handed off (still
// IN_PROGRESS) and decides whether to approve it (complete_task) or
// reject it (mark_qa_failed), optionally filing an issue report for
// anything it finds that isn't the current task's own responsibility.
type QA struct{}

func (QA) Name() string { return "qa" }

func (QA) SystemPrompt(state *statestore.PipelineState) string {
	return "You are the QA phase. Review the handed-off task's changes. " +
		"Call complete_task to approve, or mark_qa_failed with the " +
		"specific issues found to reject. Use report_issue for anything " +
		"out of scope for this task."
}

func (QA) AllowedTools(state *statestore.PipelineState) []string {
	return []string{
		"read_file", "run_tests", "run_verification",
		"complete_task", "mark_qa_failed", "report_issue",
	}
}

func (QA) SelectOrCreateTask(state *statestore.PipelineState) (*task.Task, error) {
	return mostRecentHandoff(state, "coding"), nil
}

func (QA) CompletionPredicate(rs phase.RunState) bool {
	return rs.Task == nil || terminal(rs.Task.Status)
}

func (QA) Dim7() polytope.Dim7 {
	return dim7(0.4, 0.6, 0.5, 0.7, 0.9, 0.4, 0.5)
}
