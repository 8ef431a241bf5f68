package phases

import (
	"github.com/daydemir/orchestrator/internal/phase"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// Refactoring works the highest-priority pending RefactoringTask
// (selected by phase.Runner itself via task.Graph.SelectNextRefactoring,
// since refactoring tasks live in a separate table from ordinary
// tasks). It never returns an ordinary *task.Task.
type Refactoring struct{}

func (Refactoring) Name() string { return "refactoring" }

func (Refactoring) SystemPrompt(state *statestore.PipelineState) string {
	return "You are the refactoring phase. Investigate the selected " +
		"refactoring task's analysisData. If FixApproach is AUTONOMOUS, " +
		"apply the fix with merge_file_implementations or " +
		"cleanup_redundant_files. If REVIEW_REPORT, call " +
		"create_issue_report instead of touching code directly."
}

func (Refactoring) AllowedTools(state *statestore.PipelineState) []string {
	return []string{
		"read_file", "list_files",
		"merge_file_implementations", "cleanup_redundant_files",
		"create_issue_report", "request_developer_review",
		"update_refactoring_task",
	}
}

// SelectOrCreateTask always returns nil: phase.Runner special-cases the
// "refactoring" phase name to select from task.Graph.RefactoringTasks
// instead, since that table has its own independent lifecycle (I6 GC of
// broken tasks, its own priority selection).
func (Refactoring) SelectOrCreateTask(state *statestore.PipelineState) (*task.Task, error) {
	return nil, nil
}

func (Refactoring) CompletionPredicate(rs phase.RunState) bool {
	return rs.Refactoring == nil || terminal(rs.Refactoring.Status) || rs.ResolvingCalled
}

func (Refactoring) Dim7() polytope.Dim7 {
	return dim7(0.2, 0.5, 0.4, 0.4, 0.3, 0.6, 0.8)
}
