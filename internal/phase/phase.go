// Package phase implements the generic
// conversational loop a named phase drives against an LLM backend,
// dispatching tool calls and watching for loops and lack of progress.
// Individual phases (internal/phases) are thin Definition values; this
// package owns the loop itself.
package phase

import (
	"github.com/daydemir/orchestrator/internal/loopdetect"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// ResolvingTools is the set of tool names whose successful call counts
// toward completing a refactoring task. Purely analytical tool calls succeeding never complete a
// task on their own.
var ResolvingTools = map[string]bool{
	"merge_file_implementations": true,
	"cleanup_redundant_files":    true,
	"create_issue_report":        true,
	"request_developer_review":  true,
	"update_refactoring_task":    true,
}

// HandoffTools mark a task as ready for the QA phase without completing
// it: coding leaves the task IN_PROGRESS and hands it off, QA is the
// phase that ultimately calls complete_task/mark_qa_failed/mark_blocked
// on it (the CanTransition table only allows those transitions from
// IN_PROGRESS, so the task resolution step a phase hands off to must
// still be holding the task open).
var HandoffTools = map[string]bool{
	"mark_ready_for_review": true,
}

// RunState is the information a Definition's CompletionPredicate needs
// to decide whether the current run is done.
type RunState struct {
	Task             *task.Task
	Refactoring      *task.RefactoringTask
	Iteration        int
	NoToolCallStreak int
	ResolvingCalled  bool
	HandoffCalled    bool
	Interventions    []loopdetect.Intervention
}

// Definition is the minimum contract a concrete phase (internal/phases)
// implements.
type Definition interface {
	Name() string
	SystemPrompt(state *statestore.PipelineState) string
	AllowedTools(state *statestore.PipelineState) []string
	CompletionPredicate(rs RunState) bool
	SelectOrCreateTask(state *statestore.PipelineState) (*task.Task, error)
	Dim7() polytope.Dim7
}

// Result summarizes one phase run for the coordinator: what task (if
// any) was worked, how many iterations it took, and what the loop
// detector observed. The coordinator uses this to update phase
// records and phase history; task-graph mutations themselves are
// already applied in place through task.Graph's own transition
// methods, since the coordinator's single-threaded outer loop makes a
// read-only-then-merge indirection for the task graph unnecessary —
// only one PhaseRunner is ever active.
type Result struct {
	PhaseName    string
	TaskID       task.ID
	Iterations   int
	Completed    bool
	Interventions []loopdetect.Intervention
	IPCWrite     string // free-form markdown body for WRITE_<phase>, empty if nothing to report
}
