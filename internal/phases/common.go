// Package phases provides the ten thin phase.Definition implementations:
// one file per phase (selfimprovement.go holds both self-improvement
// variants), each configuring phase.Runner
// with a system prompt, tool allow-list, completion predicate, and task
// selection strategy: each phase is a swappable value plugged into
// the same generic phase.Runner loop rather than a fixed
// plan/execute/analyze pipeline.
package phases

import (
	"fmt"
	"sort"
	"time"

	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// terminal reports whether a task status is one CompletionPredicate
// should treat as "this run is over".
func terminal(s task.Status) bool {
	switch s {
	case task.StatusCompleted, task.StatusFailed, task.StatusQAFailed, task.StatusBlocked:
		return true
	}
	return false
}

// selectByCategory returns the highest-priority pending task in one of
// the given categories, oldest first on ties (delegates to task.Graph's
// own tie-break so every phase's plain selection agrees with
// SelectNext's ordering).
func selectByCategory(state *statestore.PipelineState, categories ...task.Category) *task.Task {
	want := make(map[task.Category]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}
	return state.Tasks.SelectNext(func(t *task.Task) bool { return want[t.Category] })
}

// selectByStatus scans the task graph directly for tasks in a given
// non-PENDING status (task.Graph exposes no such accessor since only
// PENDING tasks are ever auto-selected by SelectNext); used by the
// debugging phase to pick up QA_FAILED work.
func selectByStatus(state *statestore.PipelineState, status task.Status) *task.Task {
	var candidates []*task.Task
	for _, t := range state.Tasks.Tasks {
		if t.Status == status {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0]
}

// mostRecentHandoff finds the task id of the most recent PhaseHistory
// entry for fromPhase whose task is still IN_PROGRESS (handed off, not
// yet resolved) -- the target a downstream phase (QA, after coding)
// picks up.
func mostRecentHandoff(state *statestore.PipelineState, fromPhase string) *task.Task {
	for i := len(state.PhaseHistory) - 1; i >= 0; i-- {
		entry := state.PhaseHistory[i]
		if entry.Phase != fromPhase || entry.TaskID == "" {
			continue
		}
		if t, ok := state.Tasks.Get(entry.TaskID); ok && t.Status == task.StatusInProgress {
			return t
		}
	}
	return nil
}

// findOrCreateSingleton returns the single pending task of the given
// category/title, creating it if absent. Phases that operate at a
// whole-project level rather than a per-file level (planning,
// project-planning) still need a concrete *task.Task for the Runner's
// start/complete lifecycle to hang off.
func findOrCreateSingleton(state *statestore.PipelineState, id task.ID, title, description string, category task.Category) (*task.Task, error) {
	if t, ok := state.Tasks.Get(id); ok {
		if t.Status == task.StatusPending || t.Status == task.StatusInProgress {
			return t, nil
		}
		// Previous pass finished; start a fresh singleton for this run.
		id = task.ID(fmt.Sprintf("%s-%d", id, time.Now().UnixNano()))
	}
	t := &task.Task{
		ID:          id,
		Title:       title,
		Description: description,
		Priority:    task.PriorityMedium,
		Category:    category,
	}
	if err := state.Tasks.Create(t); err != nil {
		return nil, err
	}
	return t, nil
}

// dim7 is a small constructor for readability at each phase's call site.
func dim7(temporal, functional, data, state_, errorDim, context, integration float64) polytope.Dim7 {
	return polytope.Dim7{temporal, functional, data, state_, errorDim, context, integration}
}
