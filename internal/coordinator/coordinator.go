// Package coordinator implements the outer loop that loads state,
// analyses the situation, selects the next phase off the polytope graph,
// runs it through a phase.Runner, merges the result back into
// PipelineState, and persists it: a load -> plan -> execute -> persist
// cycle generalised from a fixed pipeline to polytope-driven phase
// selection.
package coordinator

import (
	"context"
	"errors"
	"time"

	"dario.cat/mergo"
	"github.com/charmbracelet/log"

	"github.com/daydemir/orchestrator/internal/conversation"
	"github.com/daydemir/orchestrator/internal/ipc"
	"github.com/daydemir/orchestrator/internal/phase"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// hygieneInterval forces a refactoring pass every K iterations.
const hygieneInterval = 20

// ExitCode mirrors the pipeline's termination codes.
type ExitCode int

const (
	ExitAllCompleted    ExitCode = 0
	ExitTasksFailed     ExitCode = 2
	ExitBudgetExhausted ExitCode = 3
	ExitFatal           ExitCode = 4
)

// Config bounds the coordinator's outer loop.
type Config struct {
	MaxIterations int
}

// DefaultConfig sets a generous default iteration ceiling: a full
// multi-phase pipeline run needs many more outer-loop turns than a
// single plan-execute cycle would.
func DefaultConfig() Config {
	return Config{MaxIterations: 200}
}

// Coordinator drives PhaseCoordinator's outer loop.
type Coordinator struct {
	Store     *statestore.Store
	Polytope  *polytope.Graph
	Mailboxes *ipc.Mailboxes
	Runner    *phase.Runner
	Phases    map[string]phase.Definition
	Logger    *log.Logger
	Config    Config
}

// New builds a Coordinator from the registered phase.Definitions.
func New(store *statestore.Store, poly *polytope.Graph, mailboxes *ipc.Mailboxes, runner *phase.Runner, defs []phase.Definition, logger *log.Logger, cfg Config) *Coordinator {
	byName := make(map[string]phase.Definition, len(defs))
	for _, d := range defs {
		byName[d.Name()] = d
	}
	return &Coordinator{Store: store, Polytope: poly, Mailboxes: mailboxes, Runner: runner, Phases: byName, Logger: logger, Config: cfg}
}

func (c *Coordinator) phaseNames() []string {
	names := make([]string, 0, len(c.Phases))
	for name := range c.Phases {
		names = append(names, name)
	}
	return names
}

// Run executes the main loop until the task graph is
// terminated, the iteration budget is exhausted, or a fatal error forces
// an early exit.
func (c *Coordinator) Run(ctx context.Context) ExitCode {
	state, err := c.Store.Load()
	if err != nil {
		return c.fatal(nil, err)
	}

	threads := make(map[string]*conversation.Thread)

	for iteration := 0; iteration < c.Config.MaxIterations; iteration++ {
		if terminated(state) {
			break
		}

		if err := c.Mailboxes.Distribute(c.phaseNames()); err != nil {
			c.Logger.Warn("ipc distribute failed", "error", err)
		}

		situation := c.analyseSituation(state)
		name := c.selectPhase(state, situation, iteration)
		def, ok := c.Phases[name]
		if !ok {
			c.Logger.Error("selected an unregistered phase, stopping", "phase", name)
			break
		}

		entry := statestore.PhaseHistoryEntry{Phase: name, StartedAt: time.Now()}
		state.AppendPhaseHistory(entry)

		thread := threads[name]
		if thread == nil {
			thread = conversation.NewThread(name)
			threads[name] = thread
		}

		result, runErr := c.Runner.Run(ctx, def, state, thread)
		c.recordRun(state, name, result, runErr)

		if result.IPCWrite != "" {
			if err := c.Mailboxes.WriteWrite(name, ipc.Document{Body: result.IPCWrite}); err != nil {
				c.Logger.Warn("ipc write failed", "phase", name, "error", err)
			}
		}

		switch {
		case errors.Is(runErr, phase.ErrBudgetExhausted):
			c.Logger.Warn("phase run exhausted its budget", "phase", name, "task", result.TaskID)
		case runErr != nil:
			c.Logger.Error("phase run returned an error", "phase", name, "error", runErr)
		}

		state.Version++
		if err := c.Store.Save(state); err != nil {
			return c.fatal(state, err)
		}
	}

	return exitCodeFor(state)
}

// recordRun closes out the phase-history entry just appended and merges
// the run's outcome into that phase's adaptive PhaseRecord.
// The record's timestamp is merged in through mergo rather than assigned
// directly so that a zero-value delta (a run that produced nothing worth
// recording beyond "it happened") never clobbers fields a fuller delta
// would have set.
func (c *Coordinator) recordRun(state *statestore.PipelineState, name string, result phase.Result, runErr error) {
	if n := len(state.PhaseHistory); n > 0 {
		last := &state.PhaseHistory[n-1]
		last.EndedAt = time.Now()
		last.TaskID = result.TaskID
		last.Outcome = outcomeFor(state, result, runErr)
	}

	rec := state.PhaseRecordFor(name)
	delta := &statestore.PhaseRecord{Name: name, LastRunAt: time.Now()}
	if err := mergo.Merge(rec, delta, mergo.WithOverride); err != nil {
		c.Logger.Warn("merging phase record", "phase", name, "error", err)
	}
	rec.ExperienceCount++
	rec.AwarenessLevel = polytope.AwarenessLevel(rec.ExperienceCount)
}

func outcomeFor(state *statestore.PipelineState, result phase.Result, runErr error) string {
	switch {
	case errors.Is(runErr, phase.ErrBudgetExhausted):
		return "budget_exhausted"
	case runErr != nil:
		return "error"
	case result.TaskID != "":
		if t, ok := state.Tasks.Get(result.TaskID); ok {
			return string(t.Status)
		}
		return "completed"
	case result.Completed:
		return "completed"
	default:
		return "incomplete"
	}
}

// fatal snapshots state (if available) before returning ExitFatal, per
// the recovery discipline for a corrupted or unreadable state store.
func (c *Coordinator) fatal(state *statestore.PipelineState, err error) ExitCode {
	c.Logger.Error("fatal coordinator error", "error", err)
	if state == nil {
		return ExitFatal
	}
	if path, snapErr := c.Store.Snapshot(state, "fatal"); snapErr != nil {
		c.Logger.Error("failed to snapshot state before fatal exit", "error", snapErr)
	} else {
		c.Logger.Info("snapshotted state before fatal exit", "path", path)
	}
	return ExitFatal
}

// terminated reports whether the task graph has no more work a phase
// could pick up: no task in a non-terminal status, and no pending
// refactoring task with usable analysis data.
func terminated(state *statestore.PipelineState) bool {
	for _, t := range state.Tasks.Tasks {
		switch t.Status {
		case task.StatusPending, task.StatusInProgress, task.StatusQAFailed, task.StatusBlocked:
			return false
		}
	}
	return state.Tasks.SelectNextRefactoring() == nil
}

// exitCodeFor maps final task-graph state to the pipeline's exit codes.
func exitCodeFor(state *statestore.PipelineState) ExitCode {
	var failed, pending int
	for _, t := range state.Tasks.Tasks {
		switch t.Status {
		case task.StatusFailed:
			failed++
		case task.StatusPending, task.StatusInProgress, task.StatusQAFailed, task.StatusBlocked:
			pending++
		}
	}
	switch {
	case failed > 0:
		return ExitTasksFailed
	case pending > 0:
		return ExitBudgetExhausted
	default:
		return ExitAllCompleted
	}
}
