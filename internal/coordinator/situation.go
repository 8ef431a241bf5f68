package coordinator

import (
	"time"

	"github.com/daydemir/orchestrator/internal/ipc"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
)

// Severity classifies how bad the currently visible error signal is.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// recentCreationThreshold is the "≥15 in last 10 iterations" trigger
// that bumps the data dimension and forces refactoring
// as a candidate.
const recentCreationThreshold = 15

// Situation is the record the selector scores candidates against
//
type Situation struct {
	HasErrors                bool
	ErrorSeverity            Severity
	Complexity               string // "low", "med", "high"
	Urgency                  bool
	PendingTaskCount         int
	RecentFileCreations      int
	DuplicatePatternsDetected bool
	IPCHints                 map[string]ipc.Header
}

// analyseSituation derives a Situation from the current PipelineState
// and each phase's READ mailbox. The K=20 periodic-hygiene trigger is
// not part of the Situation; weightsFor and selectPhase apply it from
// the outer-loop iteration counter.
func (c *Coordinator) analyseSituation(state *statestore.PipelineState) Situation {
	s := Situation{IPCHints: make(map[string]ipc.Header)}

	var qaFailed, blocked, critical int
	for _, t := range state.Tasks.Tasks {
		switch t.Status {
		case task.StatusPending, task.StatusInProgress, task.StatusQAFailed, task.StatusBlocked:
			s.PendingTaskCount++
		}
		if t.Status == task.StatusQAFailed {
			qaFailed++
		}
		if t.Status == task.StatusBlocked {
			blocked++
		}
		if t.Status == task.StatusPending && t.Priority == task.PriorityCritical {
			critical++
		}
	}
	for _, r := range state.Tasks.RefactoringTasks {
		if r.Status == task.StatusPending {
			s.PendingTaskCount++
		}
	}

	s.HasErrors = qaFailed > 0 || blocked > 0
	switch {
	case critical > 0 && blocked > 0:
		s.ErrorSeverity = SeverityCritical
	case blocked > 0:
		s.ErrorSeverity = SeverityHigh
	case qaFailed > 0:
		s.ErrorSeverity = SeverityMedium
	default:
		s.ErrorSeverity = SeverityNone
	}

	switch {
	case s.PendingTaskCount > 15:
		s.Complexity = "high"
	case s.PendingTaskCount > 5:
		s.Complexity = "med"
	default:
		s.Complexity = "low"
	}
	s.Urgency = critical > 0

	cutoff := time.Now().Add(-recentFileWindow)
	for _, f := range state.Tasks.Files {
		if f.Created.After(cutoff) {
			s.RecentFileCreations++
		}
	}
	s.DuplicatePatternsDetected = s.RecentFileCreations >= recentCreationThreshold

	for name := range c.Phases {
		doc, err := c.Mailboxes.ReadRead(name)
		if err != nil {
			continue
		}
		if doc.Header.NextPhase != "" || len(doc.Header.Files) > 0 {
			s.IPCHints[name] = doc.Header
		}
	}

	return s
}

// recentFileWindow is the wall-clock approximation of the
// "last 10 iterations" for file-creation recency, since the coordinator
// doesn't otherwise timestamp iterations.
const recentFileWindow = 10 * time.Minute

// weightsFor derives the situation-specific Dim7 weight vector (spec
// §4.8.2): a floor weight on every dimension, bumped by whichever
// conditions this situation triggers.
func weightsFor(s Situation, iteration int) polytope.Dim7 {
	w := polytope.Dim7{0.3, 0.3, 0.3, 0.3, 0.3, 0.3, 0.3}

	switch s.ErrorSeverity {
	case SeverityCritical, SeverityHigh:
		w[4] += 0.6 // error
		w[5] += 0.4 // context
	case SeverityMedium:
		w[4] += 0.3
		w[5] += 0.2
	}
	switch s.Complexity {
	case "high":
		w[1] += 0.4 // functional
		w[6] += 0.3 // integration
	case "med":
		w[1] += 0.2
	}
	if s.Urgency {
		w[0] += 0.4 // temporal
	}
	if s.DuplicatePatternsDetected {
		w[2] += 0.4 // data
	}
	if iteration > 0 && iteration%hygieneInterval == 0 {
		w[6] += 0.2 // integration: periodic hygiene leans refactoring
	}
	return w
}
