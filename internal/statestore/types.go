package statestore

import (
	"time"

	"github.com/google/uuid"

	"github.com/daydemir/orchestrator/internal/task"
)

// maxPhaseHistory bounds PipelineState.PhaseHistory: history is
// retained for diagnostics, not indefinitely.
const maxPhaseHistory = 1000

// PhaseRecord is the coordinator's adaptive bookkeeping for one phase
// name, carried across runs.
type PhaseRecord struct {
	Name            string    `json:"name"`
	ExperienceCount int       `json:"experienceCount"`
	AwarenessLevel  float64   `json:"awarenessLevel"`
	LastRunAt       time.Time `json:"lastRunAt,omitzero"`
}

// PhaseHistoryEntry is one phase run, kept for diagnostics, for the
// coordinator's ping-pong check (wouldPingPong), and for QA's handoff
// lookup (mostRecentHandoff).
type PhaseHistoryEntry struct {
	Phase     string    `json:"phase"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	TaskID    task.ID   `json:"taskId,omitempty"`
	Outcome   string    `json:"outcome"`
}

// Issue is a recorded finding from an analysis pass or QA run, not yet
// promoted to a task.
type Issue struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	File        string    `json:"file,omitempty"`
	Severity    string    `json:"severity,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Correlation links two files or tasks observed to change together,
// used as situation-analysis input.
type Correlation struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

// Sample is one append-only observation recorded against a named
// performance metric (e.g. iteration duration, tokens per turn).
type Sample struct {
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Pattern is one append-only observation recorded against a named
// learned pattern key (e.g. a recurring friction point a
// self-improvement phase keeps rediscovering).
type Pattern struct {
	Value      string    `json:"value"`
	RecordedAt time.Time `json:"recordedAt"`
}

// PolytopeState is the coordinator's Dim7 phase-selection graph state,
// persisted so selection is reproducible across restarts.
type PolytopeState struct {
	DefinitionPath string             `json:"definitionPath,omitempty"`
	LastSelected   string             `json:"lastSelected,omitempty"`
	Weights        map[string][]float64 `json:"weights,omitempty"`
}

// PipelineState is the root persisted document.
type PipelineState struct {
	Version              int                      `json:"version"`
	RunID                string                   `json:"runId"`
	Tasks                *task.Graph              `json:"taskGraph"`
	Phases               map[string]*PhaseRecord  `json:"phases"`
	PhaseHistory         []PhaseHistoryEntry      `json:"phaseHistory,omitempty"`
	PerformanceMetrics   map[string][]Sample      `json:"performanceMetrics,omitempty"`
	LearnedPatterns      map[string][]Pattern     `json:"learnedPatterns,omitempty"`
	Correlations         []Correlation            `json:"correlations,omitempty"`
	Issues               []Issue                  `json:"issues,omitempty"`
	Polytope             PolytopeState            `json:"polytope"`
	UpdatedAt            time.Time                `json:"updatedAt"`
}

// NewState returns a freshly initialised PipelineState for a new run.
func NewState() *PipelineState {
	return &PipelineState{
		Version:            1,
		RunID:              uuid.NewString(),
		Tasks:              task.NewGraph(),
		Phases:             make(map[string]*PhaseRecord),
		PerformanceMetrics: make(map[string][]Sample),
		LearnedPatterns:    make(map[string][]Pattern),
		UpdatedAt:          time.Now(),
	}
}

// Validate checks the invariants cheap enough to enforce on every
// load/save: non-empty RunID, a version of at least 1, a non-nil task
// graph, and task-map keys that match each task's ID.
func (s *PipelineState) Validate() error {
	if s.RunID == "" {
		return errField("runId", "must not be empty")
	}
	if s.Version < 1 {
		return errField("version", "must be >= 1")
	}
	if s.Tasks == nil {
		return errField("taskGraph", "must not be nil")
	}
	for id, t := range s.Tasks.Tasks {
		if t.ID != id {
			return errField("taskGraph.tasks", "key/id mismatch for "+string(id))
		}
	}
	return nil
}

// AppendPhaseHistory records a completed phase run, trimming to the
// most recent maxPhaseHistory entries.
func (s *PipelineState) AppendPhaseHistory(e PhaseHistoryEntry) {
	s.PhaseHistory = append(s.PhaseHistory, e)
	if len(s.PhaseHistory) > maxPhaseHistory {
		s.PhaseHistory = s.PhaseHistory[len(s.PhaseHistory)-maxPhaseHistory:]
	}
}

// PhaseRecordFor returns the adaptive record for name, creating it on
// first access.
func (s *PipelineState) PhaseRecordFor(name string) *PhaseRecord {
	if s.Phases == nil {
		s.Phases = make(map[string]*PhaseRecord)
	}
	r, ok := s.Phases[name]
	if !ok {
		r = &PhaseRecord{Name: name}
		s.Phases[name] = r
	}
	return r
}

func errField(field, msg string) error {
	return &fieldError{field: field, msg: msg}
}

type fieldError struct {
	field string
	msg   string
}

func (e *fieldError) Error() string {
	return "statestore: " + e.field + ": " + e.msg
}
