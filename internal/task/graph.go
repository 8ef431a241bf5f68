package task

import (
	"fmt"
	"sort"
	"time"
)

// Graph is the in-memory task table nested inside PipelineState. It is the
// single owner of task lifecycle transitions; callers never
// mutate a Task they got back from Get/ListPending in place.
type Graph struct {
	Tasks            map[ID]*Task            `json:"tasks"`
	RefactoringTasks map[ID]*RefactoringTask `json:"refactoringTasks"`
	Files            map[string]*FileRecord  `json:"files"`
}

// FileRecord tracks a target-project file touched by the pipeline.
type FileRecord struct {
	Path               string    `json:"path"`
	Created            time.Time `json:"created"`
	Modified           time.Time `json:"modified"`
	AssociatedTaskIDs  []ID      `json:"associatedTaskIds,omitempty"`
	VerificationStatus string    `json:"verificationStatus,omitempty"`
}

// NewGraph returns an empty, ready-to-use Graph.
func NewGraph() *Graph {
	return &Graph{
		Tasks:            make(map[ID]*Task),
		RefactoringTasks: make(map[ID]*RefactoringTask),
		Files:            make(map[string]*FileRecord),
	}
}

// Create adds a task to the graph. Rejects id collisions, category/file
// mismatches, and (for refactoring tasks routed through CreateRefactoring)
// broken refactoring tasks.
func (g *Graph) Create(t *Task) error {
	if _, exists := g.Tasks[t.ID]; exists {
		return fmt.Errorf("task %s: id already exists", t.ID)
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if t.MaxAttempts == 0 {
		t.MaxAttempts = MaxAttempts(t.Priority)
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	g.Tasks[t.ID] = t
	return nil
}

// CreateRefactoring adds a refactoring task, rejecting broken ones per I6.
func (g *Graph) CreateRefactoring(r *RefactoringTask) error {
	if r.IsBroken() {
		return fmt.Errorf("refactoring task %s: broken (empty analysisData or title contains %q)", r.ID, "Unknown")
	}
	if _, exists := g.RefactoringTasks[r.ID]; exists {
		return fmt.Errorf("refactoring task %s: id already exists", r.ID)
	}
	if err := r.Task.Validate(); err != nil {
		return err
	}
	if r.MaxAttempts == 0 {
		r.MaxAttempts = MaxAttempts(r.Priority)
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	g.RefactoringTasks[r.ID] = r
	return nil
}

// Get returns a task by id, or false if it doesn't exist.
func (g *Graph) Get(id ID) (*Task, bool) {
	t, ok := g.Tasks[id]
	return t, ok
}

// GetRefactoring returns a refactoring task by id, or false if it doesn't exist.
func (g *Graph) GetRefactoring(id ID) (*RefactoringTask, bool) {
	r, ok := g.RefactoringTasks[id]
	return r, ok
}

// Filter selects tasks matching a predicate.
type Filter func(*Task) bool

// ListPending returns all PENDING tasks matching filter, in no particular order.
func (g *Graph) ListPending(filter Filter) []*Task {
	var out []*Task
	for _, t := range g.Tasks {
		if t.Status != StatusPending {
			continue
		}
		if filter == nil || filter(t) {
			out = append(out, t)
		}
	}
	return out
}

var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// SelectNext returns the highest-priority pending task matching filter,
// ties broken by oldest CreatedAt. Returns nil if nothing matches.
func (g *Graph) SelectNext(filter Filter) *Task {
	candidates := g.ListPending(filter)
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := priorityRank[candidates[i].Priority], priorityRank[candidates[j].Priority]
		if pi != pj {
			return pi < pj
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0]
}

// Start transitions a task PENDING -> IN_PROGRESS and increments Attempts.
func (g *Graph) Start(id ID) error {
	t, ok := g.Tasks[id]
	if !ok {
		return fmt.Errorf("task %s: not found", id)
	}
	if !CanTransition(t.Status, StatusInProgress) {
		return fmt.Errorf("task %s: cannot start from status %s", id, t.Status)
	}
	t.Status = StatusInProgress
	t.Attempts++
	t.UpdatedAt = time.Now()
	return nil
}

// Complete transitions a task IN_PROGRESS -> COMPLETED. If file is
// non-empty, the task id is recorded against that file's FileRecord.
func (g *Graph) Complete(id ID, file string) error {
	t, ok := g.Tasks[id]
	if !ok {
		return fmt.Errorf("task %s: not found", id)
	}
	if !CanTransition(t.Status, StatusCompleted) {
		return fmt.Errorf("task %s: cannot complete from status %s", id, t.Status)
	}
	t.Status = StatusCompleted
	t.UpdatedAt = time.Now()
	if file != "" {
		g.touchFile(file, id)
	}
	return nil
}

// Fail records a failed attempt. If attempts have been exhausted per
// MaxAttempts, the task moves to FAILED permanently (I3: never silently
// flipped back to COMPLETED); otherwise it returns to PENDING with reason
// appended to ErrorHistory.
func (g *Graph) Fail(id ID, reason string) error {
	t, ok := g.Tasks[id]
	if !ok {
		return fmt.Errorf("task %s: not found", id)
	}
	t.ErrorHistory = append(t.ErrorHistory, ErrorEntry{At: time.Now(), Message: reason})
	if t.Attempts >= t.MaxAttempts {
		if !CanTransition(t.Status, StatusFailed) {
			return fmt.Errorf("task %s: cannot fail from status %s", id, t.Status)
		}
		t.Status = StatusFailed
	} else {
		t.Status = StatusPending
	}
	t.UpdatedAt = time.Now()
	return nil
}

// MarkQaFailed transitions IN_PROGRESS -> QA_FAILED, recording the
// reported issues in the error history.
func (g *Graph) MarkQaFailed(id ID, issues string) error {
	t, ok := g.Tasks[id]
	if !ok {
		return fmt.Errorf("task %s: not found", id)
	}
	if !CanTransition(t.Status, StatusQAFailed) {
		return fmt.Errorf("task %s: cannot mark qa-failed from status %s", id, t.Status)
	}
	t.Status = StatusQAFailed
	t.ErrorHistory = append(t.ErrorHistory, ErrorEntry{At: time.Now(), Message: issues})
	t.UpdatedAt = time.Now()
	return nil
}

// MarkBlocked transitions IN_PROGRESS -> BLOCKED.
func (g *Graph) MarkBlocked(id ID, reason string) error {
	t, ok := g.Tasks[id]
	if !ok {
		return fmt.Errorf("task %s: not found", id)
	}
	if !CanTransition(t.Status, StatusBlocked) {
		return fmt.Errorf("task %s: cannot block from status %s", id, t.Status)
	}
	t.Status = StatusBlocked
	t.ErrorHistory = append(t.ErrorHistory, ErrorEntry{At: time.Now(), Message: reason})
	t.UpdatedAt = time.Now()
	return nil
}

// Resume transitions QA_FAILED or BLOCKED back to IN_PROGRESS.
func (g *Graph) Resume(id ID) error {
	t, ok := g.Tasks[id]
	if !ok {
		return fmt.Errorf("task %s: not found", id)
	}
	if !CanTransition(t.Status, StatusInProgress) {
		return fmt.Errorf("task %s: cannot resume from status %s", id, t.Status)
	}
	t.Status = StatusInProgress
	t.UpdatedAt = time.Now()
	return nil
}

// Delete removes a task. Only permitted for broken/legacy refactoring
// tasks and tasks already COMPLETED/FAILED (GC time).
func (g *Graph) Delete(id ID) error {
	if t, ok := g.Tasks[id]; ok {
		if t.Status != StatusCompleted && t.Status != StatusFailed {
			return fmt.Errorf("task %s: cannot delete task in status %s", id, t.Status)
		}
		delete(g.Tasks, id)
		return nil
	}
	if r, ok := g.RefactoringTasks[id]; ok {
		if !r.IsBroken() {
			return fmt.Errorf("refactoring task %s: cannot delete a task that is not broken", id)
		}
		delete(g.RefactoringTasks, id)
		return nil
	}
	return fmt.Errorf("task %s: not found", id)
}

// GCBrokenRefactoringTasks deletes every refactoring task violating I6
// and returns their ids. Called on refactoring-phase entry.
func (g *Graph) GCBrokenRefactoringTasks() []ID {
	var removed []ID
	for id, r := range g.RefactoringTasks {
		if r.IsBroken() {
			delete(g.RefactoringTasks, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// SelectNextRefactoring returns the highest-priority pending refactoring
// task with non-empty AnalysisData, ties broken by oldest CreatedAt.
func (g *Graph) SelectNextRefactoring() *RefactoringTask {
	var candidates []*RefactoringTask
	for _, r := range g.RefactoringTasks {
		if r.Status == StatusPending && !r.IsBroken() {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := priorityRank[candidates[i].Priority], priorityRank[candidates[j].Priority]
		if pi != pj {
			return pi < pj
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0]
}

func (g *Graph) touchFile(path string, taskID ID) {
	rec, ok := g.Files[path]
	now := time.Now()
	if !ok {
		rec = &FileRecord{Path: path, Created: now}
		g.Files[path] = rec
	}
	rec.Modified = now
	for _, id := range rec.AssociatedTaskIDs {
		if id == taskID {
			return
		}
	}
	rec.AssociatedTaskIDs = append(rec.AssociatedTaskIDs, taskID)
}
