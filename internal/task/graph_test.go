package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTask(id ID, p Priority) *Task {
	return &Task{
		ID:       id,
		Title:    "t-" + string(id),
		Priority: p,
		Category: CategoryInvestigation,
		Status:   StatusPending,
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(newTask("a", PriorityHigh)))
	err := g.Create(newTask("a", PriorityLow))
	require.Error(t, err)
}

func TestCreateRejectsMissingTargetFile(t *testing.T) {
	g := NewGraph()
	ta := newTask("a", PriorityHigh)
	ta.Category = CategoryBugfix
	ta.TargetFile = ""
	require.Error(t, g.Create(ta))
}

func TestSelectNextPrefersHigherPriority(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(newTask("low", PriorityLow)))
	require.NoError(t, g.Create(newTask("crit", PriorityCritical)))
	require.NoError(t, g.Create(newTask("med", PriorityMedium)))

	next := g.SelectNext(nil)
	require.NotNil(t, next)
	require.Equal(t, ID("crit"), next.ID)
}

func TestSelectNextTieBreaksByOldestCreatedAt(t *testing.T) {
	g := NewGraph()
	older := newTask("older", PriorityHigh)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := newTask("newer", PriorityHigh)
	newer.CreatedAt = time.Now()

	require.NoError(t, g.Create(newer))
	require.NoError(t, g.Create(older))

	next := g.SelectNext(nil)
	require.Equal(t, ID("older"), next.ID)
}

func TestStartIncrementsAttemptsAndTransitions(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(newTask("a", PriorityHigh)))
	require.NoError(t, g.Start("a"))

	ta, ok := g.Get("a")
	require.True(t, ok)
	require.Equal(t, StatusInProgress, ta.Status)
	require.Equal(t, 1, ta.Attempts)

	require.Error(t, g.Start("a"), "cannot start an already in-progress task")
}

func TestCompleteRecordsFileAssociation(t *testing.T) {
	g := NewGraph()
	ta := newTask("a", PriorityHigh)
	ta.Category = CategoryBugfix
	ta.TargetFile = "main.go"
	require.NoError(t, g.Create(ta))
	require.NoError(t, g.Start("a"))
	require.NoError(t, g.Complete("a", "main.go"))

	rec, ok := g.Files["main.go"]
	require.True(t, ok)
	require.Contains(t, rec.AssociatedTaskIDs, ID("a"))
}

func TestFailReturnsToPendingUntilAttemptsExhausted(t *testing.T) {
	g := NewGraph()
	ta := newTask("a", PriorityLow) // MaxAttempts = 2
	require.NoError(t, g.Create(ta))

	require.NoError(t, g.Start("a"))
	require.NoError(t, g.Fail("a", "first failure"))
	got, _ := g.Get("a")
	require.Equal(t, StatusPending, got.Status)

	require.NoError(t, g.Start("a"))
	require.NoError(t, g.Fail("a", "second failure"))
	got, _ = g.Get("a")
	require.Equal(t, StatusFailed, got.Status)
	require.Len(t, got.ErrorHistory, 2)
}

func TestMarkQaFailedAndResume(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(newTask("a", PriorityHigh)))
	require.NoError(t, g.Start("a"))
	require.NoError(t, g.MarkQaFailed("a", "tests red"))

	got, _ := g.Get("a")
	require.Equal(t, StatusQAFailed, got.Status)

	require.NoError(t, g.Resume("a"))
	got, _ = g.Get("a")
	require.Equal(t, StatusInProgress, got.Status)
}

func TestDeleteOnlyPermittedForTerminalStatuses(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.Create(newTask("a", PriorityHigh)))
	require.Error(t, g.Delete("a"), "cannot delete a pending task")

	require.NoError(t, g.Start("a"))
	require.NoError(t, g.Complete("a", ""))
	require.NoError(t, g.Delete("a"))
}

func TestGCBrokenRefactoringTasks(t *testing.T) {
	g := NewGraph()
	good := &RefactoringTask{
		Task:         Task{ID: "good", Title: "duplicate logic", Priority: PriorityMedium, Category: CategoryInvestigation},
		IssueType:    IssueDuplicate,
		FixApproach:  FixAutonomous,
		AnalysisData: map[string]string{"file": "a.go"},
	}
	require.NoError(t, g.CreateRefactoring(good))

	// A task that becomes broken after creation (e.g. analysis data
	// cleared by a later merge) should still be swept at GC time.
	broken := &RefactoringTask{
		Task:         Task{ID: "broken", Title: "fix it", Priority: PriorityMedium, Category: CategoryInvestigation},
		IssueType:    IssueNaming,
		FixApproach:  FixReviewReport,
		AnalysisData: map[string]string{"file": "b.go"},
	}
	require.NoError(t, g.CreateRefactoring(broken))
	broken.AnalysisData = nil

	removed := g.GCBrokenRefactoringTasks()
	require.Equal(t, []ID{"broken"}, removed)
	_, ok := g.GetRefactoring("broken")
	require.False(t, ok)
	_, ok = g.GetRefactoring("good")
	require.True(t, ok)
}

func TestCreateRefactoringRejectsBroken(t *testing.T) {
	g := NewGraph()
	r := &RefactoringTask{
		Task:        Task{ID: "r1", Title: "Unknown issue", Priority: PriorityMedium, Category: CategoryInvestigation},
		IssueType:   IssueComplexity,
		FixApproach: FixReviewReport,
	}
	require.Error(t, g.CreateRefactoring(r))
}
