package phase

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/daydemir/orchestrator/internal/conversation"
	"github.com/daydemir/orchestrator/internal/ipc"
	"github.com/daydemir/orchestrator/internal/llm"
	"github.com/daydemir/orchestrator/internal/llm/mock"
	"github.com/daydemir/orchestrator/internal/polytope"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
	"github.com/daydemir/orchestrator/internal/tool"
)

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

func newMailboxes(t *testing.T) *ipc.Mailboxes {
	t.Helper()
	m, err := ipc.New(filepath.Join(t.TempDir(), "mailboxes"))
	require.NoError(t, err)
	return m
}

// stubPhase is a minimal Definition whose completion predicate checks
// the selected task's terminal status, mirroring how the coding phase
// is wired in internal/phases/coding.go.
type stubPhase struct {
	name  string
	tools []string
}

func (s stubPhase) Name() string { return s.name }
func (s stubPhase) SystemPrompt(state *statestore.PipelineState) string {
	return "you are a test phase"
}
func (s stubPhase) AllowedTools(state *statestore.PipelineState) []string { return s.tools }
func (s stubPhase) CompletionPredicate(rs RunState) bool {
	if rs.Refactoring != nil {
		return rs.Refactoring.Status == task.StatusCompleted || rs.Refactoring.Status == task.StatusFailed
	}
	if rs.Task == nil {
		return rs.Iteration > 1
	}
	return rs.Task.Status == task.StatusCompleted || rs.Task.Status == task.StatusFailed
}
func (s stubPhase) SelectOrCreateTask(state *statestore.PipelineState) (*task.Task, error) {
	return state.Tasks.SelectNext(nil), nil
}
func (s stubPhase) Dim7() polytope.Dim7 { return polytope.Dim7{} }

func newPendingTask(id task.ID) *task.Task {
	return &task.Task{
		ID:       id,
		Title:    "fix the thing",
		Priority: task.PriorityHigh,
		Category: task.CategoryInvestigation,
		Status:   task.StatusPending,
	}
}

func toolCallResponse(id, name string, args map[string]any) llm.Response {
	return llm.Response{
		Content:   "calling " + name,
		ToolCalls: []llm.ToolCall{{ID: id, Name: name, Args: args}},
	}
}

func TestRunCompletesTaskViaResolvingToolCall(t *testing.T) {
	registry := tool.NewRegistry(discardLogger())
	registry.Register(tool.Schema{Name: "complete_task"}, func(ctx context.Context, args map[string]any) (tool.Result, error) {
		return tool.Result{Output: "done"}, nil
	})

	backend := mock.New("mock", toolCallResponse("c1", "complete_task", map[string]any{}))

	runner := NewRunner(backend, registry, newMailboxes(t), discardLogger(), DefaultConfig(t.TempDir()))

	state := statestore.NewState()
	tk := newPendingTask("t1")
	require.NoError(t, state.Tasks.Create(tk))

	def := stubPhase{name: "coding", tools: []string{"complete_task"}}
	thread := conversation.NewThread(def.Name())

	result, err := runner.Run(context.Background(), def, state, thread)
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Equal(t, tk.ID, result.TaskID)

	got, ok := state.Tasks.Get(tk.ID)
	require.True(t, ok)
	require.Equal(t, task.StatusCompleted, got.Status)
}

func TestRunExhaustsBudgetAndFailsTask(t *testing.T) {
	registry := tool.NewRegistry(discardLogger())
	registry.Register(tool.Schema{Name: "noop"}, func(ctx context.Context, args map[string]any) (tool.Result, error) {
		return tool.Result{Output: "noop"}, nil
	})

	// Every turn returns the same non-resolving tool call, so the
	// completion predicate (task reaching a terminal status) never
	// fires and the run must exhaust its iteration budget.
	backend := mock.New("mock", toolCallResponse("c1", "noop", map[string]any{}))

	cfg := DefaultConfig(t.TempDir())
	cfg.IterationBudget = 3
	runner := NewRunner(backend, registry, newMailboxes(t), discardLogger(), cfg)

	state := statestore.NewState()
	tk := newPendingTask("t1")
	tk.Priority = task.PriorityLow // MaxAttempts(LOW) == 2, so Fail() on first exhaustion sends it to FAILED only after 2 Start() calls; exercised here via a single Run, one Start, one Fail.
	require.NoError(t, state.Tasks.Create(tk))

	def := stubPhase{name: "coding", tools: []string{"noop"}}
	thread := conversation.NewThread(def.Name())

	result, err := runner.Run(context.Background(), def, state, thread)
	require.ErrorIs(t, err, ErrBudgetExhausted)
	require.False(t, result.Completed)
	require.Equal(t, cfg.IterationBudget, result.Iterations)

	got, ok := state.Tasks.Get(tk.ID)
	require.True(t, ok)
	// One attempt consumed; MaxAttempts(LOW)=2 so the task reopens to
	// PENDING rather than failing outright after a single exhausted run.
	require.Equal(t, task.StatusPending, got.Status)
	require.Len(t, got.ErrorHistory, 1)
}

func TestRunInjectsGuidanceOnRepeatedIdenticalViolation(t *testing.T) {
	projectDir := t.TempDir()
	filePath := "foo.py"
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, filePath), []byte("unchanged on disk"), 0o644))

	registry := tool.NewRegistry(discardLogger())
	registry.Register(tool.Schema{Name: "modify_file"}, func(ctx context.Context, args map[string]any) (tool.Result, error) {
		payload, _ := json.Marshal(map[string]string{
			"path":     filePath,
			"original": "orig body",
			"new":      "brand new body that never lands on disk",
		})
		return tool.Result{Output: string(payload)}, nil
	})

	// Same call, same args, every turn: the on-disk content never
	// contains "new", so every dispatch reports an identical
	// NewCodeMissing violation and identical ActionFingerprint.
	args := map[string]any{"path": filePath}
	backend := mock.New("mock", toolCallResponse("c1", "modify_file", args))

	cfg := DefaultConfig(projectDir)
	cfg.IterationBudget = 6
	runner := NewRunner(backend, registry, newMailboxes(t), discardLogger(), cfg)

	state := statestore.NewState()
	tk := newPendingTask("t1")
	require.NoError(t, state.Tasks.Create(tk))

	def := stubPhase{name: "debugging", tools: []string{"modify_file"}}
	thread := conversation.NewThread(def.Name())

	result, _ := runner.Run(context.Background(), def, state, thread)
	require.NotEmpty(t, result.Interventions)

	foundGuidance := false
	for _, m := range thread.Messages() {
		if m.Role == conversation.RoleSystem && m.Content != "you are a test phase" {
			foundGuidance = true
		}
	}
	require.True(t, foundGuidance, "expected an injected guidance system message after a stuck loop")
}

func TestRunDoesNotCompleteRefactoringTaskOnAnalyticalToolAlone(t *testing.T) {
	registry := tool.NewRegistry(discardLogger())
	registry.Register(tool.Schema{Name: "analyze_duplicates"}, func(ctx context.Context, args map[string]any) (tool.Result, error) {
		return tool.Result{Output: "found 2 duplicates"}, nil
	})

	backend := mock.New("mock", toolCallResponse("c1", "analyze_duplicates", map[string]any{}))

	cfg := DefaultConfig(t.TempDir())
	cfg.IterationBudget = 2
	runner := NewRunner(backend, registry, newMailboxes(t), discardLogger(), cfg)

	state := statestore.NewState()
	refac := &task.RefactoringTask{
		Task: task.Task{
			ID:         "r1",
			Title:      "duplicate logic in handlers",
			Priority:   task.PriorityMedium,
			Category:   task.CategoryRefactor,
			TargetFile: "handlers.go",
			Status:     task.StatusPending,
		},
		IssueType:    task.IssueDuplicate,
		FixApproach:  task.FixAutonomous,
		AnalysisData: map[string]string{"files": "a.go,b.go"},
	}
	require.NoError(t, state.Tasks.CreateRefactoring(refac))

	def := stubPhase{name: "refactoring", tools: []string{"analyze_duplicates"}}
	thread := conversation.NewThread(def.Name())

	_, err := runner.Run(context.Background(), def, state, thread)
	require.ErrorIs(t, err, ErrBudgetExhausted)

	got, ok := state.Tasks.GetRefactoring(refac.ID)
	require.True(t, ok)
	require.NotEqual(t, task.StatusCompleted, got.Status, "a purely analytical tool succeeding must never resolve a refactoring task")
}
