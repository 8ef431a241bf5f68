package phase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/daydemir/orchestrator/internal/conversation"
	"github.com/daydemir/orchestrator/internal/ipc"
	"github.com/daydemir/orchestrator/internal/llm"
	"github.com/daydemir/orchestrator/internal/loopdetect"
	"github.com/daydemir/orchestrator/internal/statestore"
	"github.com/daydemir/orchestrator/internal/task"
	"github.com/daydemir/orchestrator/internal/tool"
	"github.com/daydemir/orchestrator/internal/verify"
)

// mutatingTools are the tool names the Verifier checks after a
// successful dispatch. Concrete handlers for these names are an
// external collaborator; the Runner only knows to verify their effect.
var mutatingTools = map[string]bool{
	"create_file":       true,
	"modify_file":       true,
	"full_file_rewrite": true,
	"move_file":         true,
	"rename_file":       true,
	"delete_file":       true,
}

// runtimeTestTools are tool names whose captured output is scanned for
// crash markers indicating a runtime crash.
var runtimeTestTools = map[string]bool{
	"run_tests":        true,
	"run_build":        true,
	"run_verification": true,
}

// mutationPayload is the JSON shape a file-mutating tool's Result.Output
// is expected to carry: the edit a tool claims it made, as an
// "orig, new, written" triple. written is never trusted from the tool
// itself -- the Verifier always re-reads Path from disk.
type mutationPayload struct {
	Path     string `json:"path"`
	Original string `json:"original"`
	New      string `json:"new"`
}

// Config bounds and addresses one Runner's LLM calls and file reads.
type Config struct {
	Host            string
	Model           string
	ProjectDir      string
	IterationBudget int
	TokenBudget     int
	WallClockBudget time.Duration
}

// DefaultConfig returns a generous set of per-phase iteration/token/
// wall-clock budgets.
func DefaultConfig(projectDir string) Config {
	return Config{
		IterationBudget: 20,
		TokenBudget:     8000,
		WallClockBudget: 15 * time.Minute,
		ProjectDir:      projectDir,
	}
}

// Runner drives one phase's conversational sub-loop: the generic
// prompt -> LLM -> parse -> dispatch -> verify -> update cycle
// shared by every concrete phase. One Runner instance is reused across
// phases; per-phase state lives in the Thread and RunState the caller
// passes in.
type Runner struct {
	Backend   llm.Backend
	Tools     *tool.Registry
	Mailboxes *ipc.Mailboxes
	Logger    *log.Logger
	Config    Config
}

// NewRunner wires a Runner's collaborators. logger must not be nil.
func NewRunner(backend llm.Backend, tools *tool.Registry, mailboxes *ipc.Mailboxes, logger *log.Logger, cfg Config) *Runner {
	return &Runner{Backend: backend, Tools: tools, Mailboxes: mailboxes, Logger: logger, Config: cfg}
}

// Run drives def's conversational loop against state until the
// completion predicate fires or the iteration/wall-clock budget is
// exhausted. thread is the phase's persisted conversation (loaded by
// the caller from internal/conversation's per-thread storage); Run
// appends to it in place.
func (r *Runner) Run(ctx context.Context, def Definition, state *statestore.PipelineState, thread *conversation.Thread) (Result, error) {
	deadline := time.Now().Add(r.Config.WallClockBudget)

	t, err := def.SelectOrCreateTask(state)
	if err != nil {
		return Result{}, fmt.Errorf("phase %s: selecting task: %w", def.Name(), err)
	}

	var refac *task.RefactoringTask
	if def.Name() == "refactoring" {
		for _, id := range state.Tasks.GCBrokenRefactoringTasks() {
			r.Logger.Info("gc'd broken refactoring task", "id", id)
		}
		refac = state.Tasks.SelectNextRefactoring()
	}

	if t != nil {
		switch t.Status {
		case task.StatusPending:
			if err := state.Tasks.Start(t.ID); err != nil {
				return Result{}, fmt.Errorf("phase %s: starting task %s: %w", def.Name(), t.ID, err)
			}
		case task.StatusQAFailed, task.StatusBlocked:
			// A phase (debugging) picking up a previously rejected task
			// must bring it back to IN_PROGRESS before it can be
			// completed/failed again (QA_FAILED/BLOCKED may re-enter
			// IN_PROGRESS).
			if err := state.Tasks.Resume(t.ID); err != nil {
				return Result{}, fmt.Errorf("phase %s: resuming task %s: %w", def.Name(), t.ID, err)
			}
		}
	}
	if refac != nil && refac.Status == task.StatusPending {
		refac.Status = task.StatusInProgress
		refac.Attempts++
		refac.UpdatedAt = time.Now()
	}

	if thread.Len() == 0 {
		thread.Append(conversation.Message{Role: conversation.RoleSystem, Content: def.SystemPrompt(state)})
	}

	readDoc, err := r.Mailboxes.ReadRead(def.Name())
	if err != nil {
		return Result{}, err
	}

	schemas := r.schemasFor(def.AllowedTools(state))
	window := loopdetect.NewWindow()
	tracker := loopdetect.NewSetTracker()

	rs := RunState{Task: t, Refactoring: refac}
	result := Result{PhaseName: def.Name()}
	if t != nil {
		result.TaskID = t.ID
	}

	for i := 1; i <= r.Config.IterationBudget; i++ {
		rs.Iteration = i

		if time.Now().After(deadline) {
			return r.exhaustBudget(state, t, refac, result, rs)
		}
		if def.CompletionPredicate(rs) {
			result.Completed = true
			result.Iterations = i - 1
			result.Interventions = rs.Interventions
			return result, nil
		}

		thread.Trim(r.Config.TokenBudget)
		thread.Append(conversation.Message{Role: conversation.RoleUser, Content: r.buildUserMessage(t, refac, readDoc, rs)})

		resp, err := r.Backend.Chat(ctx, r.Config.Host, r.Config.Model, toLLMMessages(thread.Messages()), schemas, llm.Options{})
		if err != nil {
			// A transport error is retried within the iteration budget
			// by simply continuing to the next turn.
			r.Logger.Warn("llm chat failed", "phase", def.Name(), "iteration", i, "error", err)
			thread.Append(conversation.Message{Role: conversation.RoleAssistant, Content: fmt.Sprintf("(transport error: %v)", err)})
			continue
		}
		thread.Append(conversation.Message{Role: conversation.RoleAssistant, Content: resp.Content})

		calls := parseToolCalls(resp)
		if len(calls) == 0 {
			rs.NoToolCallStreak++
			if rs.NoToolCallStreak >= 2 {
				// Corrective message for a parse failure: after two
				// consecutive turns with no tool call, the model is
				// told to reply with one rather than silently stalling.
				thread.Append(conversation.Message{
					Role:    conversation.RoleUser,
					Content: "your last two replies contained no tool call; reply with exactly one tool call this turn",
				})
			}
			continue
		}
		rs.NoToolCallStreak = 0

		dispatches := r.dispatchCalls(ctx, calls)

		var currentErrors []loopdetect.ErrorSignature
		var iterInterventions []loopdetect.Intervention
		for _, d := range dispatches {
			call, res, dispatchErr := d.call, d.res, d.err

			var errSig *loopdetect.ErrorSignature
			switch {
			case dispatchErr != nil:
				sig := loopdetect.NewErrorSignature("ToolError", dispatchErr.Error(), "", 0)
				errSig = &sig
				currentErrors = append(currentErrors, sig)
			case mutatingTools[call.Name]:
				if sig := r.verifyMutation(res); sig != nil {
					errSig = sig
					currentErrors = append(currentErrors, *sig)
				}
			case runtimeTestTools[call.Name]:
				if crashed, marker := verify.DetectRuntimeCrash(res.Output); crashed {
					sig := loopdetect.NewErrorSignature("RuntimeCrash", marker, "", 0)
					errSig = &sig
					currentErrors = append(currentErrors, sig)
				}
			}

			fp := loopdetect.Fingerprint(def.Name(), call.Name, call.Args)
			iterInterventions = append(iterInterventions, window.Observe(fp, errSig)...)

			r.applyLifecycle(state, t, refac, call, res, dispatchErr, &rs)

			thread.Append(toolResultMessage(call, res, dispatchErr))
		}
		rs.Interventions = append(rs.Interventions, iterInterventions...)

		transition := tracker.Observe(currentErrors)
		r.Logger.Debug("progress transition", "phase", def.Name(), "iteration", i, "transition", transition)

		if len(iterInterventions) > 0 && transition == loopdetect.TransitionNone {
			r.injectGuidance(thread, iterInterventions)
		}
	}

	return r.exhaustBudget(state, t, refac, result, rs)
}

// exhaustBudget applies the soft BudgetExhausted handling: the
// currently running task (or in-progress refactoring task) is failed /
// reopened and the run returns without completing.
func (r *Runner) exhaustBudget(state *statestore.PipelineState, t *task.Task, refac *task.RefactoringTask, result Result, rs RunState) (Result, error) {
	if t != nil && t.Status == task.StatusInProgress {
		if err := state.Tasks.Fail(t.ID, "budget exhausted"); err != nil {
			r.Logger.Warn("failing task on budget exhaustion", "id", t.ID, "error", err)
		}
	}
	if refac != nil && refac.Status == task.StatusInProgress {
		refac.Status = task.StatusPending
		refac.UpdatedAt = time.Now()
	}
	result.Iterations = rs.Iteration
	result.Completed = false
	result.Interventions = rs.Interventions
	return result, ErrBudgetExhausted
}

// applyLifecycle is where the Runner decides how to apply a
// successfully dispatched tool's data to the task graph: tools never
// mutate pipeline state directly -- they return data, and
// the PhaseRunner decides how to apply it").
func (r *Runner) applyLifecycle(state *statestore.PipelineState, t *task.Task, refac *task.RefactoringTask, call llm.ToolCall, res tool.Result, dispatchErr error, rs *RunState) {
	if dispatchErr != nil || res.IsError {
		return
	}

	targetID := func() task.ID {
		if id := stringArg(call.Args, "taskId"); id != "" {
			return task.ID(id)
		}
		if t != nil {
			return t.ID
		}
		return ""
	}

	switch call.Name {
	case "complete_task":
		if err := state.Tasks.Complete(targetID(), stringArg(call.Args, "file")); err != nil {
			r.Logger.Warn("complete_task failed", "error", err)
		}
	case "fail_task":
		if err := state.Tasks.Fail(targetID(), stringArg(call.Args, "reason")); err != nil {
			r.Logger.Warn("fail_task failed", "error", err)
		}
	case "mark_qa_failed":
		if err := state.Tasks.MarkQaFailed(targetID(), stringArg(call.Args, "issues")); err != nil {
			r.Logger.Warn("mark_qa_failed failed", "error", err)
		}
	case "mark_blocked":
		if err := state.Tasks.MarkBlocked(targetID(), stringArg(call.Args, "reason")); err != nil {
			r.Logger.Warn("mark_blocked failed", "error", err)
		}
	case "create_issue_report", "report_issue":
		state.Issues = append(state.Issues, statestore.Issue{
			ID:          fmt.Sprintf("issue-%d", len(state.Issues)+1),
			Description: stringArg(call.Args, "description"),
			File:        stringArg(call.Args, "file"),
			Severity:    stringArg(call.Args, "severity"),
			CreatedAt:   time.Now(),
		})
	case "create_task":
		newTask := &task.Task{
			ID:          task.ID(firstNonEmpty(stringArg(call.Args, "id"), uuid.NewString())),
			Title:       stringArg(call.Args, "title"),
			Description: stringArg(call.Args, "description"),
			Priority:    task.Priority(stringArg(call.Args, "priority")),
			Category:    task.Category(stringArg(call.Args, "category")),
			TargetFile:  stringArg(call.Args, "targetFile"),
		}
		if err := state.Tasks.Create(newTask); err != nil {
			r.Logger.Warn("create_task failed", "error", err)
		}
	case "create_refactoring_task":
		newRefac := &task.RefactoringTask{
			Task: task.Task{
				ID:          task.ID(firstNonEmpty(stringArg(call.Args, "id"), uuid.NewString())),
				Title:       stringArg(call.Args, "title"),
				Description: stringArg(call.Args, "description"),
				Priority:    task.Priority(stringArg(call.Args, "priority")),
				Category:    task.CategoryRefactor,
				TargetFile:  stringArg(call.Args, "targetFile"),
			},
			IssueType:    task.IssueType(stringArg(call.Args, "issueType")),
			FixApproach:  task.FixApproach(stringArg(call.Args, "fixApproach")),
			AnalysisData: stringMapArg(call.Args, "analysisData"),
		}
		if err := state.Tasks.CreateRefactoring(newRefac); err != nil {
			r.Logger.Warn("create_refactoring_task failed", "error", err)
		}
	case "record_learned_pattern":
		if state.LearnedPatterns == nil {
			state.LearnedPatterns = make(map[string][]statestore.Pattern)
		}
		key := stringArg(call.Args, "key")
		state.LearnedPatterns[key] = append(state.LearnedPatterns[key], statestore.Pattern{
			Value:      stringArg(call.Args, "value"),
			RecordedAt: time.Now(),
		})
	case "record_correlation":
		state.Correlations = append(state.Correlations, statestore.Correlation{
			A: stringArg(call.Args, "a"),
			B: stringArg(call.Args, "b"),
		})
	}

	if HandoffTools[call.Name] {
		rs.HandoffCalled = true
	}

	// Task resolution rule: a refactoring task may
	// only move to COMPLETED because a resolving tool succeeded in this
	// run, never because a purely analytical tool happened to succeed.
	// create_issue_report alone resolving a REVIEW_REPORT task is the
	// stricter of the two plausible readings here.
	if ResolvingTools[call.Name] {
		rs.ResolvingCalled = true
		if refac != nil && refac.Status == task.StatusInProgress {
			refac.Status = task.StatusCompleted
			refac.UpdatedAt = time.Now()
		}
	}
}

// verifyMutation decodes a mutating tool's declared edit, re-reads the
// file from disk, and classifies the result via verify.VerifyWrite.
// A tool whose output doesn't carry the expected payload
// shape simply isn't verified -- concrete tool implementations are out
// of scope, so the Runner tolerates handlers that don't participate.
func (r *Runner) verifyMutation(res tool.Result) *loopdetect.ErrorSignature {
	var payload mutationPayload
	if err := json.Unmarshal([]byte(res.Output), &payload); err != nil || payload.Path == "" {
		return nil
	}

	written, err := os.ReadFile(filepath.Join(r.Config.ProjectDir, payload.Path))
	if err != nil {
		sig := loopdetect.NewErrorSignature("IoError", err.Error(), payload.Path, 0)
		return &sig
	}

	report := verify.VerifyWrite(payload.Original, payload.New, string(written))
	if len(report.Violations) == 0 {
		return nil
	}
	sig := loopdetect.NewErrorSignature(string(report.Violations[0]), string(report.Violations[0]), payload.Path, 0)
	return &sig
}

func (r *Runner) injectGuidance(thread *conversation.Thread, interventions []loopdetect.Intervention) {
	last := interventions[len(interventions)-1]
	thread.Append(conversation.Message{
		Role: conversation.RoleSystem,
		Content: fmt.Sprintf(
			"Automated guidance: a %s was detected (same action seen %d times with no progress). "+
				"Switch strategy -- re-read the relevant file, or use a different tool -- before retrying.",
			last.Kind, last.Count,
		),
	})
}

func (r *Runner) buildUserMessage(t *task.Task, refac *task.RefactoringTask, doc ipc.Document, rs RunState) string {
	var b strings.Builder
	if t != nil {
		fmt.Fprintf(&b, "## Task %s: %s\npriority=%s status=%s attempts=%d/%d\n%s\n",
			t.ID, t.Title, t.Priority, t.Status, t.Attempts, t.MaxAttempts, t.Description)
	}
	if refac != nil {
		fmt.Fprintf(&b, "## Refactoring task %s: %s (%s, %s)\n", refac.ID, refac.Title, refac.IssueType, refac.FixApproach)
	}
	if doc.Body != "" {
		fmt.Fprintf(&b, "\n## Hints from other phases\n%s\n", doc.Body)
	}
	if len(rs.Interventions) > 0 {
		last := rs.Interventions[len(rs.Interventions)-1]
		fmt.Fprintf(&b, "\n## Loop detector\n%s observed (count=%d); try a different approach.\n", last.Kind, last.Count)
	}
	b.WriteString("\nRespond with exactly one tool call.")
	return b.String()
}

// maxConcurrentToolCalls bounds one iteration's tool dispatches: a turn
// naming several independent tool calls (e.g. run_build and run_tests)
// runs them concurrently rather than one at a time.
const maxConcurrentToolCalls = 3

type toolDispatch struct {
	call llm.ToolCall
	res  tool.Result
	err  error
}

// dispatchCalls runs calls concurrently, bounded by a semaphore, and
// returns their results in the original call order so the caller can
// apply lifecycle effects and append thread messages deterministically.
func (r *Runner) dispatchCalls(ctx context.Context, calls []llm.ToolCall) []toolDispatch {
	out := make([]toolDispatch, len(calls))
	sem := semaphore.NewWeighted(maxConcurrentToolCalls)
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				out[i] = toolDispatch{call: call, err: err}
				return nil
			}
			defer sem.Release(1)
			res, dispatchErr := r.Tools.Dispatch(gctx, call.Name, call.Args)
			out[i] = toolDispatch{call: call, res: res, err: dispatchErr}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Runner) schemasFor(allowed []string) []tool.Schema {
	all := r.Tools.Schemas()
	if len(allowed) == 0 {
		return all
	}
	want := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		want[name] = true
	}
	out := make([]tool.Schema, 0, len(allowed))
	for _, s := range all {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

func toLLMMessages(msgs []conversation.Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// toolResultMessage builds the {tool, success, data?, error?} envelope
// that must be recorded in the conversation within the same iteration
// as the call.
func toolResultMessage(call llm.ToolCall, res tool.Result, err error) conversation.Message {
	envelope := map[string]any{"tool": call.Name, "success": err == nil && !res.IsError}
	switch {
	case err != nil:
		envelope["error"] = err.Error()
	case res.IsError:
		envelope["error"] = res.Output
	default:
		envelope["data"] = res.Output
	}
	data, _ := json.Marshal(envelope)
	return conversation.Message{Role: conversation.RoleTool, Content: string(data), ToolCallID: call.ID}
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// stringMapArg decodes a JSON-object-shaped argument into map[string]string,
// tolerating non-string values by formatting them, since arguments arrive
// as map[string]any after JSON round-tripping through the tool dispatcher.
func stringMapArg(args map[string]any, key string) map[string]string {
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprintf("%v", v)
		}
	}
	return out
}
