package tool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/tidwall/sjson"
)

// BuildConfig names the project-specific shell commands run_build/run_tests
// invoke: each runs as "bash -c" plus the project's own configured
// command string rather than a fixed toolchain.
type BuildConfig struct {
	ProjectDir string
	BuildCmd   string
	TestCmd    string
	VerifyCmd  string
}

// mutationResult is the JSON envelope a file-mutating tool's Result.Output
// carries, read back by internal/phase.Runner.verifyMutation to run
// VerifyWrite against what's actually on disk.
type mutationResult struct {
	Path     string `json:"path"`
	Original string `json:"original"`
	New      string `json:"new"`
}

// marshalMutation builds the mutationResult JSON envelope with sjson;
// phase.Runner.verifyMutation decodes it with encoding/json.
func marshalMutation(m mutationResult) string {
	out, _ := sjson.Set("", "path", m.Path)
	out, _ = sjson.Set(out, "original", m.Original)
	out, _ = sjson.Set(out, "new", m.New)
	return out
}

// RegisterBuiltins registers every builtin tool a phase.Definition's
// AllowedTools can name. File-mutating tools
// read/write under cfg.ProjectDir; task-lifecycle tools
// (complete_task, fail_task, mark_*, create_task, ...) are pure
// acknowledgements here -- internal/phase.Runner.applyLifecycle is what
// actually mutates the task graph, reading the same call arguments the
// dispatcher validated, so the handler only needs to confirm the schema
// was satisfiable.
func RegisterBuiltins(r *Registry, cfg BuildConfig) {
	registerFileTools(r, cfg.ProjectDir)
	registerRunTools(r, cfg)
	registerLifecycleTools(r)
	registerRefactoringTools(r, cfg.ProjectDir)
}

func resolvePath(projectDir, rel string) (string, error) {
	full := filepath.Join(projectDir, rel)
	clean := filepath.Clean(full)
	base := filepath.Clean(projectDir)
	if clean != base && !isWithin(base, clean) {
		return "", fmt.Errorf("%w: path %q escapes project directory", ErrInvalidArgs, rel)
	}
	return clean, nil
}

func isWithin(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel != ".." && !bytes.HasPrefix([]byte(rel), []byte(".."+string(filepath.Separator)))
}

func registerFileTools(r *Registry, projectDir string) {
	r.Register(Schema{
		Name:        "read_file",
		Description: "Read a project file's contents.",
		Parameters:  map[string]Param{"path": {Type: "string", Required: true}},
	}, func(ctx context.Context, args map[string]any) (Result, error) {
		path, err := resolvePath(projectDir, args["path"].(string))
		if err != nil {
			return Result{}, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return Result{Output: err.Error(), IsError: true}, nil
		}
		return Result{Output: string(data)}, nil
	})

	r.Register(Schema{
		Name:        "list_files",
		Description: "List files under a project directory (non-recursive).",
		Parameters:  map[string]Param{"path": {Type: "string"}},
	}, func(ctx context.Context, args map[string]any) (Result, error) {
		rel, _ := args["path"].(string)
		path, err := resolvePath(projectDir, rel)
		if err != nil {
			return Result{}, err
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			return Result{Output: err.Error(), IsError: true}, nil
		}
		var buf bytes.Buffer
		for _, e := range entries {
			fmt.Fprintln(&buf, e.Name())
		}
		return Result{Output: buf.String()}, nil
	})

	r.Register(Schema{
		Name:        "create_file",
		Description: "Create a new project file with the given content.",
		Parameters: map[string]Param{
			"path":    {Type: "string", Required: true},
			"content": {Type: "string", Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (Result, error) {
		rel := args["path"].(string)
		content := args["content"].(string)
		path, err := resolvePath(projectDir, rel)
		if err != nil {
			return Result{}, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return Result{Output: err.Error(), IsError: true}, nil
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return Result{Output: err.Error(), IsError: true}, nil
		}
		return Result{Output: marshalMutation(mutationResult{Path: rel, Original: "", New: content})}, nil
	})

	modifyHandler := func(ctx context.Context, args map[string]any) (Result, error) {
		rel := args["path"].(string)
		content := args["content"].(string)
		path, err := resolvePath(projectDir, rel)
		if err != nil {
			return Result{}, err
		}
		original, _ := os.ReadFile(path)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return Result{Output: err.Error(), IsError: true}, nil
		}
		return Result{Output: marshalMutation(mutationResult{Path: rel, Original: string(original), New: content})}, nil
	}
	r.Register(Schema{
		Name:        "modify_file",
		Description: "Replace a project file's contents, recording the prior contents for verification.",
		Parameters: map[string]Param{
			"path":    {Type: "string", Required: true},
			"content": {Type: "string", Required: true},
		},
	}, modifyHandler)
	r.Register(Schema{
		Name:        "full_file_rewrite",
		Description: "Rewrite a project file from scratch, recording the prior contents for verification.",
		Parameters: map[string]Param{
			"path":    {Type: "string", Required: true},
			"content": {Type: "string", Required: true},
		},
	}, modifyHandler)

	r.Register(Schema{
		Name:        "move_file",
		Description: "Move or rename a project file.",
		Parameters: map[string]Param{
			"from": {Type: "string", Required: true},
			"to":   {Type: "string", Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (Result, error) {
		fromRel, toRel := args["from"].(string), args["to"].(string)
		from, err := resolvePath(projectDir, fromRel)
		if err != nil {
			return Result{}, err
		}
		to, err := resolvePath(projectDir, toRel)
		if err != nil {
			return Result{}, err
		}
		original, _ := os.ReadFile(from)
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return Result{Output: err.Error(), IsError: true}, nil
		}
		if err := os.Rename(from, to); err != nil {
			return Result{Output: err.Error(), IsError: true}, nil
		}
		return Result{Output: marshalMutation(mutationResult{Path: toRel, Original: string(original), New: string(original)})}, nil
	})
	r.Register(Schema{
		Name:        "rename_file",
		Description: "Alias for move_file, renaming within the same directory.",
		Parameters: map[string]Param{
			"from": {Type: "string", Required: true},
			"to":   {Type: "string", Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (Result, error) {
		h, _ := r.lookupForAlias("move_file")
		return h(ctx, args)
	})

	r.Register(Schema{
		Name:        "delete_file",
		Description: "Delete a project file.",
		Parameters:  map[string]Param{"path": {Type: "string", Required: true}},
	}, func(ctx context.Context, args map[string]any) (Result, error) {
		rel := args["path"].(string)
		path, err := resolvePath(projectDir, rel)
		if err != nil {
			return Result{}, err
		}
		original, _ := os.ReadFile(path)
		if err := os.Remove(path); err != nil {
			return Result{Output: err.Error(), IsError: true}, nil
		}
		return Result{Output: marshalMutation(mutationResult{Path: rel, Original: string(original), New: ""})}, nil
	})
}

// lookupForAlias lets one registered handler delegate to another already
// in the registry, used by rename_file to share move_file's logic without
// duplicating its body.
func (r *Registry) lookupForAlias(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	return rt.handler, ok
}

func registerRunTools(r *Registry, cfg BuildConfig) {
	run := func(shellCmd string) Handler {
		return func(ctx context.Context, args map[string]any) (Result, error) {
			if shellCmd == "" {
				return Result{Output: "no command configured"}, nil
			}
			cmd := exec.CommandContext(ctx, "bash", "-c", shellCmd)
			cmd.Dir = cfg.ProjectDir
			var out bytes.Buffer
			cmd.Stdout = &out
			cmd.Stderr = &out
			runErr := cmd.Run()
			result := Result{Output: out.String()}
			if runErr != nil {
				result.IsError = true
				if exitErr, ok := runErr.(*exec.ExitError); ok {
					result.ExitCode = exitErr.ExitCode()
				}
			}
			return result, nil
		}
	}
	r.Register(Schema{Name: "run_build", Description: "Run the project's configured build command."}, run(cfg.BuildCmd))
	r.Register(Schema{Name: "run_tests", Description: "Run the project's configured test command."}, run(cfg.TestCmd))
	r.Register(Schema{Name: "run_verification", Description: "Run the project's configured verification command."}, run(cfg.VerifyCmd))
}

// registerLifecycleTools registers the task-lifecycle tools whose actual
// effect on PipelineState.Tasks is applied by phase.Runner.applyLifecycle
// after a successful dispatch; handlers here only need to acknowledge.
func registerLifecycleTools(r *Registry) {
	ack := func(ctx context.Context, args map[string]any) (Result, error) {
		return Result{Output: "ok"}, nil
	}
	lifecycle := []Schema{
		{Name: "complete_task", Description: "Mark the current task COMPLETED.", Parameters: map[string]Param{
			"taskId": {Type: "string"}, "file": {Type: "string"},
		}},
		{Name: "fail_task", Description: "Record a failed attempt on the current task.", Parameters: map[string]Param{
			"taskId": {Type: "string"}, "reason": {Type: "string", Required: true},
		}},
		{Name: "mark_qa_failed", Description: "Reject a handed-off task back to debugging.", Parameters: map[string]Param{
			"taskId": {Type: "string"}, "issues": {Type: "string", Required: true},
		}},
		{Name: "mark_blocked", Description: "Mark the current task BLOCKED pending external input.", Parameters: map[string]Param{
			"taskId": {Type: "string"}, "reason": {Type: "string", Required: true},
		}},
		{Name: "mark_ready_for_review", Description: "Hand a task off to QA without completing it.", Parameters: map[string]Param{
			"taskId": {Type: "string"},
		}},
		{Name: "create_task", Description: "Create a new task.", Parameters: map[string]Param{
			"id": {Type: "string"}, "title": {Type: "string", Required: true},
			"description": {Type: "string"}, "priority": {Type: "string", Required: true},
			"category": {Type: "string", Required: true}, "targetFile": {Type: "string"},
		}},
		{Name: "create_refactoring_task", Description: "Create a new refactoring task.", Parameters: map[string]Param{
			"id": {Type: "string"}, "title": {Type: "string", Required: true},
			"description": {Type: "string"}, "priority": {Type: "string", Required: true},
			"targetFile": {Type: "string"}, "issueType": {Type: "string", Required: true},
			"fixApproach": {Type: "string", Required: true}, "analysisData": {Type: "object"},
		}},
		{Name: "report_issue", Description: "Record an issue out of scope for the current task.", Parameters: map[string]Param{
			"description": {Type: "string", Required: true}, "file": {Type: "string"}, "severity": {Type: "string"},
		}},
		{Name: "record_learned_pattern", Description: "Record a key/value learned pattern.", Parameters: map[string]Param{
			"key": {Type: "string", Required: true}, "value": {Type: "string", Required: true},
		}},
		{Name: "record_correlation", Description: "Record a correlation between two files or tasks.", Parameters: map[string]Param{
			"a": {Type: "string", Required: true}, "b": {Type: "string", Required: true},
		}},
	}
	for _, s := range lifecycle {
		r.Register(s, ack)
	}
}

// registerRefactoringTools registers the refactoring-phase-specific tools
// (the ResolvingTools set). merge_file_implementations writes a real
// file and emits a mutationResult envelope; cleanup_redundant_files
// deletes real files and reports only how many it removed; the rest
// are reporting tools and ack.
func registerRefactoringTools(r *Registry, projectDir string) {
	r.Register(Schema{
		Name:        "merge_file_implementations",
		Description: "Merge a duplicate implementation into its canonical file.",
		Parameters: map[string]Param{
			"canonicalPath": {Type: "string", Required: true},
			"content":       {Type: "string", Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (Result, error) {
		rel := args["canonicalPath"].(string)
		content := args["content"].(string)
		path, err := resolvePath(projectDir, rel)
		if err != nil {
			return Result{}, err
		}
		original, _ := os.ReadFile(path)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return Result{Output: err.Error(), IsError: true}, nil
		}
		return Result{Output: marshalMutation(mutationResult{Path: rel, Original: string(original), New: content})}, nil
	})

	r.Register(Schema{
		Name:        "cleanup_redundant_files",
		Description: "Delete files superseded by a merge.",
		Parameters:  map[string]Param{"paths": {Type: "array", Required: true}},
	}, func(ctx context.Context, args map[string]any) (Result, error) {
		raw, _ := args["paths"].([]any)
		var removed []string
		for _, item := range raw {
			rel, ok := item.(string)
			if !ok {
				continue
			}
			path, err := resolvePath(projectDir, rel)
			if err != nil {
				continue
			}
			if err := os.Remove(path); err == nil {
				removed = append(removed, rel)
			}
		}
		return Result{Output: fmt.Sprintf("removed %d files", len(removed))}, nil
	})

	ack := func(ctx context.Context, args map[string]any) (Result, error) {
		return Result{Output: "ok"}, nil
	}
	r.Register(Schema{
		Name:        "create_issue_report",
		Description: "Write up a refactoring finding for human review instead of applying it.",
		Parameters: map[string]Param{
			"title": {Type: "string", Required: true}, "body": {Type: "string", Required: true},
		},
	}, ack)
	r.Register(Schema{
		Name:        "request_developer_review",
		Description: "Flag a refactoring decision for developer sign-off.",
		Parameters:  map[string]Param{"reason": {Type: "string", Required: true}},
	}, ack)
	r.Register(Schema{
		Name:        "update_refactoring_task",
		Description: "Update a refactoring task's analysis data.",
		Parameters: map[string]Param{
			"taskId": {Type: "string", Required: true}, "analysisData": {Type: "object"},
		},
	}, ack)
}
