package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
)

// CommandResult is the outcome of one verification command.
type CommandResult struct {
	Command  string
	ExitCode int
	Output   string
	Duration time.Duration
	Passed   bool
	TimedOut bool
	Crashed  bool
	CrashLine string
}

// Runner executes a project's configured build/test commands and
// reports pass/fail plus runtime-crash detection per command.
type Runner struct {
	workDir string
	timeout time.Duration
	logger  *log.Logger
}

// NewRunner returns a Runner. A zero timeout disables per-command
// deadlines.
func NewRunner(workDir string, timeout time.Duration, logger *log.Logger) *Runner {
	return &Runner{workDir: workDir, timeout: timeout, logger: logger}
}

// Run executes commands in order in the configured working directory,
// stopping at the first failure. It returns the results gathered so far
// alongside a non-nil error only for infrastructure failures (the
// parent context cancelling); command failures are represented in the
// CommandResult slice, never as a returned error.
func (r *Runner) Run(ctx context.Context, commands []string) ([]CommandResult, error) {
	var results []CommandResult
	for _, cmd := range commands {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("verify: %w", err)
		}
		res, err := r.runOne(ctx, cmd)
		if err != nil {
			return results, fmt.Errorf("verify: running %q: %w", cmd, err)
		}
		results = append(results, res)
		if !res.Passed {
			break
		}
	}
	return results, nil
}

func (r *Runner) runOne(ctx context.Context, command string) (CommandResult, error) {
	start := time.Now()
	if r.logger != nil {
		r.logger.Info("verify: running command", "command", command)
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(execCtx, "cmd", "/c", command)
	} else {
		cmd = exec.CommandContext(execCtx, "sh", "-c", command)
	}
	if r.workDir != "" {
		cmd.Dir = r.workDir
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	duration := time.Since(start)

	result := CommandResult{Command: command, Output: out.String(), Duration: duration}

	if runErr != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			result.TimedOut = true
			result.ExitCode = -1
		} else if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return result, fmt.Errorf("starting command: %w", runErr)
		}
	}

	result.Passed = runErr == nil
	result.Crashed, result.CrashLine = DetectRuntimeCrash(result.Output)
	if result.Crashed {
		result.Passed = false
	}

	if r.logger != nil {
		if result.Passed {
			r.logger.Info("verify: command passed", "command", command, "duration", duration)
		} else {
			r.logger.Warn("verify: command failed", "command", command, "exitCode", result.ExitCode, "crashed", result.Crashed)
		}
	}

	return result, nil
}
