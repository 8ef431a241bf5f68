package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// customDefinition is the on-disk shape of a *.tool.yaml file: a schema
// plus the command line used to invoke it. Arguments are passed to the
// subprocess as JSON on stdin; its combined stdout/stderr becomes the
// tool Result's Output.
type customDefinition struct {
	Schema  Schema   `yaml:",inline"`
	Command []string `yaml:"command"`
	Timeout string   `yaml:"timeout,omitempty"`
}

// DiscoverCustom globs dir for "*.tool.yaml" files (recursively, via
// doublestar's "**" support) and registers each as a subprocess-backed
// tool. Malformed definitions are skipped with a logged warning rather
// than aborting discovery for the whole directory.
func (r *Registry) DiscoverCustom(dir string) error {
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*.tool.yaml")
	if err != nil {
		return fmt.Errorf("tool: globbing %s for custom tools: %w", dir, err)
	}
	for _, rel := range matches {
		path := filepath.Join(dir, rel)
		def, err := loadCustomDefinition(path)
		if err != nil {
			r.logger.Warn("skipping malformed custom tool definition", "path", path, "error", err)
			continue
		}
		timeout := DefaultTimeout
		if def.Timeout != "" {
			if d, err := time.ParseDuration(def.Timeout); err == nil {
				timeout = d
			} else {
				r.logger.Warn("ignoring invalid timeout in custom tool definition", "path", path, "timeout", def.Timeout)
			}
		}
		r.Register(def.Schema, subprocessHandler(def.Command), WithTimeout(timeout))
	}
	return nil
}

func loadCustomDefinition(path string) (customDefinition, error) {
	var def customDefinition
	data, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return def, fmt.Errorf("parsing %s: %w", path, err)
	}
	if def.Schema.Name == "" {
		return def, fmt.Errorf("%s: missing tool name", path)
	}
	if len(def.Command) == 0 {
		return def, fmt.Errorf("%s: missing command", path)
	}
	return def, nil
}

// subprocessHandler runs command with ctx's deadline, feeding JSON-
// encoded args on stdin and capturing combined stdout/stderr as the
// tool's output. Each call gets its own process, killed outright if
// the context is cancelled.
func subprocessHandler(command []string) Handler {
	return func(ctx context.Context, args map[string]any) (Result, error) {
		argsJSON, err := marshalArgs(args)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
		}

		cmd := exec.CommandContext(ctx, command[0], command[1:]...)
		cmd.Stdin = strings.NewReader(argsJSON)

		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		runErr := cmd.Run()
		result := Result{Output: out.String()}
		if runErr != nil {
			result.IsError = true
			if exitErr, ok := runErr.(*exec.ExitError); ok {
				result.ExitCode = exitErr.ExitCode()
				return result, nil
			}
			if ctx.Err() != nil {
				return result, fmt.Errorf("%w: %v", ErrToolTimeout, runErr)
			}
			return result, fmt.Errorf("tool: running %v: %w", command, runErr)
		}
		return result, nil
	}
}

func marshalArgs(args map[string]any) (string, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
