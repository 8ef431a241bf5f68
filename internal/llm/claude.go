package llm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/daydemir/orchestrator/internal/tool"
)

// Claude implements Backend against the Claude Code CLI, invoked as a
// subprocess per chat call and parsed from its stream-json output.
type Claude struct {
	BinaryPath string
}

// NewClaude resolves the claude binary and returns a backend for it.
func NewClaude(binaryPath string) *Claude {
	if binaryPath == "" {
		binaryPath = "claude"
	}
	return &Claude{BinaryPath: resolveBinaryPath(binaryPath, "claude", ".claude")}
}

// resolveBinaryPath finds a CLI binary, checking common install
// locations before falling back to the bare name (which then fails
// with a helpful error at exec time).
func resolveBinaryPath(binaryPath, name, dotDir string) string {
	if filepath.IsAbs(binaryPath) {
		return binaryPath
	}
	if path, err := exec.LookPath(binaryPath); err == nil {
		return path
	}

	home, _ := os.UserHomeDir()
	commonPaths := []string{
		filepath.Join(home, dotDir, "local", name),
		filepath.Join("/usr/local/bin", name),
		filepath.Join("/opt/homebrew/bin", name),
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return binaryPath
}

func claudeNotFoundError() error {
	return fmt.Errorf(`claude not found in PATH

To fix, add to your ~/.zshrc or ~/.bashrc:
  export PATH="$HOME/.claude/local:$PATH"

Then restart your terminal, or run:
  source ~/.zshrc

Alternatively, set the binary path explicitly in config under
claude.binary.`)
}

func (c *Claude) Name() string {
	return "claude"
}

// Chat invokes the claude CLI non-interactively in stream-json mode
// and parses its output into a Response. host, when set, is passed
// through as ANTHROPIC_BASE_URL so the same binary can target a
// self-hosted proxy.
func (c *Claude) Chat(ctx context.Context, host, model string, messages []Message, tools []tool.Schema, opts Options) (Response, error) {
	args := buildClaudeArgs(model, messages, tools)

	cmd := exec.CommandContext(ctx, c.BinaryPath, args...)
	if host != "" {
		cmd.Env = append(os.Environ(), "ANTHROPIC_BASE_URL="+host)
	}
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Response{}, fmt.Errorf("%w: creating stdout pipe: %v", ErrTransport, err)
	}

	if err := cmd.Start(); err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return Response{}, fmt.Errorf("%w: %v", ErrTransport, claudeNotFoundError())
		}
		return Response{}, fmt.Errorf("%w: starting claude: %v", ErrTransport, err)
	}

	resp, parseErr := ParseStream(stdout, NewConsoleHandler())
	waitErr := cmd.Wait()

	if parseErr != nil {
		return resp, parseErr
	}
	if waitErr != nil {
		if ctx.Err() != nil {
			return resp, fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
		}
		return resp, fmt.Errorf("%w: claude exited: %v", ErrTransport, waitErr)
	}
	return resp, nil
}

func buildClaudeArgs(model string, messages []Message, tools []tool.Schema) []string {
	var args []string
	if model != "" {
		args = append(args, "--model", model)
	}
	if prompt := joinMessages(messages); prompt != "" {
		args = append(args, "-p", prompt)
	}
	if names := toolNames(tools); len(names) > 0 {
		args = append(args, "--allowedTools", strings.Join(names, ","))
	}
	args = append(args, "--output-format", "stream-json", "--verbose")
	return args
}

func joinMessages(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s", m.Role, m.Content)
	}
	return b.String()
}

func toolNames(tools []tool.Schema) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}
