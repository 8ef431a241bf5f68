package llm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/daydemir/orchestrator/internal/tool"
)

// KiloCode implements Backend against the vibe CLI (Mistral), the
// teacher's second backend, invoked the same subprocess-and-parse way
// as Claude but with its own flag and env-var conventions.
type KiloCode struct {
	BinaryPath string
	APIKey     string
}

// NewKiloCode resolves the vibe binary and returns a backend for it.
func NewKiloCode(binaryPath, apiKey string) *KiloCode {
	if binaryPath == "" {
		binaryPath = "vibe"
	}
	return &KiloCode{
		BinaryPath: resolveBinaryPath(binaryPath, "vibe", ".vibe"),
		APIKey:     apiKey,
	}
}

func vibeNotFoundError() error {
	return fmt.Errorf(`vibe not found in PATH

To fix, add to your ~/.zshrc or ~/.bashrc:
  export PATH="$HOME/.vibe/local:$PATH"

Then restart your terminal, or run:
  source ~/.zshrc

Alternatively, set the binary path explicitly in config under
mistral.binary.`)
}

func (k *KiloCode) Name() string {
	return "kilocode"
}

// Chat invokes the vibe CLI non-interactively and parses its
// stream-json output into a Response. host, when set, overrides the
// Mistral API base URL for the call.
func (k *KiloCode) Chat(ctx context.Context, host, model string, messages []Message, tools []tool.Schema, opts Options) (Response, error) {
	args := buildKiloCodeArgs(model, messages, tools)

	cmd := exec.CommandContext(ctx, k.BinaryPath, args...)
	env := append(os.Environ(), "MISTRAL_API_KEY="+k.APIKey)
	if host != "" {
		env = append(env, "MISTRAL_BASE_URL="+host)
	}
	cmd.Env = env
	cmd.Stderr = os.Stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Response{}, fmt.Errorf("%w: creating stdout pipe: %v", ErrTransport, err)
	}

	if err := cmd.Start(); err != nil {
		if strings.Contains(err.Error(), "executable file not found") {
			return Response{}, fmt.Errorf("%w: %v", ErrTransport, vibeNotFoundError())
		}
		return Response{}, fmt.Errorf("%w: starting vibe: %v", ErrTransport, err)
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
		return resp, fmt.Errorf("%w: vibe exited: %v", ErrTransport, waitErr)
	}
	return resp, nil
}

func buildKiloCodeArgs(model string, messages []Message, tools []tool.Schema) []string {
	var args []string
	if model != "" {
		args = append(args, "--model", model)
	}
	if prompt := joinMessages(messages); prompt != "" {
		args = append(args, "--prompt", prompt)
	}
	if names := toolNames(tools); len(names) > 0 {
		args = append(args, "--tools", strings.Join(names, ","))
	}
	return args
}
