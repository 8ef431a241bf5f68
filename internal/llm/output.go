package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/fatih/color"
)

// FailureSignal is a failure the assistant declared explicitly in its
// own output, distinct from a tool-reported error.
type FailureSignal struct {
	Type   string // "task_failed", "blocked", "bailout"
	Detail string
}

// TokenStats tracks token usage across a chat call.
type TokenStats struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// OutputHandler receives live events as a backend's stream is parsed,
// for human-facing console output during a phase run. ParseStream
// drives it as a side effect while also building the Response it
// returns, so callers that only want the final answer can ignore the
// handler entirely by passing NewConsoleHandler() and discarding it.
type OutputHandler interface {
	OnToolUse(name string)
	OnText(text string)
	OnDone(result string)
	OnFailure(signal FailureSignal)
	OnTokenUsage(usage TokenStats)
	HasFailed() bool
	GetFailure() *FailureSignal
	GetTokenStats() TokenStats
}

// ConsoleHandler implements OutputHandler for terminal output.
type ConsoleHandler struct {
	toolCount      int
	failure        *FailureSignal
	tokenStats     TokenStats
	tokenThreshold int
}

// NewConsoleHandler returns a handler with the default 120K token
// bailout threshold.
func NewConsoleHandler() *ConsoleHandler {
	return &ConsoleHandler{tokenThreshold: 120000}
}

// NewConsoleHandlerWithThreshold returns a handler with a custom
// bailout threshold.
func NewConsoleHandlerWithThreshold(threshold int) *ConsoleHandler {
	return &ConsoleHandler{tokenThreshold: threshold}
}

func (h *ConsoleHandler) OnToolUse(name string) {
	h.toolCount++
}

func (h *ConsoleHandler) OnText(text string) {
	timestamp := time.Now().Format("[15:04:05]")
	truncated := truncateText(text, 400)
	if h.toolCount > 0 {
		fmt.Printf("%s [Tools: %d] %s\n", timestamp, h.toolCount, truncated)
		h.toolCount = 0
	} else {
		fmt.Printf("%s %s\n", timestamp, truncated)
	}
}

func (h *ConsoleHandler) OnDone(result string) {
	timestamp := time.Now().Format("[15:04:05]")
	fmt.Printf("%s [Done] %s\n", timestamp, truncateText(result, 200))
}

func (h *ConsoleHandler) OnFailure(signal FailureSignal) {
	h.failure = &signal
}

func (h *ConsoleHandler) OnTokenUsage(usage TokenStats) {
	h.tokenStats.InputTokens += usage.InputTokens
	h.tokenStats.OutputTokens += usage.OutputTokens
	h.tokenStats.TotalTokens = h.tokenStats.InputTokens + h.tokenStats.OutputTokens
}

func (h *ConsoleHandler) HasFailed() bool {
	return h.failure != nil
}

func (h *ConsoleHandler) GetFailure() *FailureSignal {
	return h.failure
}

func (h *ConsoleHandler) GetTokenStats() TokenStats {
	return h.tokenStats
}

// ShouldBailOut reports whether token usage has crossed the handler's
// safety threshold.
func (h *ConsoleHandler) ShouldBailOut() bool {
	return h.tokenStats.TotalTokens >= h.tokenThreshold
}

// AnnounceTask marks the task a phase has selected to work on,
// for console visibility. It is separate from OutputHandler because
// not every Chat caller selects a task (e.g. a re-prompt mid-phase).
func AnnounceTask(id string) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf(">>> WORKING ON: %s <<<", id)))
}

// StreamEvent is one line of a backend's stream-json output.
type StreamEvent struct {
	Type    string          `json:"type"`
	Message *MessageContent `json:"message,omitempty"`
	Result  string          `json:"result,omitempty"`
}

// MessageContent is the message field of an "assistant" stream event.
type MessageContent struct {
	Content []ContentBlock `json:"content,omitempty"`
	Usage   *UsageBlock    `json:"usage,omitempty"`
}

// ContentBlock is a single text or tool_use content block. Input
// carries a tool_use block's raw JSON arguments.
type ContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"` // for tool_use
	Input json.RawMessage `json:"input,omitempty"`
}

// UsageBlock is the usage field of an "assistant" stream event.
type UsageBlock struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

var (
	taskFailedPattern = regexp.MustCompile(`###TASK_FAILED:([^#]+)###`)
	blockedPattern    = regexp.MustCompile(`###BLOCKED:([^#]+)###`)
	bailoutPattern    = regexp.MustCompile(`###BAILOUT:([^#]+)###`)
)

// ParseStream reads a backend's stream-json output, driving handler as
// a live side effect and accumulating the parsed content, tool calls,
// and usage into the Response it returns. Lines that are not valid JSON
// are skipped rather than aborting the whole parse; a tool_use block
// whose input is not a JSON object aborts it with ErrParse.
func ParseStream(reader io.Reader, handler OutputHandler) (Response, error) {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var resp Response
	var text strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue
		}

		switch event.Type {
		case "assistant":
			if event.Message == nil {
				continue
			}
			if event.Message.Usage != nil {
				stats := TokenStats{
					InputTokens:  event.Message.Usage.InputTokens,
					OutputTokens: event.Message.Usage.OutputTokens,
				}
				handler.OnTokenUsage(stats)
				resp.Usage.InputTokens += stats.InputTokens
				resp.Usage.OutputTokens += stats.OutputTokens
			}
			for _, content := range event.Message.Content {
				switch content.Type {
				case "tool_use":
					handler.OnToolUse(content.Name)
					args, err := decodeToolInput(content.Input)
					if err != nil {
						return resp, fmt.Errorf("%w: decoding args for tool %q: %v", ErrParse, content.Name, err)
					}
					resp.ToolCalls = append(resp.ToolCalls, ToolCall{ID: content.ID, Name: content.Name, Args: args})
				case "text":
					if match := taskFailedPattern.FindStringSubmatch(content.Text); len(match) > 1 {
						handler.OnFailure(FailureSignal{Type: "task_failed", Detail: strings.TrimSpace(match[1])})
					}
					if match := blockedPattern.FindStringSubmatch(content.Text); len(match) > 1 {
						handler.OnFailure(FailureSignal{Type: "blocked", Detail: strings.TrimSpace(match[1])})
					}
					if match := bailoutPattern.FindStringSubmatch(content.Text); len(match) > 1 {
						handler.OnFailure(FailureSignal{Type: "bailout", Detail: strings.TrimSpace(match[1])})
					}
					handler.OnText(cleanText(content.Text))
					text.WriteString(content.Text)
				}
			}
		case "result":
			if match := taskFailedPattern.FindStringSubmatch(event.Result); len(match) > 1 {
				handler.OnFailure(FailureSignal{Type: "task_failed", Detail: strings.TrimSpace(match[1])})
			}
			if match := blockedPattern.FindStringSubmatch(event.Result); len(match) > 1 {
				handler.OnFailure(FailureSignal{Type: "blocked", Detail: strings.TrimSpace(match[1])})
			}
			if match := bailoutPattern.FindStringSubmatch(event.Result); len(match) > 1 {
				handler.OnFailure(FailureSignal{Type: "bailout", Detail: strings.TrimSpace(match[1])})
			}
			handler.OnDone(cleanText(event.Result))
			text.WriteString(event.Result)
		}
	}

	resp.Content = text.String()
	resp.Raw = resp.Content

	if err := scanner.Err(); err != nil {
		return resp, fmt.Errorf("%w: reading stream: %v", ErrTransport, err)
	}
	return resp, nil
}

func decodeToolInput(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
	return args, nil
}

func truncateText(s string, max int) string {
	s = cleanText(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}
