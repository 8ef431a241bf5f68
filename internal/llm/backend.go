// Package llm defines the chat abstraction PhaseRunner drives. The LLM
// transport itself is an external collaborator — this package only
// specifies the interface and a minimal
// concrete client sufficient to exercise it, wrapped for resilience
// against a flaky backend.
package llm

import (
	"context"
	"errors"

	"github.com/daydemir/orchestrator/internal/tool"
)

// Sentinel errors for the transport error taxonomy.
var (
	ErrTransport = errors.New("llm: transport error")
	ErrParse     = errors.New("llm: response parse error")
)

// Message is one chat turn sent to or received from a backend. It
// mirrors internal/conversation.Message's shape without importing that
// package, since conversation owns history and llm only owns transport.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCall is one tool invocation requested by the assistant.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Usage reports token accounting for one chat call.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Response is a backend's answer to one chat call.
type Response struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
	Usage     Usage      `json:"usage"`
	// Raw holds the response text for the text-based tool-call
	// extractor, which runs when ToolCalls comes back empty; when a
	// backend leaves Raw empty, the extractor scans Content instead.
	Raw string `json:"-"`
}

// Options configures one chat call.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Backend is the external LLM transport collaborator.
// Implementations own their own HTTP/subprocess details; PhaseRunner
// only ever sees this interface.
type Backend interface {
	// Name identifies the backend for logging and config selection
	// (e.g. "claude", "kilocode", "http").
	Name() string
	// Chat sends host/model-addressed messages with the given tool
	// schemas and returns the assistant's reply.
	Chat(ctx context.Context, host, model string, messages []Message, tools []tool.Schema, opts Options) (Response, error)
}
