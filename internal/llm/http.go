package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/daydemir/orchestrator/internal/tool"
)

// HTTPBackend is the minimal concrete Backend for a generic
// chat-completions-shaped endpoint: POST host with {model, messages,
// tools, options}, expect back {content, toolCalls, usage}. The real
// LLM transport is an external collaborator contract: only the
// chat(host, model, messages, tools, options) -> {...} function
// shape), so this exists only to give the Backend interface one
// exercisable stdlib-only implementation alongside the CLI-subprocess
// backends.
type HTTPBackend struct {
	client *http.Client
}

// NewHTTPBackend returns an HTTPBackend with the given call timeout.
func NewHTTPBackend(timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{client: &http.Client{Timeout: timeout}}
}

func (b *HTTPBackend) Name() string {
	return "http"
}

type httpChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Tools    []tool.Schema `json:"tools,omitempty"`
	Options  Options       `json:"options"`
}

type httpChatResponse struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"toolCalls"`
	Usage     Usage      `json:"usage"`
}

// Chat POSTs the chat request to host and decodes the JSON response.
func (b *HTTPBackend) Chat(ctx context.Context, host, model string, messages []Message, tools []tool.Schema, opts Options) (Response, error) {
	body, err := json.Marshal(httpChatRequest{Model: model, Messages: messages, Tools: tools, Options: opts})
	if err != nil {
		return Response{}, fmt.Errorf("%w: encoding request: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("%w: backend returned status %d", ErrTransport, resp.StatusCode)
	}

	var decoded httpChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Response{}, fmt.Errorf("%w: decoding response: %v", ErrParse, err)
	}

	return Response{
		Content:   decoded.Content,
		ToolCalls: decoded.ToolCalls,
		Usage:     decoded.Usage,
	}, nil
}
