// Package mock provides an in-memory llm.Backend for tests that drive
// PhaseRunner and the coordinator without shelling out to a real CLI.
package mock

import (
	"context"
	"sync"

	"github.com/daydemir/orchestrator/internal/llm"
	"github.com/daydemir/orchestrator/internal/tool"
)

// Backend replays a scripted sequence of responses, one per Chat call,
// and records every call it received for assertions.
type Backend struct {
	mu        sync.Mutex
	name      string
	responses []llm.Response
	err       error
	calls     []Call
	next      int
}

// Call captures the arguments of one Chat invocation.
type Call struct {
	Host     string
	Model    string
	Messages []llm.Message
	Tools    []tool.Schema
	Options  llm.Options
}

// New returns a mock backend named name that returns responses in
// order, repeating the last one once exhausted.
func New(name string, responses ...llm.Response) *Backend {
	return &Backend{name: name, responses: responses}
}

// WithError makes every subsequent Chat call return err instead of a
// scripted response.
func (b *Backend) WithError(err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
	return b
}

func (b *Backend) Name() string {
	return b.name
}

func (b *Backend) Chat(ctx context.Context, host, model string, messages []llm.Message, tools []tool.Schema, opts llm.Options) (llm.Response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, Call{Host: host, Model: model, Messages: messages, Tools: tools, Options: opts})

	if b.err != nil {
		return llm.Response{}, b.err
	}
	if len(b.responses) == 0 {
		return llm.Response{}, nil
	}
	idx := b.next
	if idx >= len(b.responses) {
		idx = len(b.responses) - 1
	} else {
		b.next++
	}
	return b.responses[idx], nil
}

// Calls returns every Chat call received so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}
