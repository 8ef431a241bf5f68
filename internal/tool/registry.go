package tool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTimeout bounds a single tool invocation when the caller doesn't
// override it via WithTimeout.
const DefaultTimeout = 2 * time.Minute

type registeredTool struct {
	schema  Schema
	handler Handler
	timeout time.Duration
}

// Registry holds every tool a phase may call, builtin and custom.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]registeredTool
	logger  *log.Logger
}

// NewRegistry returns an empty Registry. logger must not be nil; pass
// log.New(io.Discard) in tests that don't care about tool tracing.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{tools: make(map[string]registeredTool), logger: logger}
}

// Register adds a tool. Registering the same name twice is a
// programming error and panics, so a registration mistake fails fast
// rather than silently overwriting the first tool.
func (r *Registry) Register(schema Schema, h Handler, opts ...Option) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[schema.Name]; exists {
		panic(fmt.Sprintf("tool: %q already registered", schema.Name))
	}
	rt := registeredTool{schema: schema, handler: h, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&rt)
	}
	r.tools[schema.Name] = rt
}

// Option configures a registered tool at Register time.
type Option func(*registeredTool)

// WithTimeout overrides DefaultTimeout for one tool.
func WithTimeout(d time.Duration) Option {
	return func(rt *registeredTool) { rt.timeout = d }
}

// Schemas returns every registered tool's schema, for presenting the
// available tool set to an LLM backend.
func (r *Registry) Schemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.tools))
	for _, rt := range r.tools {
		out = append(out, rt.schema)
	}
	return out
}

// Dispatch validates args against the named tool's schema and runs its
// handler under a deadline. Returns ErrUnknownTool, ErrInvalidArgs, or
// ErrToolTimeout wrapped with context, or the handler's own error/result.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) (Result, error) {
	r.mu.RLock()
	rt, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}

	if err := rt.schema.validate(args); err != nil {
		return Result{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, rt.timeout)
	defer cancel()

	type callOutcome struct {
		res Result
		err error
	}
	done := make(chan callOutcome, 1)
	go func() {
		res, err := rt.handler(callCtx, args)
		done <- callOutcome{res, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			r.logger.Error("tool call failed", "tool", name, "error", out.err)
		}
		return out.res, out.err
	case <-callCtx.Done():
		r.logger.Warn("tool call timed out", "tool", name, "timeout", rt.timeout)
		return Result{}, fmt.Errorf("%w: %q after %s", ErrToolTimeout, name, rt.timeout)
	}
}
