package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/daydemir/orchestrator/internal/tool"
)

// BreakerBackend wraps a Backend with a circuit breaker so repeated
// transport failures (a downed model server, a dead subprocess binary)
// trip open and fail fast instead of hammering the backend on every
// phase turn.
type BreakerBackend struct {
	backend Backend
	cb      *gobreaker.CircuitBreaker
}

// NewBreakerBackend wraps backend with a breaker that opens after 5
// consecutive failed calls (any error from backend) within a 2-minute
// window and probes again after a 30-second cooldown.
func NewBreakerBackend(backend Backend) *BreakerBackend {
	settings := gobreaker.Settings{
		Name:        "llm." + backend.Name(),
		MaxRequests: 1,
		Interval:    2 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerBackend{
		backend: backend,
		cb:      gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *BreakerBackend) Name() string {
	return b.backend.Name()
}

// Chat delegates to the wrapped backend through the breaker. Any
// error the backend returns counts against the breaker's trip
// threshold, since a subprocess backend that fails to parse is just
// as unusable as one that fails to start.
func (b *BreakerBackend) Chat(ctx context.Context, host, model string, messages []Message, tools []tool.Schema, opts Options) (Response, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.backend.Chat(ctx, host, model, messages, tools, opts)
	})

	resp, _ := result.(Response)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return resp, fmt.Errorf("%w: circuit open for backend %s: %v", ErrTransport, b.backend.Name(), err)
	}
	return resp, err
}
