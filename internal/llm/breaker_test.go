package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daydemir/orchestrator/internal/llm/mock"
)

func TestBreakerBackendPassesThroughSuccess(t *testing.T) {
	inner := mock.New("fake", Response{Content: "ok"})
	b := NewBreakerBackend(inner)

	resp, err := b.Chat(context.Background(), "", "", nil, nil, Options{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
	require.Equal(t, "fake", b.Name())
}

func TestBreakerBackendTripsAfterRepeatedFailures(t *testing.T) {
	inner := mock.New("fake").WithError(errors.New("boom"))
	inner.WithError(ErrTransport)
	b := NewBreakerBackend(inner)

	var lastErr error
	for i := 0; i < 10; i++ {
		_, lastErr = b.Chat(context.Background(), "", "", nil, nil, Options{})
	}
	require.Error(t, lastErr)
	require.ErrorContains(t, lastErr, "circuit open")
}
