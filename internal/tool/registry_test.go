package tool

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestDispatchUnknownTool(t *testing.T) {
	r := NewRegistry(testLogger())
	_, err := r.Dispatch(context.Background(), "nope", nil)
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestDispatchValidatesRequiredArgs(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(Schema{
		Name:       "write_file",
		Parameters: map[string]Param{"path": {Type: "string", Required: true}},
	}, func(ctx context.Context, args map[string]any) (Result, error) {
		return Result{Output: "ok"}, nil
	})

	_, err := r.Dispatch(context.Background(), "write_file", map[string]any{})
	require.ErrorIs(t, err, ErrInvalidArgs)

	res, err := r.Dispatch(context.Background(), "write_file", map[string]any{"path": "a.go"})
	require.NoError(t, err)
	require.Equal(t, "ok", res.Output)
}

func TestDispatchRejectsWrongArgType(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(Schema{
		Name:       "retry",
		Parameters: map[string]Param{"count": {Type: "number", Required: true}},
	}, func(ctx context.Context, args map[string]any) (Result, error) {
		return Result{}, nil
	})

	_, err := r.Dispatch(context.Background(), "retry", map[string]any{"count": "three"})
	require.ErrorIs(t, err, ErrInvalidArgs)
}

func TestDispatchTimesOut(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(Schema{Name: "slow"}, func(ctx context.Context, args map[string]any) (Result, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return Result{Output: "too slow"}, nil
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}, WithTimeout(10*time.Millisecond))

	_, err := r.Dispatch(context.Background(), "slow", nil)
	require.ErrorIs(t, err, ErrToolTimeout)
}

func TestRegisterPanicsOnDuplicateName(t *testing.T) {
	r := NewRegistry(testLogger())
	r.Register(Schema{Name: "dup"}, func(ctx context.Context, args map[string]any) (Result, error) {
		return Result{}, nil
	})
	require.Panics(t, func() {
		r.Register(Schema{Name: "dup"}, func(ctx context.Context, args map[string]any) (Result, error) {
			return Result{}, nil
		})
	})
}

func TestDecodeArgsRoundTrips(t *testing.T) {
	type writeArgs struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	out, err := DecodeArgs[writeArgs](map[string]any{"path": "a.go", "content": "package a"})
	require.NoError(t, err)
	require.Equal(t, "a.go", out.Path)
}
