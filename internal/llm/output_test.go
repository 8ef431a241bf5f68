package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func assistantTextLine(text string) string {
	return `{"type":"assistant","message":{"content":[{"type":"text","text":"` + text + `"}]}}`
}

func TestParseStreamDetectsTaskFailed(t *testing.T) {
	reader := strings.NewReader(assistantTextLine("###TASK_FAILED:build_ios###") + "\n")
	handler := NewConsoleHandler()

	_, err := ParseStream(reader, handler)
	require.NoError(t, err)
	require.True(t, handler.HasFailed())
	require.Equal(t, "task_failed", handler.GetFailure().Type)
	require.Equal(t, "build_ios", handler.GetFailure().Detail)
}

func TestParseStreamDetectsBlockedInResultEvent(t *testing.T) {
	reader := strings.NewReader(`{"type":"result","result":"###BLOCKED:missing_credentials###"}` + "\n")
	handler := NewConsoleHandler()

	_, err := ParseStream(reader, handler)
	require.NoError(t, err)
	require.True(t, handler.HasFailed())
	require.Equal(t, "blocked", handler.GetFailure().Type)
	require.Equal(t, "missing_credentials", handler.GetFailure().Detail)
}

func TestParseStreamNoSignalOnPlainText(t *testing.T) {
	reader := strings.NewReader(assistantTextLine("Just some normal output without any signals") + "\n")
	handler := NewConsoleHandler()

	_, err := ParseStream(reader, handler)
	require.NoError(t, err)
	require.False(t, handler.HasFailed())
}

func TestParseStreamCollectsToolCallsAndUsage(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"t1","name":"run_tests","input":{"path":"a.go"}}],"usage":{"input_tokens":10,"output_tokens":5}}}`
	reader := strings.NewReader(line + "\n")
	handler := NewConsoleHandler()

	resp, err := ParseStream(reader, handler)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "run_tests", resp.ToolCalls[0].Name)
	require.Equal(t, "a.go", resp.ToolCalls[0].Args["path"])
	require.Equal(t, 10, resp.Usage.InputTokens)
	require.Equal(t, 5, resp.Usage.OutputTokens)
}

func TestParseStreamSkipsMalformedLines(t *testing.T) {
	reader := strings.NewReader("not json\n" + assistantTextLine("hello") + "\n")
	handler := NewConsoleHandler()

	resp, err := ParseStream(reader, handler)
	require.NoError(t, err)
	require.Contains(t, resp.Content, "hello")
}
