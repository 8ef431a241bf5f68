package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPBackendChatDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req httpChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt", req.Model)

		resp := httpChatResponse{
			Content:   "hello",
			ToolCalls: []ToolCall{{ID: "1", Name: "run_tests", Args: map[string]any{"path": "a.go"}}},
			Usage:     Usage{InputTokens: 3, OutputTokens: 4},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	backend := NewHTTPBackend(0)
	resp, err := backend.Chat(t.Context(), server.URL, "gpt", []Message{{Role: "user", Content: "hi"}}, nil, Options{})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Content)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, 3, resp.Usage.InputTokens)
}

func TestHTTPBackendChatRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	backend := NewHTTPBackend(0)
	_, err := backend.Chat(t.Context(), server.URL, "gpt", nil, nil, Options{})
	require.Error(t, err)
}
