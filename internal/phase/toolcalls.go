package phase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/daydemir/orchestrator/internal/llm"
)

// jsonBlockPattern matches a fenced ```json ... ``` (or plain ```)
// block holding a {...} object, which a model might emit instead of a
// native tool_use block. A bare top-level object with no fence is
// handled separately by parseTextFallback.
var jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseToolCalls returns resp's native tool calls if present, otherwise
// falls back to scanning resp.Raw (or resp.Content when Raw is empty)
// for JSON-ish tool-call blocks of the shape {"tool": "name", "args": {...}}:
// native format and text-based extraction both producing
// the same toolCalls[] shape).
func parseToolCalls(resp llm.Response) []llm.ToolCall {
	if len(resp.ToolCalls) > 0 {
		return resp.ToolCalls
	}
	if resp.Raw != "" {
		return parseTextFallback(resp.Raw)
	}
	return parseTextFallback(resp.Content)
}

func parseTextFallback(raw string) []llm.ToolCall {
	var calls []llm.ToolCall

	candidates := jsonBlockPattern.FindAllStringSubmatch(raw, -1)
	for _, c := range candidates {
		if call, ok := decodeFallbackCall(c[1]); ok {
			calls = append(calls, call)
		}
	}
	if len(calls) > 0 {
		return calls
	}

	// No fenced block; try the whole text in case it's a bare JSON
	// object with nothing else around it.
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		if call, ok := decodeFallbackCall(trimmed); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func decodeFallbackCall(text string) (llm.ToolCall, bool) {
	if !gjson.Valid(text) {
		return llm.ToolCall{}, false
	}
	result := gjson.Parse(text)
	name := result.Get("tool").String()
	if name == "" {
		name = result.Get("name").String()
	}
	if name == "" {
		return llm.ToolCall{}, false
	}

	args := make(map[string]any)
	argsResult := result.Get("args")
	if !argsResult.Exists() {
		argsResult = result.Get("arguments")
	}
	if argsResult.Exists() && argsResult.IsObject() {
		argsResult.ForEach(func(key, value gjson.Result) bool {
			args[key.String()] = value.Value()
			return true
		})
	}

	id := result.Get("id").String()
	if id == "" {
		id = fmt.Sprintf("fallback-%s", name)
	}
	return llm.ToolCall{ID: id, Name: name, Args: args}, true
}
