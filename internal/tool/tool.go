// Package tool defines the registry and dispatcher phases use to invoke
// named tools, plus discovery of custom tool definitions on disk.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors for the dispatch error taxonomy.
var (
	ErrUnknownTool = errors.New("tool: unknown tool")
	ErrInvalidArgs = errors.New("tool: invalid arguments")
	ErrToolTimeout = errors.New("tool: timed out")
)

// Schema describes one tool's invocation contract. Deliberately minimal:
// full JSON Schema validation is out of scope, but required fields and
// coarse types are enforced before a handler ever runs.
type Schema struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]Param `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Param describes one named argument a tool accepts.
type Param struct {
	Type     string `json:"type" yaml:"type"` // "string", "number", "boolean", "array", "object"
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Result is what a tool invocation returns to the phase loop.
type Result struct {
	Output   string `json:"output"`
	IsError  bool   `json:"isError,omitempty"`
	ExitCode int    `json:"exitCode,omitempty"`
}

// Handler executes a tool's logic given validated JSON-object arguments.
type Handler func(ctx context.Context, args map[string]any) (Result, error)

// validate checks args against the schema's required/typed parameters,
// returning an ErrInvalidArgs explanation naming the first offending field.
func (s Schema) validate(args map[string]any) error {
	for name, p := range s.Parameters {
		v, present := args[name]
		if !present {
			if p.Required {
				return fmt.Errorf("%w: %s: missing required field %q", ErrInvalidArgs, s.Name, name)
			}
			continue
		}
		if !typeMatches(p.Type, v) {
			return fmt.Errorf("%w: %s: field %q expected type %s, got %T", ErrInvalidArgs, s.Name, name, p.Type, v)
		}
	}
	return nil
}

func typeMatches(want string, v any) bool {
	switch want {
	case "", "any":
		return true
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		_, ok := v.(float64)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}

// DecodeArgs is a convenience for handlers that want a typed struct
// instead of a raw map, round-tripping through JSON with strict decoding.
func DecodeArgs[T any](args map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(args)
	if err != nil {
		return out, fmt.Errorf("%w: re-marshalling args: %v", ErrInvalidArgs, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return out, nil
}
