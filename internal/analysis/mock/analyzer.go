// Package mock provides a scripted analysis.Analyzer test double, the
// same in-package mock pattern internal/llm/mock uses for its
// llm.Backend test double.
package mock

import (
	"context"

	"github.com/daydemir/orchestrator/internal/analysis"
)

// Analyzer returns a fixed Result (or error) regardless of path, and
// records every call it received for test assertions.
type Analyzer struct {
	NameValue string
	Result    analysis.Result
	Err       error
	Calls     []string
}

// New returns a mock Analyzer named name that always returns result.
func New(name string, result analysis.Result) *Analyzer {
	return &Analyzer{NameValue: name, Result: result}
}

// Name implements analysis.Analyzer.
func (a *Analyzer) Name() string { return a.NameValue }

// Analyze implements analysis.Analyzer, recording path and returning
// the scripted Result/Err.
func (a *Analyzer) Analyze(ctx context.Context, path string) (analysis.Result, error) {
	a.Calls = append(a.Calls, path)
	if a.Err != nil {
		return analysis.Result{}, a.Err
	}
	return a.Result, nil
}
