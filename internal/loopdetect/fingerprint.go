// Package loopdetect watches the sequence of actions a phase takes and
// flags stuck/oscillating/saturated patterns before the LLM burns
// through its iteration budget repeating itself.
package loopdetect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ActionFingerprint identifies one (phase, tool, normalised-args) tuple.
// Two calls that differ only in map key order hash identically; argument
// values are rendered as-is, so any difference in a value (including
// whitespace) yields a distinct fingerprint.
type ActionFingerprint uint64

// Fingerprint computes an ActionFingerprint for one tool invocation.
func Fingerprint(phase, toolName string, args map[string]any) ActionFingerprint {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", phase, toolName, normalizeArgs(args))
	return ActionFingerprint(h.Sum64())
}

// normalizeArgs renders args deterministically regardless of map
// iteration order, so semantically identical calls fingerprint the same.
func normalizeArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v;", k, args[k])
	}
	return b.String()
}
