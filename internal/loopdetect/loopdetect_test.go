package loopdetect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintStableUnderArgOrder(t *testing.T) {
	a := Fingerprint("coding", "edit_file", map[string]any{"path": "a.go", "line": 10})
	b := Fingerprint("coding", "edit_file", map[string]any{"line": 10, "path": "a.go"})
	require.Equal(t, a, b)
}

func TestFingerprintDiffersByPhaseOrTool(t *testing.T) {
	a := Fingerprint("coding", "edit_file", map[string]any{"path": "a.go"})
	b := Fingerprint("qa", "edit_file", map[string]any{"path": "a.go"})
	c := Fingerprint("coding", "run_tests", map[string]any{"path": "a.go"})
	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
}

func TestDetectActionLoop(t *testing.T) {
	w := NewWindow()
	fp := Fingerprint("debugging", "run_tests", nil)
	other := Fingerprint("debugging", "read_file", nil)

	var interventions []Intervention
	interventions = append(interventions, w.Observe(fp, nil)...)
	interventions = append(interventions, w.Observe(other, nil)...)
	interventions = append(interventions, w.Observe(fp, nil)...)
	interventions = append(interventions, w.Observe(fp, nil)...)

	found := false
	for _, iv := range interventions {
		if iv.Kind == ActionLoop {
			found = true
		}
	}
	require.True(t, found, "expected an ActionLoop intervention")
}

func TestActionLoopSuppressedWhenErrorSignatureChanges(t *testing.T) {
	w := NewWindow()
	fp := Fingerprint("debugging", "run_tests", nil)

	sig1 := NewErrorSignature("AssertionError", "expected 1, got 2", "a.go", 10)
	sig2 := NewErrorSignature("AssertionError", "expected 3, got 4", "a.go", 22)
	sig3 := NewErrorSignature("AssertionError", "expected 5, got 6", "a.go", 33)

	var interventions []Intervention
	interventions = append(interventions, w.Observe(fp, &sig1)...)
	interventions = append(interventions, w.Observe(fp, &sig2)...)
	interventions = append(interventions, w.Observe(fp, &sig3)...)

	for _, iv := range interventions {
		require.NotEqual(t, ActionLoop, iv.Kind, "repeated calls with changing error signatures should not trip ActionLoop")
	}
}

func TestDetectOscillatingLoop(t *testing.T) {
	w := NewWindow()
	a := Fingerprint("debugging", "edit_file", map[string]any{"path": "a.go"})
	b := Fingerprint("debugging", "edit_file", map[string]any{"path": "b.go"})

	sequence := []ActionFingerprint{a, b, a, b, a, b}
	var interventions []Intervention
	for _, fp := range sequence {
		interventions = append(interventions, w.Observe(fp, nil)...)
	}

	found := false
	for _, iv := range interventions {
		if iv.Kind == OscillatingLoop {
			found = true
		}
	}
	require.True(t, found, "expected an OscillatingLoop intervention")
}

func TestDetectSaturatedLoop(t *testing.T) {
	w := NewWindow()
	fp := Fingerprint("refactoring", "run_tests", nil)
	other := Fingerprint("refactoring", "read_file", nil)

	var interventions []Intervention
	for i := 0; i < 8; i++ {
		interventions = append(interventions, w.Observe(fp, nil)...)
		interventions = append(interventions, w.Observe(other, nil)...)
	}

	found := false
	for _, iv := range interventions {
		if iv.Kind == SaturatedLoop {
			found = true
		}
	}
	require.True(t, found, "expected a SaturatedLoop intervention")
}

func TestProgressTrackerClassifiesTransitions(t *testing.T) {
	tracker := NewProgressTracker()

	require.Equal(t, TransitionNone, tracker.Observe(nil))

	sig := NewErrorSignature("TypeError", "cannot read property x of undefined", "b.go", 5)
	require.Equal(t, TransitionNewBug, tracker.Observe(&sig))

	sigSame := NewErrorSignature("TypeError", "cannot read property x of undefined", "b.go", 5)
	require.Equal(t, TransitionNone, tracker.Observe(&sigSame))

	require.Equal(t, TransitionFixed, tracker.Observe(nil))

	sigOther := NewErrorSignature("KeyError", "missing key y", "c.go", 9)
	require.Equal(t, TransitionNewBug, tracker.Observe(&sigOther))
}

func TestErrorSignatureNormalizesDigits(t *testing.T) {
	a := NewErrorSignature("AssertionError", "expected 1, got 2 at offset 3001", "a.go", 10)
	b := NewErrorSignature("AssertionError", "expected 9, got 8 at offset 42", "a.go", 10)
	require.Equal(t, a.Message, b.Message)
}
