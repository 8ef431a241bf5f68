// Package verify classifies a code edit as a genuine replacement or a
// "wrap" that leaves the original implementation reachable, and scans
// command output for runtime crash markers.
package verify

import (
	"regexp"
	"strings"
)

// wrapLengthRatio is the minimum ratio of new-to-original (whitespace
// normalised) length that, combined with the original text being a
// substring of the new text, marks an edit as wrapping rather than
// replacing.
const wrapLengthRatio = 1.3

// Classification is the verdict on one before/after code pair.
type Classification string

const (
	ClassificationReplacement Classification = "replacement"
	ClassificationWrap        Classification = "wrap"
)

// Violation names a specific way an edit failed verification.
type Violation string

const (
	// ViolationWrappedCodeMissing: classified as a wrap, but the
	// normalised original text is no longer a substring of the new text.
	ViolationWrappedCodeMissing Violation = "WRAPPED_CODE_MISSING"
	// ViolationNewCodeMissing: the new text is empty or unchanged from
	// the original (no new logic was actually added).
	ViolationNewCodeMissing Violation = "NEW_CODE_MISSING"
	// ViolationOriginalStillPresent: classified as a replacement, but
	// the original implementation is still reachable verbatim.
	ViolationOriginalStillPresent Violation = "ORIGINAL_STILL_PRESENT"
	// ViolationRuntimeCrash: a verification command produced crash
	// markers in its captured output.
	ViolationRuntimeCrash Violation = "RUNTIME_CRASH"
)

// EditReport is the result of classifying one edit.
type EditReport struct {
	Classification Classification
	Violations     []Violation
}

// ClassifyEdit compares the original and new contents of an edited
// region and determines whether the new code merely wraps the original
// (e.g. a try/catch added around unchanged logic, orig ⊆ new with new
// more than wrapLengthRatio longer) or genuinely replaces it.
func ClassifyEdit(original, updated string) Classification {
	normOrig := normalizeWhitespace(original)
	normNew := normalizeWhitespace(updated)

	if normOrig == "" {
		return ClassificationReplacement
	}

	contains := strings.Contains(normNew, normOrig)
	if contains && float64(len(normNew)) > wrapLengthRatio*float64(len(normOrig)) {
		return ClassificationWrap
	}
	return ClassificationReplacement
}

// VerifyEdit checks that an edit actually delivers what a task declared
// it would (expected), returning every violation found. A task that
// says "wrap this in error handling" but produces a structural
// replacement has silently dropped the original behaviour
// (WrappedCodeMissing); one that says "replace this function" but
// leaves the old body reachable hasn't actually replaced anything
// (OriginalStillPresent). Both directions also check that something
// genuinely changed at all (NewCodeMissing).
func VerifyEdit(original, updated string, expected Classification) EditReport {
	actual := ClassifyEdit(original, updated)
	report := EditReport{Classification: actual}

	normOrig := normalizeWhitespace(original)
	normNew := normalizeWhitespace(updated)

	if normNew == "" || (normOrig != "" && normNew == normOrig) {
		report.Violations = append(report.Violations, ViolationNewCodeMissing)
	}

	switch expected {
	case ClassificationWrap:
		if actual != ClassificationWrap {
			report.Violations = append(report.Violations, ViolationWrappedCodeMissing)
		}
	case ClassificationReplacement:
		if actual == ClassificationWrap {
			report.Violations = append(report.Violations, ViolationOriginalStillPresent)
		}
	}
	return report
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// VerifyWrite implements the literal three-string rule: orig is
// the file's content before the edit, intended is the new content the
// tool call declared it was writing, and written is what the Verifier
// actually reads back from disk afterwards. Wrapping and replacement
// are classified from orig/intended exactly as ClassifyEdit does, but
// the substring checks that follow are against written, not intended,
// since the whole point of re-reading the file is to catch a tool that
// claimed one thing and the disk shows another.
func VerifyWrite(orig, intended, written string) EditReport {
	classification := ClassifyEdit(orig, intended)
	report := EditReport{Classification: classification}

	normOrig := normalizeWhitespace(orig)
	normIntended := normalizeWhitespace(intended)
	normWritten := normalizeWhitespace(written)

	switch classification {
	case ClassificationWrap:
		if !strings.Contains(normWritten, normIntended) {
			report.Violations = append(report.Violations, ViolationWrappedCodeMissing)
		}
	case ClassificationReplacement:
		if !strings.Contains(normWritten, normIntended) {
			report.Violations = append(report.Violations, ViolationNewCodeMissing)
		} else if normOrig != "" && !strings.Contains(normIntended, normOrig) && strings.Contains(normWritten, normOrig) {
			report.Violations = append(report.Violations, ViolationOriginalStillPresent)
		}
	}
	return report
}

// maxCrashScanLines bounds how far back into command output the crash
// scanner looks: only a trailing window is inspected rather than the
// entire (possibly huge) log.
const maxCrashScanLines = 50

var crashMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^Traceback \(most recent call last\):`),
	regexp.MustCompile(`(?m)^panic: `),
	regexp.MustCompile(`(?m)^\s*Error:\s`),
	regexp.MustCompile(`(?m)^FATAL\b`),
	regexp.MustCompile(`(?m)^Segmentation fault`),
}

// DetectRuntimeCrash scans the last maxCrashScanLines lines of combined
// stdout/stderr for crash markers (tracebacks, panics, fatal errors).
func DetectRuntimeCrash(output string) (crashed bool, matched string) {
	lines := strings.Split(output, "\n")
	start := 0
	if len(lines) > maxCrashScanLines {
		start = len(lines) - maxCrashScanLines
	}
	window := strings.Join(lines[start:], "\n")

	for _, re := range crashMarkers {
		if loc := re.FindString(window); loc != "" {
			return true, loc
		}
	}
	return false, ""
}
