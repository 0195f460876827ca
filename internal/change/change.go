// Package change decides whether page text changed between runs and renders
// the difference as a unified diff.
package change

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// Default labels for the diff header.
const (
	PreviousLabel = "previous"
	CurrentLabel  = "current"
)

// ContextLines is the number of unchanged lines shown around each hunk.
const ContextLines = 3

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Normalize strips trailing whitespace from every line and leading/trailing
// whitespace from the whole text. CRLF and CR line endings become LF.
func Normalize(text string) string {
	lines := strings.Split(newlines.Replace(text), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRightFunc(line, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// HasChanged compares the normalized forms. Reordered lines count as a change.
func HasChanged(previous, current string) bool {
	return Normalize(previous) != Normalize(current)
}

// UnifiedDiff renders previous -> current line by line with ContextLines of
// context. Identical inputs produce "".
func UnifiedDiff(previous, current, previousLabel, currentLabel string) (string, error) {
	if previous == current {
		return "", nil
	}
	diff := difflib.UnifiedDiff{
		A:        splitLines(previous),
		B:        splitLines(current),
		FromFile: previousLabel,
		ToFile:   currentLabel,
		Context:  ContextLines,
	}
	out, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("render unified diff: %w", err)
	}
	return out, nil
}

// splitLines keeps line terminators. Unlike difflib.SplitLines it returns no
// lines for empty input, so a first run diffs against nothing rather than a
// single blank line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return difflib.SplitLines(text)
}

// Result is the outcome of comparing two snapshots.
type Result struct {
	Previous string
	Current  string
	Changed  bool
	Diff     string
}

// Compare normalizes both sides and computes the diff only when they differ.
func Compare(previous, current string) (Result, error) {
	res := Result{
		Previous: Normalize(previous),
		Current:  Normalize(current),
	}
	res.Changed = res.Previous != res.Current
	if !res.Changed {
		return res, nil
	}
	diff, err := UnifiedDiff(res.Previous, res.Current, PreviousLabel, CurrentLabel)
	if err != nil {
		return res, err
	}
	res.Diff = diff
	return res, nil
}
