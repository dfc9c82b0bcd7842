// Package verdict implements the Output Judger: comparing a captured
// stdout against an expected output under one of a small set of
// matching rules. It owns no OS resources and has no teacher analogue
// to adapt (apptainer never compares program output), so it is written
// directly against the stdlib string/bytes primitives the rest of this
// tree already reaches for when no third-party package shapes the
// concern any better (see DESIGN.md's per-dep disposition note).
package verdict

import "strings"

// Rule selects how Compare treats whitespace differences between the
// actual and expected output.
type Rule int

const (
	// ExactMatch requires the two byte strings to be identical.
	ExactMatch Rule = iota
	// IgnoreTrailingWhitespace trims each line's trailing spaces/tabs
	// and trims trailing blank lines before comparing.
	IgnoreTrailingWhitespace
	// SkipSnl collapses every run of whitespace (including newlines) to
	// a single space and trims the result before comparing.
	SkipSnl
)

func (r Rule) String() string {
	switch r {
	case ExactMatch:
		return "exact"
	case IgnoreTrailingWhitespace:
		return "ignore-trailing-whitespace"
	case SkipSnl:
		return "skip-snl"
	default:
		return "unknown"
	}
}

// Compare reports whether actual matches expected under rule.
func Compare(rule Rule, actual, expected []byte) bool {
	switch rule {
	case IgnoreTrailingWhitespace:
		return normalizeTrailing(string(actual)) == normalizeTrailing(string(expected))
	case SkipSnl:
		return normalizeSnl(string(actual)) == normalizeSnl(string(expected))
	default:
		return string(actual) == string(expected)
	}
}

// normalizeTrailing trims trailing spaces/tabs off every line, then
// trims trailing blank lines off the whole text.
func normalizeTrailing(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// normalizeSnl collapses every run of ASCII whitespace to a single
// space and trims the result.
func normalizeSnl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if isSpace(r) {
			if !inSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return strings.TrimRight(b.String(), " ")
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}
