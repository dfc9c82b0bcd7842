package verdict

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestExactMatchRequiresByteIdentity(t *testing.T) {
	assert.Assert(t, Compare(ExactMatch, []byte("abc\n"), []byte("abc\n")))
	assert.Assert(t, !Compare(ExactMatch, []byte("abc\n"), []byte("abc")))
	assert.Assert(t, !Compare(ExactMatch, []byte("abc "), []byte("abc")))
}

func TestIgnoreTrailingWhitespaceTrimsLineEndsAndTrailingBlankLines(t *testing.T) {
	actual := "1 2 3  \n4 5 6\n\n\n"
	expected := "1 2 3\n4 5 6"
	assert.Assert(t, Compare(IgnoreTrailingWhitespace, []byte(actual), []byte(expected)))
}

func TestIgnoreTrailingWhitespaceStillDetectsInteriorDifference(t *testing.T) {
	actual := "1 2 3\n4 5 7\n"
	expected := "1 2 3\n4 5 6\n"
	assert.Assert(t, !Compare(IgnoreTrailingWhitespace, []byte(actual), []byte(expected)))
}

func TestSkipSnlCollapsesArbitraryWhitespace(t *testing.T) {
	actual := "1\n2   3\t\t4\n\n5"
	expected := "1 2 3 4 5"
	assert.Assert(t, Compare(SkipSnl, []byte(actual), []byte(expected)))
}

func TestSkipSnlIgnoresLeadingAndTrailingWhitespace(t *testing.T) {
	actual := "  \n hello world \n  "
	expected := "hello world"
	assert.Assert(t, Compare(SkipSnl, []byte(actual), []byte(expected)))
}

func TestRuleString(t *testing.T) {
	assert.Equal(t, ExactMatch.String(), "exact")
	assert.Equal(t, IgnoreTrailingWhitespace.String(), "ignore-trailing-whitespace")
	assert.Equal(t, SkipSnl.String(), "skip-snl")
}
