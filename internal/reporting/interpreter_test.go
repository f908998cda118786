package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpretPassRate(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "All tests passed (100%)"},
		{0.85, "Most tests passed (85%)"},
		{0.5, "About half the tests passed (50%)"},
		{0.1, "Few tests passed (10%)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InterpretPassRate(tt.rate))
	}
}

func TestInterpretGoalCompletion(t *testing.T) {
	assert.Equal(t, "all goals achieved", InterpretGoalCompletion(1.0))
	assert.Equal(t, "most goals achieved", InterpretGoalCompletion(0.75))
	assert.Equal(t, "half the goals achieved", InterpretGoalCompletion(0.5))
	assert.Equal(t, "most goals missed", InterpretGoalCompletion(0.2))
}

func TestFormatSummaryReport(t *testing.T) {
	report := FormatSummaryReport(newTestOutcome())

	assert.Contains(t, report, "=== Interpretation ===")
	assert.Contains(t, report, "Few tests passed (33%)")
	assert.Contains(t, report, "1 passed, 1 failed, 1 errors out of 3 total")
	assert.Contains(t, report, "✓ Book new patient: all goals achieved after 6 turns")
	assert.Contains(t, report, "✗ Book two children: half the goals achieved after 12 turns")
	assert.Contains(t, report, "error: session open failed: connection refused")
}

func TestFormatMarkdownComment(t *testing.T) {
	comment := FormatMarkdownComment(newTestOutcome())

	assert.Contains(t, comment, "**Status:** ❌ Failed")
	assert.Contains(t, comment, "| Book new patient | ✅ | 6 | 2/2 |")
	assert.Contains(t, comment, "| Book two children | ❌ | 12 | 1/2 |")
	assert.Contains(t, comment, "### Failed Test Details")
	assert.Contains(t, comment, "no confirmation before conversation ended")
	assert.Contains(t, comment, "🚫 **no_transfer** (turn 9)")
	assert.Contains(t, comment, "**Suite:** booking-regression | **Run:** run-1")
}

func TestFormatMarkdownComment_AllPassed(t *testing.T) {
	outcome := newTestOutcome()
	outcome.Digest.Failed = 0
	outcome.Digest.Errors = 0
	outcome.Results = outcome.Results[:1]

	comment := FormatMarkdownComment(outcome)
	assert.Contains(t, comment, "**Status:** ✅ Passed")
	assert.NotContains(t, comment, "### Failed Test Details")
}
