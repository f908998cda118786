package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/bookedby/convoqa/internal/models"
)

// InterpretPassRate returns a human-readable explanation of a pass rate (0–1).
func InterpretPassRate(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return fmt.Sprintf("All tests passed (%.0f%%)", pct)
	case pct >= 80:
		return fmt.Sprintf("Most tests passed (%.0f%%)", pct)
	case pct >= 50:
		return fmt.Sprintf("About half the tests passed (%.0f%%)", pct)
	default:
		return fmt.Sprintf("Few tests passed (%.0f%%)", pct)
	}
}

// InterpretGoalCompletion returns a plain-language label for a goal
// completion rate (0–1).
func InterpretGoalCompletion(rate float64) string {
	pct := rate * 100
	switch {
	case pct >= 100:
		return "all goals achieved"
	case pct >= 70:
		return "most goals achieved"
	case pct >= 50:
		return "half the goals achieved"
	default:
		return "most goals missed"
	}
}

// FormatSummaryReport produces a plain-language report from a SuiteOutcome.
// Meant for humans skimming CI logs, not for machine parsing.
func FormatSummaryReport(outcome *models.SuiteOutcome) string {
	var b strings.Builder

	d := outcome.Digest
	duration := time.Duration(d.DurationMs) * time.Millisecond

	b.WriteString("=== Interpretation ===\n\n")
	b.WriteString(fmt.Sprintf("Pass Rate: %s\n", InterpretPassRate(d.SuccessRate)))
	b.WriteString(fmt.Sprintf("Duration:  %v\n", duration))
	if d.TotalTests > 0 {
		b.WriteString(fmt.Sprintf("Tests:     %d passed, %d failed, %d errors out of %d total\n",
			d.Passed, d.Failed, d.Errors, d.TotalTests))
	}

	if len(outcome.Results) > 0 {
		b.WriteString("\nPer-Test Interpretation:\n")
		for i := range outcome.Results {
			r := &outcome.Results[i]
			icon := "✓"
			if !r.Passed {
				icon = "✗"
			}
			b.WriteString(fmt.Sprintf("  %s %s: %s after %d turns\n",
				icon, displayName(r), InterpretGoalCompletion(r.GoalCompletionRate()), r.Turns))
			if r.ErrorMsg != "" {
				b.WriteString(fmt.Sprintf("      error: %s\n", r.ErrorMsg))
			}
		}
	}

	return b.String()
}

// FormatMarkdownComment formats a SuiteOutcome as a markdown comment
// suitable for posting on a pull request.
func FormatMarkdownComment(outcome *models.SuiteOutcome) string {
	var b strings.Builder

	d := outcome.Digest
	duration := time.Duration(d.DurationMs) * time.Millisecond

	b.WriteString("## 🧪 Conversation Test Results\n\n")

	status := "✅ Passed"
	if d.Failed > 0 || d.Errors > 0 {
		status = "❌ Failed"
	}
	b.WriteString(fmt.Sprintf("**Status:** %s | **Success Rate:** %.1f%% | **Duration:** %s\n\n",
		status, d.SuccessRate*100, formatDuration(duration)))
	b.WriteString(fmt.Sprintf("- **Tests:** %d total, %d passed, %d failed, %d errors\n\n",
		d.TotalTests, d.Passed, d.Failed, d.Errors))

	b.WriteString("### Test Results\n\n")
	b.WriteString("| Test | Status | Turns | Goals |\n")
	b.WriteString("|------|--------|-------|-------|\n")
	for i := range outcome.Results {
		r := &outcome.Results[i]
		icon := "✅"
		if !r.Passed {
			icon = "❌"
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %d | %s |\n",
			displayName(r), icon, r.Turns, goalTally(r)))
	}
	b.WriteString("\n")

	if d.Failed > 0 || d.Errors > 0 {
		b.WriteString("### Failed Test Details\n\n")
		for i := range outcome.Results {
			r := &outcome.Results[i]
			if r.Passed {
				continue
			}
			b.WriteString(fmt.Sprintf("#### %s\n\n", displayName(r)))
			if r.ErrorMsg != "" {
				b.WriteString(fmt.Sprintf("- ⚠️ %s\n", r.ErrorMsg))
			}
			for _, g := range r.Goals {
				icon := "✅"
				if !g.Passed {
					icon = "❌"
				}
				b.WriteString(fmt.Sprintf("- %s **%s**: %s\n", icon, g.GoalID, g.Detail))
			}
			for _, v := range r.Violations {
				b.WriteString(fmt.Sprintf("- 🚫 **%s** (turn %d): %s\n", v.Constraint, v.Turn, v.Description))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("---\n\n")
	b.WriteString(fmt.Sprintf("**Suite:** %s | **Run:** %s\n", outcome.SuiteName, outcome.RunID))

	return b.String()
}
