// Package reporting renders suite outcomes for terminals, CI systems, and
// pull-request comments.
package reporting

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/bookedby/convoqa/internal/models"
)

const (
	colStatus = 7
	colTurns  = 6
	colGoals  = 7
	colTime   = 9
)

// padRight pads s with spaces to the given display width. Uses rune width
// so names with wide characters keep the columns aligned.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(10 * time.Millisecond).String()
}

func resultStatus(r *models.GoalTestResult) string {
	switch {
	case r.ErrorMsg != "":
		return "ERROR"
	case r.Passed:
		return "PASS"
	default:
		return "FAIL"
	}
}

func goalTally(r *models.GoalTestResult) string {
	passed := 0
	for _, g := range r.Goals {
		if g.Passed {
			passed++
		}
	}
	return fmt.Sprintf("%d/%d", passed, len(r.Goals))
}

// WriteSummaryTable prints a per-test results table followed by the suite
// digest line.
func WriteSummaryTable(w io.Writer, outcome *models.SuiteOutcome) {
	nameWidth := len("Test")
	for i := range outcome.Results {
		name := displayName(&outcome.Results[i])
		if rw := runewidth.StringWidth(name); rw > nameWidth {
			nameWidth = rw
		}
	}

	fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
		padRight("Test", nameWidth),
		padRight("Status", colStatus),
		padRight("Turns", colTurns),
		padRight("Goals", colGoals),
		padRight("Time", colTime),
	)
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", nameWidth+colStatus+colTurns+colGoals+colTime+8))

	for i := range outcome.Results {
		r := &outcome.Results[i]
		fmt.Fprintf(w, "%s  %s  %s  %s  %s\n",
			padRight(displayName(r), nameWidth),
			padRight(resultStatus(r), colStatus),
			padRight(fmt.Sprintf("%d", r.Turns), colTurns),
			padRight(goalTally(r), colGoals),
			padRight(formatDuration(time.Duration(r.DurationMs)*time.Millisecond), colTime),
		)
	}

	d := outcome.Digest
	fmt.Fprintf(w, "\n%s: %d tests, %d passed, %d failed, %d errors (%.1f%%) in %s\n",
		outcome.SuiteName, d.TotalTests, d.Passed, d.Failed, d.Errors,
		d.SuccessRate*100,
		formatDuration(time.Duration(d.DurationMs)*time.Millisecond),
	)
}

// WriteFailureDetails prints per-goal detail for every test that did not
// pass. Quiet when everything passed.
func WriteFailureDetails(w io.Writer, outcome *models.SuiteOutcome) {
	for i := range outcome.Results {
		r := &outcome.Results[i]
		if r.Passed {
			continue
		}
		fmt.Fprintf(w, "\n%s (%s):\n", displayName(r), resultStatus(r))
		if r.ErrorMsg != "" {
			fmt.Fprintf(w, "  error: %s\n", r.ErrorMsg)
		}
		for _, g := range r.Goals {
			if g.Passed {
				continue
			}
			detail := g.Detail
			if detail == "" {
				detail = "not achieved"
			}
			fmt.Fprintf(w, "  ✗ %s: %s\n", g.GoalID, detail)
		}
		for _, v := range r.Violations {
			fmt.Fprintf(w, "  ! %s (turn %d): %s\n", v.Constraint, v.Turn, v.Description)
		}
	}
}

func displayName(r *models.GoalTestResult) string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.TestID
}
