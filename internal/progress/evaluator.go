package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/bookedby/convoqa/internal/models"
)

// Evaluate produces the final verdict from the terminal progress state and
// transcript. Goals left incomplete when the conversation ended are failed,
// never skipped.
func Evaluate(tc *models.TestCase, final *models.ProgressState, transcript []models.ConversationTurn, duration time.Duration, runID string) *models.GoalTestResult {
	done := make(map[string]bool, len(final.CompletedGoals))
	for _, id := range final.CompletedGoals {
		done[id] = true
	}

	goals := make([]models.GoalResult, 0, len(tc.Goals))
	passedCount := 0
	requiredFailed := false

	for _, g := range tc.Goals {
		gr := models.GoalResult{
			GoalID:      g.ID,
			Description: describeGoal(g),
			Passed:      done[g.ID] || terminalGoalPassed(g, final),
		}
		if gr.Passed {
			passedCount++
		} else {
			gr.Detail = failureDetail(g, final)
			if g.Required {
				requiredFailed = true
			}
		}
		goals = append(goals, gr)
	}

	result := &models.GoalTestResult{
		RunID:       runID,
		TestID:      tc.TestID,
		DisplayName: tc.DisplayName,
		Category:    tc.Category,
		Passed:      !requiredFailed,
		Goals:       goals,
		Violations:  violationsFromIssues(final.Issues),
		Issues:      append([]models.Issue(nil), final.Issues...),
		Turns:       countUserTurns(transcript),
		DurationMs:  duration.Milliseconds(),
		StartedAt:   final.StartedAt,
		Transcript:  transcript,
		FinalState:  final,
	}
	result.Summary = summarize(result, passedCount, len(tc.Goals))
	return result
}

// terminalGoalPassed settles goals that are only decidable once the
// conversation has ended.
func terminalGoalPassed(g models.Goal, final *models.ProgressState) bool {
	if g.Kind == models.GoalKindNoTransfer {
		return !final.TransferInitiated
	}
	return false
}

func failureDetail(g models.Goal, final *models.ProgressState) string {
	switch g.Kind {
	case models.GoalKindCollect:
		return fmt.Sprintf("field %q was never collected", g.Field)
	case models.GoalKindBooking:
		if final.TransferInitiated {
			return "conversation was transferred before the booking was confirmed"
		}
		return "agent never confirmed the booking"
	case models.GoalKindNoTransfer:
		return "conversation was handed to a human"
	default:
		return "goal not reached"
	}
}

// violationsFromIssues surfaces constraint-typed issues as violations on
// the verdict.
func violationsFromIssues(issues []models.Issue) []models.ConstraintViolation {
	var out []models.ConstraintViolation
	for _, issue := range issues {
		if name, ok := strings.CutPrefix(issue.Type, "constraint:"); ok {
			out = append(out, models.ConstraintViolation{
				Constraint:  name,
				Description: issue.Description,
				Turn:        issue.Turn,
			})
		}
	}
	return out
}

func countUserTurns(transcript []models.ConversationTurn) int {
	n := 0
	for _, turn := range transcript {
		if turn.Role == models.RoleUser {
			n++
		}
	}
	return n
}

func summarize(r *models.GoalTestResult, passed, total int) string {
	verdict := "PASS"
	if !r.Passed {
		verdict = "FAIL"
	}
	s := fmt.Sprintf("%s: %d/%d goals passed over %d turns in %.1fs",
		verdict, passed, total, r.Turns, float64(r.DurationMs)/1000.0)
	if len(r.Violations) > 0 {
		s += fmt.Sprintf(", %d constraint violation(s)", len(r.Violations))
	}
	if r.FinalState != nil && r.FinalState.TransferInitiated {
		s += " (transferred to human)"
	}
	return s
}
