// Package progress tracks goal and field completion across a conversation
// and produces the final verdict.
package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/bookedby/convoqa/internal/classify"
	"github.com/bookedby/convoqa/internal/models"
)

// Flow state labels.
const (
	FlowGreeting   = "greeting"
	FlowCollecting = "collecting"
	FlowScheduling = "scheduling"
	FlowConfirmed  = "confirmed"
	FlowClosed     = "closed"
	FlowTransfer   = "transferred"
)

// confirmConfidence is the minimum classification confidence for treating a
// confirmation intent as an actual booking.
const confirmConfidence = 0.8

// Tracker maintains the mutable progress state for one test execution. It
// is owned by a single goroutine and mutated once per turn.
type Tracker struct {
	goals []models.Goal
	state *models.ProgressState
}

// NewTracker initializes tracking for a goal set. All collect-goal fields
// start pending and every goal starts active.
func NewTracker(goals []models.Goal, now time.Time) *Tracker {
	state := &models.ProgressState{
		Collected:    make(map[models.Field]models.CollectedField),
		FlowState:    FlowGreeting,
		StartedAt:    now,
		LastActivity: now,
	}
	for _, g := range goals {
		state.ActiveGoals = append(state.ActiveGoals, g.ID)
		if g.Kind == models.GoalKindCollect {
			state.Pending = append(state.Pending, g.Field)
		}
	}
	return &Tracker{goals: goals, state: state}
}

// UpdateProgress folds one turn's observation into state: the detected
// intent, and the user reply generated for it (empty for terminal intents).
func (t *Tracker) UpdateProgress(intent *classify.IntentDetectionResult, userReply string, turn int) {
	s := t.state
	s.LastIntent = intent.Intent
	s.IntentHistory = append(s.IntentHistory, intent.Intent)
	s.LastActivity = time.Now()

	switch intent.Intent {
	case classify.IntentConfirming:
		if intent.Confidence >= confirmConfidence {
			s.BookingConfirmed = true
			s.FlowState = FlowConfirmed
		}
	case classify.IntentTransfer:
		s.TransferInitiated = true
		s.FlowState = FlowTransfer
		t.AddIssue("transfer_initiated", models.SeverityWarning,
			"agent handed the conversation to a human before completing the booking", turn)
	case classify.IntentGoodbye:
		if s.FlowState != FlowConfirmed {
			s.FlowState = FlowClosed
		}
	case classify.IntentOfferingSlot:
		s.FlowState = FlowScheduling
	default:
		if s.FlowState == FlowGreeting {
			s.FlowState = FlowCollecting
		}
	}

	// A generated reply to an ask-intent supplies the asked fields.
	if userReply != "" {
		for _, f := range intent.Fields {
			t.MarkFieldCollected(f, strings.TrimSpace(userReply), turn)
		}
	}

	t.refreshGoals(turn)
}

// MarkFieldCollected records a field value. First collection wins: once a
// field is collected, later calls do not change the recorded value or turn.
func (t *Tracker) MarkFieldCollected(field models.Field, value string, turn int) {
	if _, done := t.state.Collected[field]; done {
		return
	}
	t.state.Collected[field] = models.CollectedField{Value: value, Turn: turn}
	t.refreshGoals(turn)
}

// AddIssue appends an issue observation.
func (t *Tracker) AddIssue(issueType string, severity models.IssueSeverity, description string, turn int) {
	t.state.Issues = append(t.state.Issues, models.Issue{
		Type:        issueType,
		Severity:    severity,
		Description: description,
		Turn:        turn,
	})
}

// refreshGoals recomputes completed/failed/pending sets from the collected
// data and flow flags.
func (t *Tracker) refreshGoals(turn int) {
	s := t.state
	s.CompletedGoals = s.CompletedGoals[:0]
	s.FailedGoals = s.FailedGoals[:0]
	s.ActiveGoals = s.ActiveGoals[:0]
	s.Pending = s.Pending[:0]

	for _, g := range t.goals {
		switch {
		case t.goalDone(g):
			s.CompletedGoals = append(s.CompletedGoals, g.ID)
		case t.goalFailed(g):
			s.FailedGoals = append(s.FailedGoals, g.ID)
		default:
			s.ActiveGoals = append(s.ActiveGoals, g.ID)
			if g.Kind == models.GoalKindCollect {
				s.Pending = append(s.Pending, g.Field)
			}
		}
	}
}

func (t *Tracker) goalDone(g models.Goal) bool {
	switch g.Kind {
	case models.GoalKindCollect:
		_, ok := t.state.Collected[g.Field]
		return ok
	case models.GoalKindBooking:
		return t.state.BookingConfirmed && !t.state.TransferInitiated
	case models.GoalKindNoTransfer:
		// Only decidable at the end; never "done" mid-run.
		return false
	default:
		return false
	}
}

// goalFailed reports goals that can no longer complete. A transfer ends the
// conversation, so booking-dependent goals fail as soon as it happens.
func (t *Tracker) goalFailed(g models.Goal) bool {
	switch g.Kind {
	case models.GoalKindBooking:
		return t.state.TransferInitiated
	case models.GoalKindNoTransfer:
		return t.state.TransferInitiated
	default:
		return false
	}
}

// AreGoalsComplete reports whether every required goal is complete.
func (t *Tracker) AreGoalsComplete() bool {
	done := make(map[string]bool, len(t.state.CompletedGoals))
	for _, id := range t.state.CompletedGoals {
		done[id] = true
	}
	for _, g := range t.goals {
		if g.Required && !done[g.ID] {
			return false
		}
	}
	return true
}

// HasFailedGoals reports whether any goal has already failed.
func (t *Tracker) HasFailedGoals() bool {
	return len(t.state.FailedGoals) > 0
}

// ShouldAbort reports whether a critical issue has been raised.
func (t *Tracker) ShouldAbort() bool {
	for _, issue := range t.state.Issues {
		if issue.Severity == models.SeverityCritical {
			return true
		}
	}
	return false
}

// PendingFields returns the fields still waiting to be collected.
func (t *Tracker) PendingFields() []models.Field {
	return append([]models.Field(nil), t.state.Pending...)
}

// State returns a read-only snapshot of the progress state.
func (t *Tracker) State() *models.ProgressState {
	return t.state.Clone()
}

// describeGoal renders a fallback description when the test author omitted
// one.
func describeGoal(g models.Goal) string {
	if g.Description != "" {
		return g.Description
	}
	switch g.Kind {
	case models.GoalKindCollect:
		return fmt.Sprintf("collect %s", g.Field)
	case models.GoalKindBooking:
		return "confirm booking"
	case models.GoalKindNoTransfer:
		return "finish without a human transfer"
	default:
		return string(g.Kind)
	}
}
