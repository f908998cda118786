package models

import "time"

// IssueSeverity ranks how serious an issue is. A critical issue aborts the
// conversation loop.
type IssueSeverity string

const (
	SeverityInfo     IssueSeverity = "info"
	SeverityWarning  IssueSeverity = "warning"
	SeverityCritical IssueSeverity = "critical"
)

// Issue is a problem observed during a conversation, attached to the final
// verdict.
type Issue struct {
	Type        string        `json:"type"`
	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
	Turn        int           `json:"turn"`
}

// CollectedField records a collected value and the turn it was first
// observed on.
type CollectedField struct {
	Value string `json:"value"`
	Turn  int    `json:"turn"`
}

// ProgressState is the mutable goal/field completion state for one test
// execution. It is mutated only by the progress tracker, once per turn.
// Collected status is monotonic: a field already marked collected is never
// un-collected.
type ProgressState struct {
	Collected         map[Field]CollectedField `json:"collected"`
	Pending           []Field                  `json:"pending"`
	CompletedGoals    []string                 `json:"completed_goals"`
	ActiveGoals       []string                 `json:"active_goals"`
	FailedGoals       []string                 `json:"failed_goals"`
	FlowState         string                   `json:"flow_state"`
	LastIntent        string                   `json:"last_intent"`
	IntentHistory     []string                 `json:"intent_history"`
	BookingConfirmed  bool                     `json:"booking_confirmed"`
	TransferInitiated bool                     `json:"transfer_initiated"`
	StartedAt         time.Time                `json:"started_at"`
	LastActivity      time.Time                `json:"last_activity"`
	Issues            []Issue                  `json:"issues"`
}

// Clone returns a deep copy so callers can hold a snapshot without racing
// the tracker.
func (s *ProgressState) Clone() *ProgressState {
	out := *s
	out.Collected = make(map[Field]CollectedField, len(s.Collected))
	for k, v := range s.Collected {
		out.Collected[k] = v
	}
	out.Pending = append([]Field(nil), s.Pending...)
	out.CompletedGoals = append([]string(nil), s.CompletedGoals...)
	out.ActiveGoals = append([]string(nil), s.ActiveGoals...)
	out.FailedGoals = append([]string(nil), s.FailedGoals...)
	out.IntentHistory = append([]string(nil), s.IntentHistory...)
	out.Issues = append([]Issue(nil), s.Issues...)
	return &out
}
