package models

import "time"

// GoalResult is the per-goal component of the final verdict.
type GoalResult struct {
	GoalID      string `json:"goal_id"`
	Description string `json:"description,omitempty"`
	Passed      bool   `json:"passed"`
	Detail      string `json:"detail,omitempty"`
}

// ConstraintViolation records a hard constraint the conversation broke.
type ConstraintViolation struct {
	Constraint  string `json:"constraint"`
	Description string `json:"description"`
	Turn        int    `json:"turn"`
}

// GoalTestResult is the complete outcome of one goal test execution.
// Callers of the runner always receive one of these, never an error.
type GoalTestResult struct {
	RunID       string `json:"run_id"`
	TestID      string `json:"test_id"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category,omitempty"`

	Passed     bool                  `json:"passed"`
	Goals      []GoalResult          `json:"goals"`
	Violations []ConstraintViolation `json:"violations,omitempty"`
	Issues     []Issue               `json:"issues,omitempty"`
	Summary    string                `json:"summary"`

	Turns      int                `json:"turns"`
	DurationMs int64              `json:"duration_ms"`
	StartedAt  time.Time          `json:"started_at"`
	Transcript []ConversationTurn `json:"transcript,omitempty"`

	// FinalState embeds the full progress snapshot for auditing.
	FinalState *ProgressState `json:"final_state,omitempty"`

	// ResolvedPersona is set when dynamic persona fields were used, so the
	// run can be reproduced from the recorded seed.
	ResolvedPersona *ResolvedPersona `json:"resolved_persona,omitempty"`

	ErrorMsg string `json:"error_msg,omitempty"`
}

// GoalCompletionRate returns the fraction of goals that passed.
func (r *GoalTestResult) GoalCompletionRate() float64 {
	if len(r.Goals) == 0 {
		return 0
	}
	passed := 0
	for _, g := range r.Goals {
		if g.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(r.Goals))
}

// SuiteDigest aggregates results across a suite run.
type SuiteDigest struct {
	TotalTests  int     `json:"total_tests"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Errors      int     `json:"errors"`
	SuccessRate float64 `json:"success_rate"`
	DurationMs  int64   `json:"duration_ms"`
}

// SuiteOutcome is the result of running a whole suite of test cases.
type SuiteOutcome struct {
	RunID     string           `json:"run_id"`
	SuiteName string           `json:"suite_name"`
	Timestamp time.Time        `json:"timestamp"`
	Digest    SuiteDigest      `json:"digest"`
	Results   []GoalTestResult `json:"results"`
}
