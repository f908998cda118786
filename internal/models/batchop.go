package models

import "time"

// BatchOpKind tags the payload carried by a BatchWriteOperation.
type BatchOpKind string

const (
	OpTestResult BatchOpKind = "test_result"
	OpTranscript BatchOpKind = "transcript"
	OpFinding    BatchOpKind = "finding"
	OpAPICall    BatchOpKind = "api_call"
)

// TestResultRow is the persistence payload for one completed test.
type TestResultRow struct {
	RunID      string    `json:"run_id"`
	TestID     string    `json:"test_id"`
	Passed     bool      `json:"passed"`
	DurationMs int64     `json:"duration_ms"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TranscriptRow is the persistence payload for a full conversation
// transcript.
type TranscriptRow struct {
	RunID  string             `json:"run_id"`
	TestID string             `json:"test_id"`
	Turns  []ConversationTurn `json:"turns"`
}

// FindingRow is the persistence payload for one issue observed during a
// run.
type FindingRow struct {
	RunID       string        `json:"run_id"`
	TestID      string        `json:"test_id"`
	Type        string        `json:"type"`
	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
	Turn        int           `json:"turn"`
}

// APICallRow is the persistence payload for one tool/API call observed in
// the agent's responses.
type APICallRow struct {
	RunID      string `json:"run_id"`
	TestID     string `json:"test_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
}

// BatchWriteOperation is a tagged union over the persistence payloads a
// batch writer can queue. Exactly one payload field is set, matching Kind.
type BatchWriteOperation struct {
	Kind       BatchOpKind    `json:"kind"`
	TestResult *TestResultRow `json:"test_result,omitempty"`
	Transcript *TranscriptRow `json:"transcript,omitempty"`
	Finding    *FindingRow    `json:"finding,omitempty"`
	APICall    *APICallRow    `json:"api_call,omitempty"`
}
