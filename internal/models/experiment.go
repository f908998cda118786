package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VariantType categorizes what a variant replaces.
type VariantType string

const (
	VariantTypePrompt VariantType = "prompt"
	VariantTypeTool   VariantType = "tool"
	VariantTypeConfig VariantType = "config"
)

// Variant is an alternate version of a configuration/prompt file used to
// drive an A/B experiment. Variants are never mutated after creation; new
// content means a new variant.
type Variant struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Type        VariantType `json:"type"`
	TargetFile  string      `json:"target_file"`
	Content     string      `json:"content"`
	ContentHash string      `json:"content_hash"`
	SourceFixID *uuid.UUID  `json:"source_fix_id,omitempty"`
	IsBaseline  bool        `json:"is_baseline"`
	CreatedBy   string      `json:"created_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// HashContent returns the canonical content hash for variant content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ExperimentStatus tracks an experiment's lifecycle. Transitions are
// one-directional except for pause/resume.
type ExperimentStatus string

const (
	ExperimentDraft     ExperimentStatus = "draft"
	ExperimentRunning   ExperimentStatus = "running"
	ExperimentPaused    ExperimentStatus = "paused"
	ExperimentCompleted ExperimentStatus = "completed"
	ExperimentAborted   ExperimentStatus = "aborted"
)

// CanTransition reports whether moving from s to next is allowed.
func (s ExperimentStatus) CanTransition(next ExperimentStatus) bool {
	switch s {
	case ExperimentDraft:
		return next == ExperimentRunning || next == ExperimentAborted
	case ExperimentRunning:
		return next == ExperimentPaused || next == ExperimentCompleted || next == ExperimentAborted
	case ExperimentPaused:
		return next == ExperimentRunning || next == ExperimentCompleted || next == ExperimentAborted
	default:
		return false
	}
}

// ArmRole distinguishes the control arm from treatment arms.
type ArmRole string

const (
	RoleControl   ArmRole = "control"
	RoleTreatment ArmRole = "treatment"
)

// AssignmentPolicy controls how variants are assigned to tests.
type AssignmentPolicy string

const (
	// AssignDeterministic hashes (experiment, test) onto the arm roster so
	// the same pairing always selects the same variant.
	AssignDeterministic AssignmentPolicy = "deterministic"
	// AssignWeighted samples by arm weight, stable for a given
	// (experiment, test) pair within one sampling pass.
	AssignWeighted AssignmentPolicy = "weighted"
)

// ExperimentArm binds a variant to a role and sampling weight.
type ExperimentArm struct {
	VariantID uuid.UUID `json:"variant_id"`
	Role      ArmRole   `json:"role"`
	Weight    float64   `json:"weight"`
}

// Experiment is an A/B test over a set of variants and test cases.
type Experiment struct {
	ID                uuid.UUID        `json:"id"`
	Hypothesis        string           `json:"hypothesis"`
	Status            ExperimentStatus `json:"status"`
	Arms              []ExperimentArm  `json:"arms"`
	TestIDs           []string         `json:"test_ids"`
	MinSamples        int              `json:"min_samples"`
	MaxSamples        int              `json:"max_samples"`
	SignificanceLevel float64          `json:"significance_level"`
	Assignment        AssignmentPolicy `json:"assignment"`
	CreatedAt         time.Time        `json:"created_at"`
}

// Validate checks experiment invariants before it can run.
func (e *Experiment) Validate() error {
	if len(e.Arms) == 0 {
		return fmt.Errorf("experiment has no arms")
	}
	controls := 0
	for _, arm := range e.Arms {
		if arm.Role == RoleControl {
			controls++
		}
		if arm.Weight < 0 {
			return fmt.Errorf("arm %s: negative weight", arm.VariantID)
		}
	}
	if controls > 1 {
		return fmt.Errorf("experiment has %d control arms, want at most 1", controls)
	}
	if len(e.TestIDs) == 0 {
		return fmt.Errorf("experiment has no tests")
	}
	return nil
}

// VariantSelection is the outcome of assigning a variant to one test
// execution.
type VariantSelection struct {
	VariantID  uuid.UUID `json:"variant_id"`
	Role       ArmRole   `json:"role"`
	TargetFile string    `json:"target_file"`
}

// ExperimentRun is one row per (experiment, test execution, selected
// variant). Append-only; created exactly once per test execution under
// experiment.
type ExperimentRun struct {
	ID                 uuid.UUID          `json:"id"`
	ExperimentID       uuid.UUID          `json:"experiment_id"`
	RunID              string             `json:"run_id"`
	TestID             string             `json:"test_id"`
	VariantID          uuid.UUID          `json:"variant_id"`
	Role               ArmRole            `json:"role"`
	Passed             bool               `json:"passed"`
	Turns              int                `json:"turns"`
	DurationMs         int64              `json:"duration_ms"`
	GoalCompletionRate float64            `json:"goal_completion_rate"`
	ViolationCount     int                `json:"violation_count"`
	ErrorOccurred      bool               `json:"error_occurred"`
	Metrics            map[string]float64 `json:"metrics,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}
