package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GoalKind categorizes what a goal checks.
type GoalKind string

const (
	// GoalKindCollect passes when a specific field has been collected.
	GoalKindCollect GoalKind = "collect_field"
	// GoalKindBooking passes when the agent confirmed the booking.
	GoalKindBooking GoalKind = "confirm_booking"
	// GoalKindNoTransfer passes when the conversation ended without being
	// handed off to a human.
	GoalKindNoTransfer GoalKind = "no_transfer"
)

// Goal is a declared, checkable outcome a test case expects the
// conversation to reach.
type Goal struct {
	ID          string   `yaml:"id" json:"id"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Kind        GoalKind `yaml:"kind" json:"kind"`
	Field       Field    `yaml:"field,omitempty" json:"field,omitempty"`
	Required    bool     `yaml:"required" json:"required"`
}

// ResponseConfig controls how user replies are produced and how long the
// conversation may run.
type ResponseConfig struct {
	MaxTurns        int  `yaml:"max_turns" json:"max_turns"`
	UseModel        bool `yaml:"use_model,omitempty" json:"use_model,omitempty"`
	ContinueOnError bool `yaml:"continue_on_error" json:"continue_on_error"`
}

// TestCase is one goal-oriented conversational test. Immutable once loaded.
type TestCase struct {
	TestID         string         `yaml:"id" json:"test_id"`
	DisplayName    string         `yaml:"name" json:"display_name"`
	Category       string         `yaml:"category,omitempty" json:"category,omitempty"`
	InitialMessage string         `yaml:"initial_message" json:"initial_message"`
	Persona        DynamicPersona `yaml:"persona" json:"persona"`
	Goals          []Goal         `yaml:"goals" json:"goals"`
	Response       ResponseConfig `yaml:"response" json:"response"`
	Active         *bool          `yaml:"active,omitempty" json:"active,omitempty"`
}

// LoadTestCase loads a test case from a YAML file.
func LoadTestCase(path string) (*TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tc TestCase
	if err := yaml.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("parsing test case %s: %w", path, err)
	}

	if err := tc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid test case %s: %w", path, err)
	}

	return &tc, nil
}

// Validate checks that the test case is well formed.
func (tc *TestCase) Validate() error {
	if tc.TestID == "" {
		return fmt.Errorf("test id is required")
	}
	if tc.InitialMessage == "" {
		return fmt.Errorf("initial_message is required")
	}
	if len(tc.Goals) == 0 {
		return fmt.Errorf("at least one goal is required")
	}
	seen := make(map[string]bool, len(tc.Goals))
	for _, g := range tc.Goals {
		if g.ID == "" {
			return fmt.Errorf("goal id is required")
		}
		if seen[g.ID] {
			return fmt.Errorf("duplicate goal id %q", g.ID)
		}
		seen[g.ID] = true
		if g.Kind == GoalKindCollect && g.Field == "" {
			return fmt.Errorf("goal %q: collect_field goals need a field", g.ID)
		}
	}
	if tc.Response.MaxTurns < 0 {
		return fmt.Errorf("max_turns must not be negative, got %d", tc.Response.MaxTurns)
	}
	return nil
}
