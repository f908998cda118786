package statistics

import (
	"fmt"

	"github.com/bookedby/convoqa/internal/models"
)

// ArmSummary aggregates one experiment arm's recorded runs.
type ArmSummary struct {
	Role               models.ArmRole `json:"role"`
	Samples            int            `json:"samples"`
	PassRate           float64        `json:"pass_rate"`
	GoalCompletionRate float64        `json:"goal_completion_rate"`
	MeanTurns          float64        `json:"mean_turns"`
	Errors             int            `json:"errors"`
}

// Analysis is the significance verdict for one experiment.
type Analysis struct {
	Control     *ArmSummary        `json:"control,omitempty"`
	Treatment   *ArmSummary        `json:"treatment,omitempty"`
	Delta       ConfidenceInterval `json:"delta"`
	Gain        float64            `json:"gain"`
	Significant bool               `json:"significant"`
	// Ready reports whether both arms reached the experiment's minimum
	// sample count; a verdict before that is informational only.
	Ready bool `json:"ready"`
}

// Analyze compares control and treatment pass rates across an experiment's
// recorded runs. The delta interval is bootstrap-based on per-run
// goal-completion rates, at the experiment's significance level.
func Analyze(exp *models.Experiment, runs []models.ExperimentRun) (*Analysis, error) {
	var control, treatment []models.ExperimentRun
	for _, r := range runs {
		switch r.Role {
		case models.RoleControl:
			control = append(control, r)
		case models.RoleTreatment:
			treatment = append(treatment, r)
		default:
			return nil, fmt.Errorf("statistics: run %s has unknown arm role %q", r.ID, r.Role)
		}
	}
	if len(control) == 0 || len(treatment) == 0 {
		return nil, fmt.Errorf("statistics: need runs in both arms, have %d control and %d treatment",
			len(control), len(treatment))
	}

	level := exp.SignificanceLevel
	if level <= 0 || level >= 1 {
		level = 0.95
	}

	cs := summarizeArm(models.RoleControl, control)
	ts := summarizeArm(models.RoleTreatment, treatment)
	delta := BootstrapDiffCI(completionRates(control), completionRates(treatment), level, -1)

	return &Analysis{
		Control:     cs,
		Treatment:   ts,
		Delta:       delta,
		Gain:        NormalizedGain(cs.PassRate, ts.PassRate),
		Significant: IsSignificant(delta),
		Ready:       len(control) >= exp.MinSamples && len(treatment) >= exp.MinSamples,
	}, nil
}

func summarizeArm(role models.ArmRole, runs []models.ExperimentRun) *ArmSummary {
	s := &ArmSummary{Role: role, Samples: len(runs)}
	passed := 0
	totalTurns := 0
	totalCompletion := 0.0
	for _, r := range runs {
		if r.Passed {
			passed++
		}
		if r.ErrorOccurred {
			s.Errors++
		}
		totalTurns += r.Turns
		totalCompletion += r.GoalCompletionRate
	}
	n := float64(len(runs))
	s.PassRate = float64(passed) / n
	s.GoalCompletionRate = totalCompletion / n
	s.MeanTurns = float64(totalTurns) / n
	return s
}

func completionRates(runs []models.ExperimentRun) []float64 {
	out := make([]float64, len(runs))
	for i, r := range runs {
		out[i] = r.GoalCompletionRate
	}
	return out
}
