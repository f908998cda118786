package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookedby/convoqa/internal/experiment"
	"github.com/bookedby/convoqa/internal/models"
)

// RunTestWithExperiment wraps RunTest in the apply/run/rollback/record
// protocol. Variant selection and application errors are fatal and return
// before any conversation turn is attempted. Once a variant is applied,
// rollback runs exactly once no matter how the test body ends; a rollback
// failure is logged but does not fail the run.
func (r *Runner) RunTestWithExperiment(
	ctx context.Context,
	tc *models.TestCase,
	runID string,
	experimentID uuid.UUID,
	svc *experiment.Service,
	opts ...RunOption,
) (*models.GoalTestResult, error) {
	params := runParams{testID: tc.TestID}
	for _, opt := range opts {
		opt(&params)
	}
	log := r.logger.With("run_id", runID, "test_id", params.testID, "experiment_id", experimentID)

	sel, err := svc.SelectVariant(ctx, experimentID, params.testID)
	if err != nil {
		return nil, fmt.Errorf("runner: select variant: %w", err)
	}
	if err := svc.ApplyVariant(ctx, sel.VariantID); err != nil {
		return nil, fmt.Errorf("runner: apply variant: %w", err)
	}

	result := r.runBody(ctx, tc, runID, params.testID, opts)

	if err := svc.Rollback(sel.TargetFile); err != nil {
		log.Error("variant rollback failed; target file may be wrong for later runs", "error", err)
	}

	if err := svc.RecordTestResult(ctx, experimentID, sel, result); err != nil {
		log.Error("recording experiment run", "error", err)
	}

	return result, nil
}

// runBody executes the wrapped test and converts a panic into a
// well-formed failed result so metrics recording and rollback still have
// something to work with.
func (r *Runner) runBody(ctx context.Context, tc *models.TestCase, runID, testID string, opts []RunOption) (result *models.GoalTestResult) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("test body panicked", "run_id", runID, "test_id", testID, "panic", p)
			result = r.failedResult(tc, runID, testID, start, fmt.Errorf("test body panicked: %v", p))
		}
	}()
	return r.RunTest(ctx, tc, runID, opts...)
}
