package runner

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bookedby/convoqa/internal/models"
)

// DefaultConcurrency is the worker-pool size for suite runs.
const DefaultConcurrency = 4

// errStopSuite cancels queued workers when fail-fast is on.
var errStopSuite = errors.New("suite stopped")

// RunSuite executes a set of test cases concurrently. Each test owns its
// own conversation state, so only the worker count is shared. Inactive
// test cases are skipped. Results come back in test-case order.
func (r *Runner) RunSuite(ctx context.Context, suiteName string, cases []*models.TestCase, runID string, concurrency int) *models.SuiteOutcome {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	start := time.Now()

	active := make([]*models.TestCase, 0, len(cases))
	for _, tc := range cases {
		if tc.Active != nil && !*tc.Active {
			r.logger.Info("skipping inactive test", "test_id", tc.TestID)
			continue
		}
		active = append(active, tc)
	}

	results := make([]models.GoalTestResult, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, tc := range active {
		g.Go(func() error {
			if r.failFast && gctx.Err() != nil {
				r.logger.Info("skipping test after earlier failure", "test_id", tc.TestID)
				return nil
			}
			res := r.RunTest(gctx, tc, runID)
			results[i] = *res
			if r.failFast && (!res.Passed || res.ErrorMsg != "") {
				return errStopSuite
			}
			return nil
		})
	}
	// Failure state lives in the results; the only worker error is the
	// fail-fast sentinel used to cancel queued tests.
	_ = g.Wait()

	if r.failFast {
		kept := results[:0]
		for i := range results {
			if results[i].TestID != "" {
				kept = append(kept, results[i])
			}
		}
		results = kept
	}

	digest := models.SuiteDigest{
		TotalTests: len(results),
		DurationMs: time.Since(start).Milliseconds(),
	}
	for i := range results {
		switch {
		case results[i].ErrorMsg != "":
			digest.Errors++
		case results[i].Passed:
			digest.Passed++
		default:
			digest.Failed++
		}
	}
	if digest.TotalTests > 0 {
		digest.SuccessRate = float64(digest.Passed) / float64(digest.TotalTests)
	}

	return &models.SuiteOutcome{
		RunID:     runID,
		SuiteName: suiteName,
		Timestamp: start,
		Digest:    digest,
		Results:   results,
	}
}
