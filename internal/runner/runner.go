// Package runner orchestrates goal-oriented conversations against the
// agent under test, from persona resolution through goal evaluation and
// persistence.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/bookedby/convoqa/internal/agent"
	"github.com/bookedby/convoqa/internal/batch"
	"github.com/bookedby/convoqa/internal/classify"
	"github.com/bookedby/convoqa/internal/extract"
	"github.com/bookedby/convoqa/internal/models"
	"github.com/bookedby/convoqa/internal/persona"
	"github.com/bookedby/convoqa/internal/progress"
	"github.com/bookedby/convoqa/internal/storage"
)

const (
	// DefaultMaxTurns bounds any conversation regardless of what the test
	// case asks for.
	DefaultMaxTurns = 50
	// DefaultTurnDelay spaces out turns so the agent is not hammered.
	DefaultTurnDelay = 500 * time.Millisecond
)

// nextChildPattern spots the agent moving on to another child in a
// multi-child booking.
var nextChildPattern = regexp.MustCompile(`(?i)\b(?:next|other|second|third|another)\b.{0,40}\b(?:child|kid|patient)\b`)

// Runner executes goal tests. One Runner is safe for concurrent use; each
// test execution owns its own conversation state.
type Runner struct {
	client     agent.Client
	classifier classify.ResponseClassifier
	resolver   *persona.Resolver
	extractor  *extract.Extractor
	writer     *batch.Writer
	store      storage.Store
	logger     *slog.Logger
	listener   ProgressListener

	maxTurns  int
	turnDelay time.Duration
	snapshots bool
	failFast  bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithClassifier overrides the default category-based classifier.
func WithClassifier(c classify.ResponseClassifier) Option {
	return func(r *Runner) { r.classifier = c }
}

// WithBatchWriter routes test-result, transcript, finding, and api-call
// rows through a batch writer. Without one those writes are skipped.
func WithBatchWriter(w *batch.Writer) Option {
	return func(r *Runner) { r.writer = w }
}

// WithStore enables goal-result and progress-snapshot persistence.
func WithStore(s storage.Store) Option {
	return func(r *Runner) { r.store = s }
}

// WithSnapshots persists a progress snapshot after every turn. Requires a
// store.
func WithSnapshots() Option {
	return func(r *Runner) { r.snapshots = true }
}

// WithMaxTurns raises the default turn bound. The effective bound for one
// test is the larger of this and the test case's own max_turns.
func WithMaxTurns(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxTurns = n
		}
	}
}

// WithTurnDelay sets the pause between turns. Zero removes it.
func WithTurnDelay(d time.Duration) Option {
	return func(r *Runner) { r.turnDelay = d }
}

// WithFailFast stops a suite run after the first failed or errored test.
// In-flight tests are canceled and queued tests are not started.
func WithFailFast() Option {
	return func(r *Runner) { r.failFast = true }
}

// WithProgressListener registers a listener for live run events.
func WithProgressListener(l ProgressListener) Option {
	return func(r *Runner) { r.listener = l }
}

// New creates a Runner for the given agent client.
func New(client agent.Client, opts ...Option) *Runner {
	r := &Runner{
		client:     client,
		classifier: classify.New(classify.Options{UseCategorySystem: true}),
		resolver:   persona.New(),
		extractor:  extract.MustNew(),
		logger:     slog.Default(),
		listener:   NopListener{},
		maxTurns:   DefaultMaxTurns,
		turnDelay:  DefaultTurnDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOption adjusts a single test execution.
type RunOption func(*runParams)

type runParams struct {
	testID string
}

// WithTestID overrides the persisted test ID, used when one test case runs
// several times under an experiment.
func WithTestID(id string) RunOption {
	return func(p *runParams) { p.testID = id }
}

// RunTest executes one goal test. It always returns a well-formed result;
// any failure during the run is folded into the result instead of being
// returned as an error.
func (r *Runner) RunTest(ctx context.Context, tc *models.TestCase, runID string, opts ...RunOption) *models.GoalTestResult {
	params := runParams{testID: tc.TestID}
	for _, opt := range opts {
		opt(&params)
	}

	start := time.Now()
	log := r.logger.With("run_id", runID, "test_id", params.testID)
	r.listener.TestStarted(params.testID)

	resolved, err := r.resolver.Resolve(&tc.Persona)
	if err != nil {
		return r.finish(ctx, tc, params.testID, r.failedResult(tc, runID, params.testID, start,
			fmt.Errorf("resolve persona: %w", err)), log)
	}
	p := &resolved.Persona
	if tc.Persona.IsDynamic() {
		log.Info("resolved dynamic persona",
			"seed", resolved.Meta.Seed,
			"generated", resolved.Meta.GeneratedFields)
	}

	session, err := r.client.NewSession(ctx)
	if err != nil {
		return r.finish(ctx, tc, params.testID, r.failedResult(tc, runID, params.testID, start,
			fmt.Errorf("open session: %w", err)), log)
	}
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn("closing session", "error", err)
		}
	}()

	tracker := progress.NewTracker(tc.Goals, start)
	var transcript []models.ConversationTurn

	// The initial message may volunteer data before the agent asks.
	for _, m := range r.extractor.Extract(tc.InitialMessage) {
		tracker.MarkFieldCollected(m.Field, m.Value, 0)
	}

	transcript = append(transcript, models.ConversationTurn{
		Role:      models.RoleUser,
		Content:   tc.InitialMessage,
		Timestamp: time.Now(),
		Step:      0,
	})
	resp, err := session.SendMessage(ctx, tc.InitialMessage)
	if err != nil {
		return r.finish(ctx, tc, params.testID, r.failedResult(tc, runID, params.testID, start,
			fmt.Errorf("initial message got no response: %w", err)), log)
	}
	transcript = append(transcript, r.agentTurn(ctx, resp, runID, params.testID, 0, log))

	transcript, runErr := r.conversationLoop(ctx, tc, session, tracker, p, transcript, runID, params.testID, log)

	final := tracker.State()
	result := progress.Evaluate(tc, final, transcript, time.Since(start), runID)
	result.TestID = params.testID
	if tc.Persona.IsDynamic() {
		result.ResolvedPersona = resolved
	}
	if runErr != nil {
		log.Error("conversation failed", "error", runErr)
		result.Passed = false
		result.ErrorMsg = runErr.Error()
	}

	return r.finish(ctx, tc, params.testID, result, log)
}

// conversationLoop drives the turn-by-turn exchange. It returns the final
// transcript and the first error that should fail the run.
func (r *Runner) conversationLoop(
	ctx context.Context,
	tc *models.TestCase,
	session agent.Session,
	tracker *progress.Tracker,
	p *models.Persona,
	transcript []models.ConversationTurn,
	runID, testID string,
	log *slog.Logger,
) ([]models.ConversationTurn, error) {
	effectiveMax := max(tc.Response.MaxTurns, r.maxTurns)
	childIdx := 0

	for turn := 1; ; turn++ {
		if tracker.AreGoalsComplete() || tracker.HasFailedGoals() || turn >= effectiveMax {
			break
		}
		if err := ctx.Err(); err != nil {
			return transcript, err
		}

		last := lastAgentTurn(transcript)
		if last == nil {
			break
		}

		cls, err := r.classifier.Classify(last.Content, transcript, p)
		if err != nil {
			return transcript, fmt.Errorf("classify turn %d: %w", turn, err)
		}

		if classify.IsTerminal(cls) {
			// Terminal utterances never get a reply; fold them into
			// progress and stop.
			tracker.UpdateProgress(classify.ToLegacyIntent(cls), "", turn)
			log.Debug("terminal classification",
				"category", cls.Category, "confidence", cls.Confidence, "turn", turn)
			break
		}

		if nextChildPattern.MatchString(last.Content) && childIdx < len(p.Children)-1 {
			childIdx++
			log.Debug("advancing to next child", "child_index", childIdx)
		}

		state := tracker.State()
		provided := make(map[models.Field]bool, len(state.Collected))
		for f := range state.Collected {
			provided[f] = true
		}

		reply, err := r.classifier.GenerateResponse(cls, p, &classify.Context{
			ChildIndex: childIdx,
			Provided:   provided,
			History:    transcript,
			Turn:       turn,
		})
		if err != nil {
			return transcript, fmt.Errorf("generate reply for turn %d: %w", turn, err)
		}

		tracker.UpdateProgress(classify.ToLegacyIntent(cls), reply, turn)
		for _, m := range r.extractor.Extract(reply) {
			tracker.MarkFieldCollected(m.Field, m.Value, turn)
		}

		if tracker.ShouldAbort() {
			log.Warn("aborting conversation on critical issue", "turn", turn)
			break
		}

		transcript = append(transcript, models.ConversationTurn{
			Role:      models.RoleUser,
			Content:   reply,
			Timestamp: time.Now(),
			Step:      turn,
		})
		resp, err := session.SendMessage(ctx, reply)
		if err != nil {
			transcript = append(transcript, models.ConversationTurn{
				Role:      models.RoleAssistant,
				Timestamp: time.Now(),
				Step:      turn,
				ErrorMsg:  err.Error(),
			})
			log.Warn("agent turn failed", "turn", turn, "error", err)
			if !tc.Response.ContinueOnError {
				return transcript, fmt.Errorf("agent turn %d: %w", turn, err)
			}
		} else {
			transcript = append(transcript, r.agentTurn(ctx, resp, runID, testID, turn, log))
		}

		r.listener.TurnCompleted(testID, turn, string(cls.Category))
		r.saveSnapshot(ctx, tracker, runID, testID, turn, log)

		if r.turnDelay > 0 {
			select {
			case <-time.After(r.turnDelay):
			case <-ctx.Done():
				return transcript, ctx.Err()
			}
		}
	}

	return transcript, nil
}

// agentTurn converts an agent response into a transcript turn and queues
// api-call rows for any tool calls it carried.
func (r *Runner) agentTurn(ctx context.Context, resp *agent.Response, runID, testID string, turn int, log *slog.Logger) models.ConversationTurn {
	if r.writer != nil {
		for _, tcall := range resp.ToolCalls {
			err := r.writer.Add(ctx, models.BatchWriteOperation{
				Kind: models.OpAPICall,
				APICall: &models.APICallRow{
					RunID:      runID,
					TestID:     testID,
					Name:       tcall.Name,
					Status:     tcall.Status,
					DurationMs: tcall.DurationMs,
				},
			})
			if err != nil {
				log.Warn("queueing api call row", "error", err)
			}
		}
	}
	return models.ConversationTurn{
		Role:      models.RoleAssistant,
		Content:   resp.Text,
		Timestamp: time.Now(),
		LatencyMs: resp.ResponseTimeMs,
		Step:      turn,
		ToolCalls: resp.ToolCalls,
	}
}

// saveSnapshot persists a per-turn progress snapshot. Snapshots are a
// debugging aid; failures are logged and ignored.
func (r *Runner) saveSnapshot(ctx context.Context, tracker *progress.Tracker, runID, testID string, turn int, log *slog.Logger) {
	if !r.snapshots || r.store == nil {
		return
	}
	err := r.store.SaveProgressSnapshot(ctx, storage.ProgressSnapshot{
		RunID:  runID,
		TestID: testID,
		Turn:   turn,
		State:  tracker.State(),
	})
	if err != nil {
		log.Warn("saving progress snapshot", "turn", turn, "error", err)
	}
}

// finish persists the result and notifies the listener. Persistence
// failures are logged; the caller still gets the result.
func (r *Runner) finish(ctx context.Context, tc *models.TestCase, testID string, result *models.GoalTestResult, log *slog.Logger) *models.GoalTestResult {
	ctx = context.WithoutCancel(ctx)

	if r.writer != nil {
		ops := []models.BatchWriteOperation{
			{Kind: models.OpTestResult, TestResult: &models.TestResultRow{
				RunID:      result.RunID,
				TestID:     testID,
				Passed:     result.Passed,
				DurationMs: result.DurationMs,
				ErrorMsg:   result.ErrorMsg,
				CreatedAt:  time.Now().UTC(),
			}},
			{Kind: models.OpTranscript, Transcript: &models.TranscriptRow{
				RunID:  result.RunID,
				TestID: testID,
				Turns:  result.Transcript,
			}},
		}
		for _, issue := range result.Issues {
			ops = append(ops, models.BatchWriteOperation{
				Kind: models.OpFinding,
				Finding: &models.FindingRow{
					RunID:       result.RunID,
					TestID:      testID,
					Type:        issue.Type,
					Severity:    issue.Severity,
					Description: issue.Description,
					Turn:        issue.Turn,
				},
			})
		}
		for _, op := range ops {
			if err := r.writer.Add(ctx, op); err != nil {
				log.Warn("queueing batch op", "kind", op.Kind, "error", err)
			}
		}
	}

	if r.store != nil {
		if err := r.store.SaveGoalTestResult(ctx, result); err != nil {
			log.Error("saving goal test result", "error", err)
		}
	}

	log.Info("test finished",
		"passed", result.Passed,
		"turns", result.Turns,
		"duration_ms", result.DurationMs,
		"summary", result.Summary)
	r.listener.TestFinished(result)
	return result
}

// failedResult synthesizes a verdict for a run that never reached goal
// evaluation: every goal is failed and a single critical issue records the
// execution error.
func (r *Runner) failedResult(tc *models.TestCase, runID, testID string, start time.Time, cause error) *models.GoalTestResult {
	goals := make([]models.GoalResult, 0, len(tc.Goals))
	for _, g := range tc.Goals {
		goals = append(goals, models.GoalResult{
			GoalID: g.ID,
			Passed: false,
			Detail: "test execution failed before this goal could be evaluated",
		})
	}
	return &models.GoalTestResult{
		RunID:       runID,
		TestID:      testID,
		DisplayName: tc.DisplayName,
		Category:    tc.Category,
		Passed:      false,
		Goals:       goals,
		Issues: []models.Issue{{
			Type:        "execution_error",
			Severity:    models.SeverityCritical,
			Description: cause.Error(),
		}},
		Summary:    fmt.Sprintf("FAIL: execution error: %v", cause),
		DurationMs: time.Since(start).Milliseconds(),
		StartedAt:  start,
		ErrorMsg:   cause.Error(),
	}
}

func lastAgentTurn(transcript []models.ConversationTurn) *models.ConversationTurn {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == models.RoleAssistant && transcript[i].ErrorMsg == "" {
			return &transcript[i]
		}
	}
	return nil
}
