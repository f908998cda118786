package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bookedby/convoqa/internal/agent"
	"github.com/bookedby/convoqa/internal/batch"
	"github.com/bookedby/convoqa/internal/classify"
	"github.com/bookedby/convoqa/internal/config"
	"github.com/bookedby/convoqa/internal/models"
	"github.com/bookedby/convoqa/internal/reporting"
	"github.com/bookedby/convoqa/internal/runner"
	"github.com/bookedby/convoqa/internal/storage"
)

var (
	runOutputPath  string
	runJUnitPath   string
	runVerbose     bool
	runInterpret   bool
	runFormat      string
	runConcurrency int
	runDryRun      bool
	runFailFast    bool
	runRunID       string
	runAgentURL    string
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite.yaml>",
		Short: "Run a suite of goal tests",
		Long: `Run every test case in a suite against the configured agent.

The suite file names the agent endpoint, execution settings, and the test
case files to include. Results are persisted when DATABASE_URL is set
(or --dry-run is not given).`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	cmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "Output JSON file for the suite outcome")
	cmd.Flags().StringVar(&runJUnitPath, "junit", "", "Write JUnit XML results to this path")
	cmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Verbose output with per-turn progress")
	cmd.Flags().BoolVar(&runInterpret, "interpret", false, "Print a plain-language interpretation of the results")
	cmd.Flags().StringVar(&runFormat, "format", "default", "Output format: default, github-comment")
	cmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "Concurrent test workers (overrides suite config)")
	cmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Skip all persistence")
	cmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Stop the suite after the first failing test")
	cmd.Flags().StringVar(&runRunID, "run-id", "", "Run identifier (default: generated)")
	cmd.Flags().StringVar(&runAgentURL, "agent-url", "", "Agent base URL (overrides suite config)")

	return cmd
}

func runCommandE(cmd *cobra.Command, args []string) error {
	suitePath := args[0]

	if err := validateSuiteOrFail(suitePath); err != nil {
		return err
	}

	suite, err := config.LoadSuite(suitePath)
	if err != nil {
		return err
	}
	cases, err := suite.ResolveTestCases()
	if err != nil {
		return err
	}

	rc := config.NewRunConfig(suite,
		config.WithRunID(runRunID),
		config.WithDatabaseURL(os.Getenv("DATABASE_URL")),
		config.WithOutputPath(runOutputPath),
		config.WithVerbose(runVerbose),
		config.WithDryRun(runDryRun),
	)

	runID := rc.RunID()
	if runID == "" {
		runID = uuid.NewString()
	}

	logger := newLogger(rc.Verbose())
	ctx := context.Background()

	r, cleanup, err := buildRunner(ctx, rc, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("Running suite: %s\n", suite.Name)
	fmt.Printf("Agent: %s\n", agentBaseURL(suite))
	fmt.Printf("Tests: %d\n", len(cases))
	fmt.Printf("Run: %s\n\n", runID)

	concurrency := suite.Concurrency
	if runConcurrency > 0 {
		concurrency = runConcurrency
	}
	outcome := r.RunSuite(ctx, suite.Name, cases, runID, concurrency)

	switch runFormat {
	case "github-comment":
		fmt.Print(reporting.FormatMarkdownComment(outcome))
	case "default":
		fmt.Println()
		reporting.WriteSummaryTable(os.Stdout, outcome)
		reporting.WriteFailureDetails(os.Stdout, outcome)
		if runInterpret {
			fmt.Println()
			fmt.Print(reporting.FormatSummaryReport(outcome))
		}
	default:
		return fmt.Errorf("unknown output format: %s (supported: default, github-comment)", runFormat)
	}

	if runJUnitPath != "" {
		if err := reporting.WriteJUnitXML(outcome, runJUnitPath); err != nil {
			return fmt.Errorf("failed to write JUnit XML: %w", err)
		}
		fmt.Printf("\nJUnit results saved to: %s\n", runJUnitPath)
	}
	if rc.OutputPath() != "" {
		if err := saveOutcome(outcome, rc.OutputPath()); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Printf("\nResults saved to: %s\n", rc.OutputPath())
	}

	if outcome.Digest.Failed > 0 || outcome.Digest.Errors > 0 {
		return &TestFailureError{
			Message: fmt.Sprintf("suite completed with %d failed and %d error(s)",
				outcome.Digest.Failed, outcome.Digest.Errors),
		}
	}
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func agentBaseURL(suite *config.Suite) string {
	if runAgentURL != "" {
		return runAgentURL
	}
	return suite.Agent.BaseURL
}

// buildRunner wires the agent client, classifier, and optional persistence
// for one suite run. The returned cleanup flushes and closes everything.
func buildRunner(ctx context.Context, rc *config.RunConfig, logger *slog.Logger) (*runner.Runner, func(), error) {
	suite := rc.Suite()

	baseURL := agentBaseURL(suite)
	if baseURL == "" {
		return nil, nil, fmt.Errorf("no agent base URL: set agent.base_url in the suite or pass --agent-url")
	}
	var agentOpts []agent.HTTPOption
	if suite.Agent.TurnTimeoutMs > 0 {
		agentOpts = append(agentOpts, agent.WithTurnTimeout(time.Duration(suite.Agent.TurnTimeoutMs)*time.Millisecond))
	}
	client := agent.NewHTTPClient(baseURL, logger, agentOpts...)

	classifierOpts, err := classify.DecodeOptions(suite.Classifier)
	if err != nil {
		return nil, nil, fmt.Errorf("bad classifier config: %w", err)
	}

	opts := []runner.Option{
		runner.WithLogger(logger),
		runner.WithClassifier(classify.New(classifierOpts)),
		runner.WithTurnDelay(suite.TurnDelay(runner.DefaultTurnDelay)),
		runner.WithProgressListener(newConsoleListener(rc.Verbose())),
	}
	if suite.FailFast || runFailFast {
		opts = append(opts, runner.WithFailFast())
	}

	cleanup := func() {}
	if rc.DatabaseURL() != "" && !rc.DryRun() {
		db, err := storage.New(ctx, rc.DatabaseURL(), logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(ctx, storage.Migrations()); err != nil {
			db.Close()
			return nil, nil, err
		}

		writerOpts := []batch.WriterOption{}
		if suite.Batch.Size > 0 {
			writerOpts = append(writerOpts, batch.WithBatchSize(suite.Batch.Size))
		}
		if suite.Batch.FlushIntervalMs > 0 {
			writerOpts = append(writerOpts, batch.WithFlushInterval(time.Duration(suite.Batch.FlushIntervalMs)*time.Millisecond))
		}
		if suite.Batch.Disabled {
			writerOpts = append(writerOpts, batch.WithBatchingDisabled())
		}
		writer := batch.NewWriter(db, logger, writerOpts...)

		opts = append(opts, runner.WithBatchWriter(writer), runner.WithStore(db))
		if suite.Snapshots {
			opts = append(opts, runner.WithSnapshots())
		}
		cleanup = func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := writer.Shutdown(shutdownCtx); err != nil {
				logger.Error("flushing batch writer on shutdown", "error", err)
			}
			db.Close()
		}
	}

	return runner.New(client, opts...), cleanup, nil
}

// consoleListener prints live progress. Suites run tests concurrently, so
// output is serialized with a mutex.
type consoleListener struct {
	mu      sync.Mutex
	verbose bool
}

func newConsoleListener(verbose bool) *consoleListener {
	return &consoleListener{verbose: verbose}
}

func (l *consoleListener) TestStarted(testID string) {
	if !l.verbose {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Printf("▸ %s started\n", testID)
}

func (l *consoleListener) TurnCompleted(testID string, turn int, category string) {
	if !l.verbose {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Printf("  %s turn %d: %s\n", testID, turn, category)
}

func (l *consoleListener) TestFinished(result *models.GoalTestResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	icon := "✓"
	if !result.Passed {
		icon = "✗"
	}
	fmt.Printf("%s %s (%d turns, %v)\n", icon, result.TestID, result.Turns,
		time.Duration(result.DurationMs)*time.Millisecond)
}

func saveOutcome(outcome *models.SuiteOutcome, path string) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
