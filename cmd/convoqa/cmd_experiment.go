package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bookedby/convoqa/internal/config"
	"github.com/bookedby/convoqa/internal/experiment"
	"github.com/bookedby/convoqa/internal/models"
	"github.com/bookedby/convoqa/internal/statistics"
	"github.com/bookedby/convoqa/internal/storage"
)

func newExperimentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Create and run A/B experiments over prompt and config variants",
	}

	cmd.AddCommand(newVariantCommand())
	cmd.AddCommand(newExperimentCreateCommand())
	cmd.AddCommand(newExperimentStatusCommands()...)
	cmd.AddCommand(newExperimentRunCommand())
	cmd.AddCommand(newExperimentAnalyzeCommand())

	return cmd
}

// openStore connects to the database named by DATABASE_URL and applies
// pending migrations.
func openStore(ctx context.Context, logger *slog.Logger) (*storage.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set; experiments require a database")
	}
	db, err := storage.New(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, storage.Migrations()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func newVariantCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variant",
		Short: "Manage variants",
	}

	var (
		name        string
		targetFile  string
		contentPath string
		variantType string
		baseline    bool
		createdBy   string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a new variant from a content file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger(false)

			content, err := os.ReadFile(contentPath)
			if err != nil {
				return fmt.Errorf("reading variant content: %w", err)
			}

			db, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := db.CreateVariant(ctx, models.Variant{
				Name:       name,
				Type:       models.VariantType(variantType),
				TargetFile: targetFile,
				Content:    string(content),
				IsBaseline: baseline,
				CreatedBy:  createdBy,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created variant %s (%s)\n", v.ID, v.Name)
			return nil
		},
	}
	create.Flags().StringVar(&name, "name", "", "Variant name")
	create.Flags().StringVar(&targetFile, "target", "", "File the variant replaces, relative to the agent root")
	create.Flags().StringVar(&contentPath, "file", "", "Path to the variant content")
	create.Flags().StringVar(&variantType, "type", string(models.VariantTypePrompt), "Variant type: prompt, tool, config")
	create.Flags().BoolVar(&baseline, "baseline", false, "Mark this variant as the baseline")
	create.Flags().StringVar(&createdBy, "created-by", "", "Author attribution")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("target")
	_ = create.MarkFlagRequired("file")

	var listTarget string
	list := &cobra.Command{
		Use:   "list",
		Short: "List variants for a target file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openStore(ctx, newLogger(false))
			if err != nil {
				return err
			}
			defer db.Close()

			variants, err := db.ListVariantsForTarget(ctx, listTarget)
			if err != nil {
				return err
			}
			for i := range variants {
				v := &variants[i]
				marker := " "
				if v.IsBaseline {
					marker = "*"
				}
				fmt.Printf("%s %s  %-20s %s\n", marker, v.ID, v.Name, experiment.DescribeVariant(v))
			}
			return nil
		},
	}
	list.Flags().StringVar(&listTarget, "target", "", "Target file to list variants for")
	_ = list.MarkFlagRequired("target")

	cmd.AddCommand(create, list)
	return cmd
}

func newExperimentCreateCommand() *cobra.Command {
	var (
		hypothesis   string
		control      string
		treatments   []string
		testIDs      []string
		minSamples   int
		maxSamples   int
		significance float64
		assignment   string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an experiment in draft status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := openStore(ctx, newLogger(false))
			if err != nil {
				return err
			}
			defer db.Close()

			var arms []models.ExperimentArm
			if control != "" {
				id, err := uuid.Parse(control)
				if err != nil {
					return fmt.Errorf("bad control variant id: %w", err)
				}
				arms = append(arms, models.ExperimentArm{VariantID: id, Role: models.RoleControl, Weight: 1})
			}
			for _, t := range treatments {
				id, err := uuid.Parse(t)
				if err != nil {
					return fmt.Errorf("bad treatment variant id %q: %w", t, err)
				}
				arms = append(arms, models.ExperimentArm{VariantID: id, Role: models.RoleTreatment, Weight: 1})
			}

			e, err := db.CreateExperiment(ctx, models.Experiment{
				Hypothesis:        hypothesis,
				Status:            models.ExperimentDraft,
				Arms:              arms,
				TestIDs:           testIDs,
				MinSamples:        minSamples,
				MaxSamples:        maxSamples,
				SignificanceLevel: significance,
				Assignment:        models.AssignmentPolicy(assignment),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created experiment %s (draft)\n", e.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&hypothesis, "hypothesis", "", "What this experiment is testing")
	cmd.Flags().StringVar(&control, "control", "", "Control arm variant id")
	cmd.Flags().StringArrayVar(&treatments, "treatment", nil, "Treatment arm variant id (repeatable)")
	cmd.Flags().StringArrayVar(&testIDs, "test", nil, "Test id in scope (repeatable)")
	cmd.Flags().IntVar(&minSamples, "min-samples", 10, "Minimum samples per arm before analysis is meaningful")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 100, "Maximum samples per arm")
	cmd.Flags().Float64Var(&significance, "significance", 0.95, "Confidence level for analysis")
	cmd.Flags().StringVar(&assignment, "assignment", string(models.AssignDeterministic), "Assignment policy: deterministic, weighted")
	_ = cmd.MarkFlagRequired("hypothesis")
	_ = cmd.MarkFlagRequired("treatment")
	_ = cmd.MarkFlagRequired("test")

	return cmd
}

// newExperimentStatusCommands builds one subcommand per lifecycle
// transition. Illegal transitions are rejected by the store.
func newExperimentStatusCommands() []*cobra.Command {
	transitions := []struct {
		use    string
		short  string
		status models.ExperimentStatus
	}{
		{"start <id>", "Move an experiment to running", models.ExperimentRunning},
		{"pause <id>", "Pause a running experiment", models.ExperimentPaused},
		{"resume <id>", "Resume a paused experiment", models.ExperimentRunning},
		{"complete <id>", "Mark an experiment completed", models.ExperimentCompleted},
		{"abort <id>", "Abort an experiment", models.ExperimentAborted},
	}

	cmds := make([]*cobra.Command, 0, len(transitions))
	for _, tr := range transitions {
		cmds = append(cmds, &cobra.Command{
			Use:   tr.use,
			Short: tr.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("bad experiment id: %w", err)
				}
				db, err := openStore(ctx, newLogger(false))
				if err != nil {
					return err
				}
				defer db.Close()

				if err := db.UpdateExperimentStatus(ctx, id, tr.status); err != nil {
					return err
				}
				fmt.Printf("Experiment %s is now %s\n", id, tr.status)
				return nil
			},
		})
	}
	return cmds
}

func newExperimentRunCommand() *cobra.Command {
	var (
		samples int
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "run <experiment-id> <suite.yaml>",
		Short: "Execute an experiment's tests with variant assignment",
		Long: `Run every test case in the experiment's scope. For each execution a
variant is selected, applied to its target file, and rolled back when the
test finishes, whether it passed, failed, or crashed.

Tests under experiment run sequentially so that variant swaps on shared
files never overlap.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			experimentID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("bad experiment id: %w", err)
			}
			suitePath := args[1]

			logger := newLogger(verbose)
			db, err := openStore(ctx, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			exp, err := db.GetExperiment(ctx, experimentID)
			if err != nil {
				return err
			}
			if exp.Status == models.ExperimentDraft {
				if err := db.UpdateExperimentStatus(ctx, experimentID, models.ExperimentRunning); err != nil {
					return err
				}
				exp.Status = models.ExperimentRunning
			}
			if exp.Status != models.ExperimentRunning {
				return fmt.Errorf("experiment %s is %s, not running", experimentID, exp.Status)
			}

			suite, err := config.LoadSuite(suitePath)
			if err != nil {
				return err
			}
			cases, err := suite.ResolveTestCases()
			if err != nil {
				return err
			}
			inScope := make(map[string]bool, len(exp.TestIDs))
			for _, id := range exp.TestIDs {
				inScope[id] = true
			}

			rc := config.NewRunConfig(suite,
				config.WithDatabaseURL(os.Getenv("DATABASE_URL")),
				config.WithVerbose(verbose),
			)
			r, cleanup, err := buildRunner(ctx, rc, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			svc := experiment.NewService(db, experiment.WithLogger(logger))

			runID := uuid.NewString()
			fmt.Printf("Running experiment %s (%d sample(s) per test)\n\n", experimentID, samples)

			failed := 0
			executed := 0
			for s := 0; s < samples; s++ {
				for _, tc := range cases {
					if !inScope[tc.TestID] {
						continue
					}
					result, err := r.RunTestWithExperiment(ctx, tc, runID, experimentID, svc)
					if err != nil {
						return err
					}
					executed++
					icon := "✓"
					if !result.Passed {
						icon = "✗"
						failed++
					}
					fmt.Printf("%s %s (%d turns, %v)\n", icon, tc.TestID, result.Turns,
						time.Duration(result.DurationMs)*time.Millisecond)
				}
			}

			if executed == 0 {
				return fmt.Errorf("no suite test cases match the experiment's test ids")
			}
			fmt.Printf("\n%d executed, %d failed\n", executed, failed)
			if failed > 0 {
				return &TestFailureError{
					Message: fmt.Sprintf("experiment run completed with %d failed test(s)", failed),
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&samples, "samples", 1, "Times to run each in-scope test")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	return cmd
}

func newExperimentAnalyzeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <experiment-id>",
		Short: "Compare control and treatment arms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			experimentID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("bad experiment id: %w", err)
			}
			db, err := openStore(ctx, newLogger(false))
			if err != nil {
				return err
			}
			defer db.Close()

			exp, err := db.GetExperiment(ctx, experimentID)
			if err != nil {
				return err
			}
			runs, err := db.ListExperimentRuns(ctx, experimentID)
			if err != nil {
				return err
			}

			analysis, err := statistics.Analyze(exp, runs)
			if err != nil {
				return err
			}

			fmt.Printf("Hypothesis: %s\n", exp.Hypothesis)
			fmt.Printf("Status:     %s\n\n", exp.Status)
			printArm(analysis.Control)
			printArm(analysis.Treatment)
			fmt.Printf("\nGoal completion delta: %.4f  CI[%.4f, %.4f] @ %.0f%%\n",
				analysis.Delta.Mean, analysis.Delta.Lower, analysis.Delta.Upper,
				analysis.Delta.ConfidenceLevel*100)
			fmt.Printf("Normalized pass-rate gain: %.4f\n", analysis.Gain)
			if !analysis.Ready {
				fmt.Printf("\nNot enough samples yet (min %d per arm).\n", exp.MinSamples)
				return nil
			}
			if analysis.Significant {
				fmt.Println("\nThe difference between arms is statistically significant.")
			} else {
				fmt.Println("\nNo significant difference between arms.")
			}
			return nil
		},
	}
}

func printArm(arm *statistics.ArmSummary) {
	fmt.Printf("%-9s  samples=%-4d pass_rate=%.2f  goal_completion=%.2f  mean_turns=%.1f  errors=%d\n",
		arm.Role, arm.Samples, arm.PassRate, arm.GoalCompletionRate, arm.MeanTurns, arm.Errors)
}
