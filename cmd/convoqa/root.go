package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convoqa",
		Short: "convoqa - goal-oriented conversation testing for booking agents",
		Long: `convoqa drives multi-turn conversations against an appointment-booking
agent, playing a synthetic caller with declared goals. It tracks which
goals the agent achieves, persists transcripts and findings, and runs
A/B experiments over prompt and config variants.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// .env is optional; environment variables win over file entries.
		_ = godotenv.Load()
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	// Add subcommands
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newNewCommand())
	cmd.AddCommand(newExperimentCommand())
	cmd.AddCommand(newMigrateCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
