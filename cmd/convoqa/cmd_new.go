package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bookedby/convoqa/internal/wizard"
)

func newNewCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "new <test-id>",
		Short: "Scaffold a new goal test case",
		Long: `Create a new test case file, plus a starter suite file when none
exists yet.

When running in a terminal (TTY), launches an interactive wizard to
collect the persona and goals. In non-interactive environments (CI,
pipes), a default booking scenario is generated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newCommandE(cmd, args[0], outDir)
		},
	}

	cmd.Flags().StringVarP(&outDir, "dir", "d", ".", "Directory to scaffold into")

	return cmd
}

func newCommandE(cmd *cobra.Command, testID, outDir string) error {
	if err := wizard.ValidateID(testID); err != nil {
		return err
	}

	var draft *wizard.TestCaseDraft
	// Check TTY from the command's input stream, not os.Stdin directly.
	inReader := cmd.InOrStdin()
	isTTY := false
	if f, ok := inReader.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	if isTTY {
		d, err := wizard.RunTestCaseWizard(cmd.InOrStdin(), cmd.OutOrStdout(), testID)
		if err != nil {
			return err
		}
		if d.ID != testID {
			return fmt.Errorf("wizard id %q does not match CLI argument %q", d.ID, testID)
		}
		draft = d
	} else {
		draft = defaultDraft(testID)
	}

	content, err := wizard.GenerateTestCaseYAML(draft)
	if err != nil {
		return fmt.Errorf("failed to generate test case: %w", err)
	}

	testsDir := filepath.Join(outDir, "tests")
	if err := os.MkdirAll(testsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", testsDir, err)
	}

	files := []fileEntry{
		{filepath.Join(testsDir, testID+".yaml"), content},
		{filepath.Join(outDir, "suite.yaml"), defaultSuiteYAML()},
	}
	return writeFiles(cmd, files)
}

func defaultDraft(testID string) *wizard.TestCaseDraft {
	return &wizard.TestCaseDraft{
		ID:             testID,
		InitialMessage: "Hi, I'd like to book an appointment",
		PersonaName:    "Dana Reyes",
		PersonaPhone:   "555-000-1111",
		Fields:         []string{"phone"},
		ConfirmBooking: true,
	}
}

func defaultSuiteYAML() string {
	return `name: booking-suite
agent:
  base_url: http://localhost:8080
  turn_timeout_ms: 15000
concurrency: 4
snapshots: false
batch:
  size: 50
  flush_interval_ms: 5000
tests:
  - tests/*.yaml
`
}

// fileEntry pairs a path with its content for batch writing.
type fileEntry struct {
	path    string
	content string
}

// writeFiles writes each file, skipping any that already exist.
func writeFiles(cmd *cobra.Command, files []fileEntry) error {
	fmt.Fprintln(cmd.OutOrStdout(), "Scaffolding test case:") //nolint:errcheck

	for _, f := range files {
		if _, err := os.Stat(f.path); err == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  skip %s (already exists)\n", f.path) //nolint:errcheck
			continue
		}

		if err := os.WriteFile(f.path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  create %s\n", f.path) //nolint:errcheck
	}

	return nil
}
