package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bookedby/convoqa/internal/validation"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <suite.yaml>",
		Short: "Validate a suite file and its test cases against the schemas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateSuiteOrFail(args[0]); err != nil {
				return err
			}
			fmt.Println("✓ suite and test cases are valid")
			return nil
		},
	}
}

// validateSuiteOrFail prints every schema violation and returns an error
// when any were found.
func validateSuiteOrFail(suitePath string) error {
	suiteErrs, testErrs, err := validation.ValidateSuiteFile(suitePath)
	if err != nil {
		return err
	}

	total := len(suiteErrs)
	for _, msg := range suiteErrs {
		fmt.Printf("%s: %s\n", suitePath, msg)
	}

	files := make([]string, 0, len(testErrs))
	for f := range testErrs {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		for _, msg := range testErrs[f] {
			fmt.Printf("%s: %s\n", f, msg)
			total++
		}
	}

	if total > 0 {
		return fmt.Errorf("validation failed with %d error(s)", total)
	}
	return nil
}
