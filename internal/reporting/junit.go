package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bookedby/convoqa/internal/models"
)

// JUnit XML schema types

// JUnitTestSuites is the top-level container.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Time       float64          `xml:"time,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite maps to one suite run.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Name       string          `xml:"name,attr"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Time       float64         `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase maps to one goal test.
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
}

// JUnitFailure represents goals or constraints that did not hold.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// JUnitError represents an unexpected error during test execution.
type JUnitError struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
}

// JUnitProperty is a key-value metadata entry.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// ConvertToJUnit converts a SuiteOutcome to JUnit XML format.
func ConvertToJUnit(outcome *models.SuiteOutcome) *JUnitTestSuites {
	durationSec := float64(outcome.Digest.DurationMs) / 1000.0

	suite := JUnitTestSuite{
		Name:      outcome.SuiteName,
		Tests:     outcome.Digest.TotalTests,
		Failures:  outcome.Digest.Failed,
		Errors:    outcome.Digest.Errors,
		Time:      durationSec,
		Timestamp: outcome.Timestamp.Format(time.RFC3339),
		Properties: []JUnitProperty{
			{Name: "run_id", Value: outcome.RunID},
			{Name: "success_rate", Value: fmt.Sprintf("%.4f", outcome.Digest.SuccessRate)},
		},
	}

	for i := range outcome.Results {
		suite.TestCases = append(suite.TestCases, convertResult(outcome.SuiteName, &outcome.Results[i]))
	}

	return &JUnitTestSuites{
		Tests:      outcome.Digest.TotalTests,
		Failures:   outcome.Digest.Failed,
		Errors:     outcome.Digest.Errors,
		Time:       durationSec,
		TestSuites: []JUnitTestSuite{suite},
	}
}

func convertResult(suiteName string, r *models.GoalTestResult) JUnitTestCase {
	tc := JUnitTestCase{
		Name:      displayName(r),
		Classname: suiteName,
		Time:      float64(r.DurationMs) / 1000.0,
	}

	switch {
	case r.ErrorMsg != "":
		tc.Error = &JUnitError{Message: r.ErrorMsg, Type: "ExecutionError"}
	case !r.Passed:
		tc.Failure = &JUnitFailure{
			Message: fmt.Sprintf("%s: %s", displayName(r), r.Summary),
			Type:    "GoalFailure",
			Body:    formatFailedGoals(r),
		}
	}

	return tc
}

func formatFailedGoals(r *models.GoalTestResult) string {
	var b strings.Builder
	for _, g := range r.Goals {
		if g.Passed {
			continue
		}
		fmt.Fprintf(&b, "[FAIL] %s: %s\n", g.GoalID, g.Detail)
	}
	for _, v := range r.Violations {
		fmt.Fprintf(&b, "[VIOLATION] %s (turn %d): %s\n", v.Constraint, v.Turn, v.Description)
	}
	return b.String()
}

// WriteJUnitXML writes JUnit XML to the specified file path.
func WriteJUnitXML(outcome *models.SuiteOutcome, path string) error {
	suites := ConvertToJUnit(outcome)

	data, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JUnit XML: %w", err)
	}

	output := append([]byte(xml.Header), data...)
	return os.WriteFile(path, output, 0644)
}
