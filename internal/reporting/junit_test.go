package reporting

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookedby/convoqa/internal/models"
)

func newTestOutcome() *models.SuiteOutcome {
	return &models.SuiteOutcome{
		RunID:     "run-1",
		SuiteName: "booking-regression",
		Timestamp: time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC),
		Digest: models.SuiteDigest{
			TotalTests:  3,
			Passed:      1,
			Failed:      1,
			Errors:      1,
			SuccessRate: 0.33,
			DurationMs:  3500,
		},
		Results: []models.GoalTestResult{
			{
				TestID:      "book-new-patient",
				DisplayName: "Book new patient",
				Passed:      true,
				Turns:       6,
				DurationMs:  1000,
				Goals: []models.GoalResult{
					{GoalID: "collect-phone", Passed: true},
					{GoalID: "confirm-booking", Passed: true},
				},
				Summary: "PASS: all goals achieved",
			},
			{
				TestID:      "book-two-children",
				DisplayName: "Book two children",
				Passed:      false,
				Turns:       12,
				DurationMs:  2000,
				Goals: []models.GoalResult{
					{GoalID: "collect-phone", Passed: true},
					{GoalID: "confirm-booking", Passed: false, Detail: "no confirmation before conversation ended"},
				},
				Violations: []models.ConstraintViolation{
					{Constraint: "no_transfer", Turn: 9, Description: "conversation was transferred to a human"},
				},
				Summary: "FAIL: 1 of 2 goals failed",
			},
			{
				TestID:   "book-insurance",
				Passed:   false,
				Turns:    0,
				ErrorMsg: "session open failed: connection refused",
				Goals: []models.GoalResult{
					{GoalID: "collect-insurance", Passed: false},
				},
				Summary: "FAIL: execution error",
			},
		},
	}
}

func TestConvertToJUnit(t *testing.T) {
	suites := ConvertToJUnit(newTestOutcome())

	assert.Equal(t, 3, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)
	assert.InDelta(t, 3.5, suites.Time, 0.001)
	require.Len(t, suites.TestSuites, 1)

	suite := suites.TestSuites[0]
	assert.Equal(t, "booking-regression", suite.Name)
	assert.Equal(t, "2026-06-15T12:00:00Z", suite.Timestamp)
	require.Len(t, suite.TestCases, 3)

	passed := suite.TestCases[0]
	assert.Equal(t, "Book new patient", passed.Name)
	assert.Equal(t, "booking-regression", passed.Classname)
	assert.Nil(t, passed.Failure)
	assert.Nil(t, passed.Error)

	failed := suite.TestCases[1]
	require.NotNil(t, failed.Failure)
	assert.Equal(t, "GoalFailure", failed.Failure.Type)
	assert.Contains(t, failed.Failure.Body, "[FAIL] confirm-booking")
	assert.Contains(t, failed.Failure.Body, "[VIOLATION] no_transfer (turn 9)")

	errored := suite.TestCases[2]
	assert.Equal(t, "book-insurance", errored.Name)
	require.NotNil(t, errored.Error)
	assert.Equal(t, "ExecutionError", errored.Error.Type)
	assert.Contains(t, errored.Error.Message, "connection refused")
}

func TestConvertToJUnit_Properties(t *testing.T) {
	suites := ConvertToJUnit(newTestOutcome())

	props := make(map[string]string)
	for _, p := range suites.TestSuites[0].Properties {
		props[p.Name] = p.Value
	}
	assert.Equal(t, "run-1", props["run_id"])
	assert.Equal(t, "0.3300", props["success_rate"])
}

func TestWriteJUnitXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xml")
	require.NoError(t, WriteJUnitXML(newTestOutcome(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), xml.Header))

	var parsed JUnitTestSuites
	require.NoError(t, xml.Unmarshal(data, &parsed))
	assert.Equal(t, 3, parsed.Tests)
	require.Len(t, parsed.TestSuites, 1)
	assert.Len(t, parsed.TestSuites[0].TestCases, 3)
}
