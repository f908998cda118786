package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const suiteYAML = `name: booking-regression
agent:
  base_url: http://localhost:8080
  turn_timeout_ms: 15000
concurrency: 2
turn_delay_ms: 100
snapshots: true
classifier:
  strategy: category
batch:
  size: 25
  flush_interval_ms: 2000
tests:
  - tests/*.yaml
`

func testCaseYAML(id string) string {
	return "id: " + id + `
initial_message: "Hi, I'd like to book an appointment"
persona:
  base:
    name: Dana Reyes
    phone: 555-000-1111
goals:
  - id: collect-phone
    kind: collect_field
    field: phone
    required: true
`
}

func writeSuite(t *testing.T, suite string, tests map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	suitePath := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(suitePath, []byte(suite), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tests"), 0o755))
	for name, content := range tests {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tests", name), []byte(content), 0o644))
	}
	return suitePath
}

func TestLoadSuite(t *testing.T) {
	path := writeSuite(t, suiteYAML, nil)

	s, err := LoadSuite(path)
	require.NoError(t, err)

	assert.Equal(t, "booking-regression", s.Name)
	assert.Equal(t, "http://localhost:8080", s.Agent.BaseURL)
	assert.Equal(t, 15000, s.Agent.TurnTimeoutMs)
	assert.Equal(t, 2, s.Concurrency)
	assert.True(t, s.Snapshots)
	assert.Equal(t, "category", s.Classifier["strategy"])
	assert.Equal(t, 25, s.Batch.Size)
	assert.Equal(t, 100*time.Millisecond, s.TurnDelay(time.Second))
}

func TestLoadSuite_MissingName(t *testing.T) {
	path := writeSuite(t, "tests:\n  - tests/*.yaml\n", nil)

	_, err := LoadSuite(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadSuite_MissingTests(t *testing.T) {
	path := writeSuite(t, "name: empty\n", nil)

	_, err := LoadSuite(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tests is required")
}

func TestLoadSuite_NotFound(t *testing.T) {
	_, err := LoadSuite(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSuite_TurnDelayFallback(t *testing.T) {
	path := writeSuite(t, "name: s\ntests:\n  - tests/*.yaml\n", nil)
	s, err := LoadSuite(path)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, s.TurnDelay(500*time.Millisecond))
}

func TestSuite_ResolveTestCases(t *testing.T) {
	path := writeSuite(t, suiteYAML, map[string]string{
		"b_second.yaml": testCaseYAML("second"),
		"a_first.yaml":  testCaseYAML("first"),
	})
	s, err := LoadSuite(path)
	require.NoError(t, err)

	cases, err := s.ResolveTestCases()
	require.NoError(t, err)
	require.Len(t, cases, 2)

	// Sorted by file path, not discovery order.
	assert.Equal(t, "first", cases[0].TestID)
	assert.Equal(t, "second", cases[1].TestID)
}

func TestSuite_ResolveTestCases_DuplicateID(t *testing.T) {
	path := writeSuite(t, suiteYAML, map[string]string{
		"one.yaml": testCaseYAML("dup"),
		"two.yaml": testCaseYAML("dup"),
	})
	s, err := LoadSuite(path)
	require.NoError(t, err)

	_, err = s.ResolveTestCases()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `test id "dup"`)
}

func TestSuite_ResolveTestCases_NoMatches(t *testing.T) {
	path := writeSuite(t, suiteYAML, nil)
	s, err := LoadSuite(path)
	require.NoError(t, err)

	_, err = s.ResolveTestCases()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no test files matched")
}

func TestNewRunConfig_Defaults(t *testing.T) {
	s := &Suite{Name: "s"}
	c := NewRunConfig(s)

	assert.Same(t, s, c.Suite())
	assert.Empty(t, c.RunID())
	assert.Empty(t, c.DatabaseURL())
	assert.Empty(t, c.OutputPath())
	assert.False(t, c.Verbose())
	assert.False(t, c.DryRun())
}

func TestNewRunConfig_Options(t *testing.T) {
	c := NewRunConfig(&Suite{Name: "s"},
		WithRunID("run-7"),
		WithDatabaseURL("postgres://localhost/convoqa"),
		WithOutputPath("out.json"),
		WithVerbose(true),
		WithDryRun(true),
	)

	assert.Equal(t, "run-7", c.RunID())
	assert.Equal(t, "postgres://localhost/convoqa", c.DatabaseURL())
	assert.Equal(t, "out.json", c.OutputPath())
	assert.True(t, c.Verbose())
	assert.True(t, c.DryRun())
}

func TestNewRunConfig_LastOptionWins(t *testing.T) {
	c := NewRunConfig(&Suite{Name: "s"}, WithRunID("one"), WithRunID("two"))
	assert.Equal(t, "two", c.RunID())
}

func TestNewRunConfig_NilOptionPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRunConfig(&Suite{Name: "s"}, nil)
	})
}
