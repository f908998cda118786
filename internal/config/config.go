// Package config loads suite YAML files and carries per-invocation run
// settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bookedby/convoqa/internal/models"
)

// AgentConfig points at the agent gateway under test.
type AgentConfig struct {
	BaseURL       string `yaml:"base_url"`
	TurnTimeoutMs int    `yaml:"turn_timeout_ms"`
}

// BatchConfig tunes the batch writer.
type BatchConfig struct {
	Size            int  `yaml:"size"`
	FlushIntervalMs int  `yaml:"flush_interval_ms"`
	Disabled        bool `yaml:"disabled"`
}

// Suite is one suite YAML document: which tests to run and how.
type Suite struct {
	Name        string         `yaml:"name"`
	Agent       AgentConfig    `yaml:"agent"`
	Concurrency int            `yaml:"concurrency"`
	FailFast    bool           `yaml:"fail_fast"`
	TurnDelayMs *int           `yaml:"turn_delay_ms"`
	Snapshots   bool           `yaml:"snapshots"`
	Classifier  map[string]any `yaml:"classifier"`
	Batch       BatchConfig    `yaml:"batch"`
	Tests       []string       `yaml:"tests"`

	// baseDir is where the suite file lives; test globs resolve against it.
	baseDir string
}

// LoadSuite reads and parses a suite file.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read suite: %w", err)
	}

	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: parse suite %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("config: suite %s: name is required", path)
	}
	if len(s.Tests) == 0 {
		return nil, fmt.Errorf("config: suite %s: tests is required", path)
	}
	s.baseDir = filepath.Dir(path)
	return &s, nil
}

// TurnDelay returns the configured inter-turn delay, or fallback when the
// suite does not set one.
func (s *Suite) TurnDelay(fallback time.Duration) time.Duration {
	if s.TurnDelayMs == nil {
		return fallback
	}
	return time.Duration(*s.TurnDelayMs) * time.Millisecond
}

// ResolveTestCases expands the suite's test globs and loads every matching
// test case, sorted by file path for stable run order.
func (s *Suite) ResolveTestCases() ([]*models.TestCase, error) {
	var paths []string
	for _, pattern := range s.Tests {
		matches, err := filepath.Glob(filepath.Join(s.baseDir, pattern))
		if err != nil {
			return nil, fmt.Errorf("config: bad test glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if strings.HasSuffix(m, ".yaml") || strings.HasSuffix(m, ".yml") {
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("config: suite %q: no test files matched", s.Name)
	}

	seen := make(map[string]string, len(paths))
	cases := make([]*models.TestCase, 0, len(paths))
	for _, p := range paths {
		tc, err := models.LoadTestCase(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[tc.TestID]; dup {
			return nil, fmt.Errorf("config: test id %q defined in both %s and %s", tc.TestID, prev, p)
		}
		seen[tc.TestID] = p
		cases = append(cases, tc)
	}
	return cases, nil
}

// RunConfig carries the per-invocation settings layered on top of a suite.
type RunConfig struct {
	suite       *Suite
	runID       string
	databaseURL string
	outputPath  string
	verbose     bool
	dryRun      bool
}

// RunOption configures a RunConfig.
type RunOption func(*RunConfig)

// WithRunID pins the run identifier instead of generating one.
func WithRunID(id string) RunOption {
	return func(c *RunConfig) { c.runID = id }
}

// WithDatabaseURL enables persistence against the given DSN.
func WithDatabaseURL(dsn string) RunOption {
	return func(c *RunConfig) { c.databaseURL = dsn }
}

// WithOutputPath writes the suite outcome JSON to a file.
func WithOutputPath(path string) RunOption {
	return func(c *RunConfig) { c.outputPath = path }
}

// WithVerbose enables debug logging.
func WithVerbose(v bool) RunOption {
	return func(c *RunConfig) { c.verbose = v }
}

// WithDryRun skips persistence entirely.
func WithDryRun(v bool) RunOption {
	return func(c *RunConfig) { c.dryRun = v }
}

// NewRunConfig builds a RunConfig for a loaded suite. Options apply in
// order; a nil option is a programming error and panics.
func NewRunConfig(suite *Suite, opts ...RunOption) *RunConfig {
	c := &RunConfig{suite: suite}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RunConfig) Suite() *Suite       { return c.suite }
func (c *RunConfig) RunID() string       { return c.runID }
func (c *RunConfig) DatabaseURL() string { return c.databaseURL }
func (c *RunConfig) OutputPath() string  { return c.outputPath }
func (c *RunConfig) Verbose() bool       { return c.verbose }
func (c *RunConfig) DryRun() bool        { return c.dryRun }
