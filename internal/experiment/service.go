// Package experiment stores content variants, assigns them to test
// executions, and swaps them in and out of the live target files the agent
// under test reads its configuration from.
package experiment

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookedby/convoqa/internal/models"
	"github.com/bookedby/convoqa/internal/storage"
)

// savedContent is the pre-apply state of a target file, captured so
// Rollback can restore it byte for byte.
type savedContent struct {
	data    []byte
	mode    os.FileMode
	existed bool
}

// targetState serializes experiment runs that share a target file. The
// lock is held from ApplyVariant until the matching Rollback, so two runs
// can never interleave writes to the same file.
type targetState struct {
	lock    sync.Mutex
	saved   *savedContent
	applied uuid.UUID
	dirty   bool // guarded by Service.mu, not lock
}

// Service is the variant/experiment repository plus the apply/rollback
// machinery over live target files.
type Service struct {
	store  storage.ExperimentStore
	root   string
	logger *slog.Logger

	mu      sync.Mutex
	targets map[string]*targetState
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRoot sets the directory target file paths are resolved against.
func WithRoot(root string) ServiceOption {
	return func(s *Service) { s.root = root }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a Service backed by the given store.
func NewService(store storage.ExperimentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		root:    ".",
		logger:  slog.Default(),
		targets: make(map[string]*targetState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) target(file string) *targetState {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[file]
	if !ok {
		t = &targetState{}
		s.targets[file] = t
	}
	return t
}

// SelectVariant assigns a variant to one (experiment, test) pairing
// according to the experiment's assignment policy. Both policies are
// stable: the same pairing always yields the same selection.
func (s *Service) SelectVariant(ctx context.Context, experimentID uuid.UUID, testID string) (models.VariantSelection, error) {
	exp, err := s.store.GetExperiment(ctx, experimentID)
	if err != nil {
		return models.VariantSelection{}, fmt.Errorf("experiment: load %s: %w", experimentID, err)
	}
	if len(exp.Arms) == 0 {
		return models.VariantSelection{}, fmt.Errorf("experiment: %s has no arms", experimentID)
	}

	var arm models.ExperimentArm
	switch exp.Assignment {
	case models.AssignWeighted:
		arm = pickWeighted(exp.Arms, experimentID, testID)
	default:
		arm = exp.Arms[pairingHash(experimentID, testID)%uint64(len(exp.Arms))]
	}

	variant, err := s.store.GetVariant(ctx, arm.VariantID)
	if err != nil {
		return models.VariantSelection{}, fmt.Errorf("experiment: load variant %s: %w", arm.VariantID, err)
	}

	return models.VariantSelection{
		VariantID:  variant.ID,
		Role:       arm.Role,
		TargetFile: variant.TargetFile,
	}, nil
}

// pairingHash collapses an (experiment, test) pairing to a uniform uint64.
func pairingHash(experimentID uuid.UUID, testID string) uint64 {
	h := sha256.New()
	h.Write(experimentID[:])
	h.Write([]byte(testID))
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// pickWeighted samples an arm proportionally to its weight, using the
// pairing hash as the uniform draw so the same pairing lands on the same
// arm within a sampling pass.
func pickWeighted(arms []models.ExperimentArm, experimentID uuid.UUID, testID string) models.ExperimentArm {
	total := 0.0
	for _, a := range arms {
		total += a.Weight
	}
	if total <= 0 {
		return arms[pairingHash(experimentID, testID)%uint64(len(arms))]
	}

	draw := float64(pairingHash(experimentID, testID)) / float64(^uint64(0)) * total
	acc := 0.0
	for _, a := range arms {
		acc += a.Weight
		if draw < acc {
			return a
		}
	}
	return arms[len(arms)-1]
}

// ApplyVariant replaces the target file's content with the variant's
// content. It takes the target's lock and holds it until Rollback, so
// concurrent runs against the same file execute one at a time. A target
// left dirty by a failed rollback refuses further applies until cleared.
func (s *Service) ApplyVariant(ctx context.Context, variantID uuid.UUID) error {
	variant, err := s.store.GetVariant(ctx, variantID)
	if err != nil {
		return fmt.Errorf("experiment: load variant %s: %w", variantID, err)
	}

	t := s.target(variant.TargetFile)
	t.lock.Lock()

	s.mu.Lock()
	dirty := t.dirty
	s.mu.Unlock()
	if dirty {
		t.lock.Unlock()
		return fmt.Errorf("experiment: target %s is dirty after a failed rollback; clear it before running experiments against it", variant.TargetFile)
	}

	path := filepath.Join(s.root, variant.TargetFile)
	saved := &savedContent{mode: 0o644}
	if data, err := os.ReadFile(path); err == nil {
		saved.data = data
		saved.existed = true
		if info, statErr := os.Stat(path); statErr == nil {
			saved.mode = info.Mode().Perm()
		}
	} else if !os.IsNotExist(err) {
		t.lock.Unlock()
		return fmt.Errorf("experiment: read target %s: %w", variant.TargetFile, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.lock.Unlock()
		return fmt.Errorf("experiment: create target dir for %s: %w", variant.TargetFile, err)
	}
	if err := os.WriteFile(path, []byte(variant.Content), saved.mode); err != nil {
		t.lock.Unlock()
		return fmt.Errorf("experiment: write variant %s to %s: %w", variantID, variant.TargetFile, err)
	}

	t.saved = saved
	t.applied = variantID
	s.logger.Info("applied variant",
		"variant_id", variantID,
		"variant", variant.Name,
		"target", variant.TargetFile)
	return nil
}

// Rollback restores the content that was live before the most recent
// ApplyVariant against the target file and releases the target's lock. A
// failed restore marks the target dirty; later applies are refused until
// ClearDirty.
func (s *Service) Rollback(targetFile string) error {
	t := s.target(targetFile)
	if t.saved == nil {
		return fmt.Errorf("experiment: rollback %s: no variant applied", targetFile)
	}
	saved := t.saved
	t.saved = nil
	applied := t.applied
	t.applied = uuid.Nil
	defer t.lock.Unlock()

	path := filepath.Join(s.root, targetFile)
	var err error
	if saved.existed {
		err = os.WriteFile(path, saved.data, saved.mode)
	} else {
		err = os.Remove(path)
	}
	if err != nil {
		s.mu.Lock()
		t.dirty = true
		s.mu.Unlock()
		s.logger.Error("rollback failed; target left dirty",
			"target", targetFile,
			"variant_id", applied,
			"error", err)
		return fmt.Errorf("experiment: rollback %s: %w", targetFile, err)
	}

	s.logger.Info("rolled back target", "target", targetFile, "variant_id", applied)
	return nil
}

// Dirty reports whether a target file was left in an unknown state by a
// failed rollback.
func (s *Service) Dirty(targetFile string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[targetFile]
	return ok && t.dirty
}

// ClearDirty marks a target file usable again after manual repair.
func (s *Service) ClearDirty(targetFile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.targets[targetFile]; ok {
		t.dirty = false
	}
}

// RecordTestResult appends the ExperimentRun row for one test execution
// under experiment. Rows are append-only; failed runs are recorded too.
func (s *Service) RecordTestResult(ctx context.Context, experimentID uuid.UUID, sel models.VariantSelection, result *models.GoalTestResult) error {
	run := models.ExperimentRun{
		ID:                 uuid.New(),
		ExperimentID:       experimentID,
		RunID:              result.RunID,
		TestID:             result.TestID,
		VariantID:          sel.VariantID,
		Role:               sel.Role,
		Passed:             result.Passed,
		Turns:              result.Turns,
		DurationMs:         result.DurationMs,
		GoalCompletionRate: result.GoalCompletionRate(),
		ViolationCount:     len(result.Violations),
		ErrorOccurred:      result.ErrorMsg != "",
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.store.RecordExperimentRun(ctx, run); err != nil {
		return fmt.Errorf("experiment: record run for %s/%s: %w", result.RunID, result.TestID, err)
	}
	return nil
}
