// Package storage provides the PostgreSQL persistence layer for test
// results, transcripts, and experiment bookkeeping.
//
// The engine core only depends on the narrow Store and ExperimentStore
// interfaces; the pgx-backed DB is the production implementation and
// MemoryStore backs tests.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/bookedby/convoqa/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("storage: not found")

// ProgressSnapshot is a per-turn debugging snapshot keyed by
// (run, test, turn).
type ProgressSnapshot struct {
	RunID  string
	TestID string
	Turn   int
	State  *models.ProgressState
}

// Store persists test execution output. CommitBatch satisfies the batch
// writer's committer contract: the whole batch commits in one transaction
// or not at all.
type Store interface {
	CommitBatch(ctx context.Context, ops []models.BatchWriteOperation) error
	SaveGoalTestResult(ctx context.Context, result *models.GoalTestResult) error
	SaveProgressSnapshot(ctx context.Context, snap ProgressSnapshot) error
}

// ExperimentStore persists experiment and variant state.
type ExperimentStore interface {
	CreateVariant(ctx context.Context, v models.Variant) (models.Variant, error)
	GetVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error)
	ListVariantsForTarget(ctx context.Context, targetFile string) ([]models.Variant, error)

	CreateExperiment(ctx context.Context, e models.Experiment) (models.Experiment, error)
	GetExperiment(ctx context.Context, id uuid.UUID) (*models.Experiment, error)
	UpdateExperimentStatus(ctx context.Context, id uuid.UUID, status models.ExperimentStatus) error

	// RecordExperimentRun appends one run row; prior rows are never
	// mutated.
	RecordExperimentRun(ctx context.Context, run models.ExperimentRun) error
	ListExperimentRuns(ctx context.Context, experimentID uuid.UUID) ([]models.ExperimentRun, error)
}
