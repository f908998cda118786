package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookedby/convoqa/internal/models"
)

// MemoryStore is an in-memory Store and ExperimentStore used by tests and
// by dry runs that skip the database entirely.
type MemoryStore struct {
	mu sync.Mutex

	Ops       []models.BatchWriteOperation
	Results   []*models.GoalTestResult
	Snapshots []ProgressSnapshot

	variants    map[uuid.UUID]models.Variant
	experiments map[uuid.UUID]models.Experiment
	runs        []models.ExperimentRun

	// CommitErr, when set, fails the next CommitBatch call and then clears
	// itself. Lets tests exercise the batch writer's requeue path.
	CommitErr error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		variants:    make(map[uuid.UUID]models.Variant),
		experiments: make(map[uuid.UUID]models.Experiment),
	}
}

func (m *MemoryStore) CommitBatch(_ context.Context, ops []models.BatchWriteOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CommitErr != nil {
		err := m.CommitErr
		m.CommitErr = nil
		return err
	}
	m.Ops = append(m.Ops, ops...)
	return nil
}

func (m *MemoryStore) SaveGoalTestResult(_ context.Context, result *models.GoalTestResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Results = append(m.Results, result)
	return nil
}

func (m *MemoryStore) SaveProgressSnapshot(_ context.Context, snap ProgressSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots = append(m.Snapshots, snap)
	return nil
}

func (m *MemoryStore) CreateVariant(_ context.Context, v models.Variant) (models.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.ContentHash = models.HashContent(v.Content)
	m.variants[v.ID] = v
	return v, nil
}

func (m *MemoryStore) GetVariant(_ context.Context, id uuid.UUID) (*models.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.variants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *MemoryStore) ListVariantsForTarget(_ context.Context, targetFile string) ([]models.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Variant
	for _, v := range m.variants {
		if v.TargetFile == targetFile {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateExperiment(_ context.Context, e models.Experiment) (models.Experiment, error) {
	if err := e.Validate(); err != nil {
		return models.Experiment{}, fmt.Errorf("storage: create experiment: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = models.ExperimentDraft
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.experiments[e.ID] = e
	return e, nil
}

func (m *MemoryStore) GetExperiment(_ context.Context, id uuid.UUID) (*models.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.experiments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *MemoryStore) UpdateExperimentStatus(_ context.Context, id uuid.UUID, status models.ExperimentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.experiments[id]
	if !ok {
		return ErrNotFound
	}
	if !e.Status.CanTransition(status) {
		return fmt.Errorf("storage: experiment %s: invalid transition %s -> %s", id, e.Status, status)
	}
	e.Status = status
	m.experiments[id] = e
	return nil
}

func (m *MemoryStore) RecordExperimentRun(_ context.Context, run models.ExperimentRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *MemoryStore) ListExperimentRuns(_ context.Context, experimentID uuid.UUID) ([]models.ExperimentRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ExperimentRun
	for _, r := range m.runs {
		if r.ExperimentID == experimentID {
			out = append(out, r)
		}
	}
	return out, nil
}

var (
	_ Store           = (*MemoryStore)(nil)
	_ ExperimentStore = (*MemoryStore)(nil)
)
