package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bookedby/convoqa/internal/models"
)

// CreateVariant inserts a new immutable variant. The content hash is
// computed here so callers cannot store a variant whose hash disagrees with
// its content.
func (db *DB) CreateVariant(ctx context.Context, v models.Variant) (models.Variant, error) {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.ContentHash = models.HashContent(v.Content)

	_, err := db.pool.Exec(ctx, `
		INSERT INTO variants
			(id, name, type, target_file, content, content_hash, source_fix_id,
			 is_baseline, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)
	`, v.ID, v.Name, v.Type, v.TargetFile, v.Content, v.ContentHash,
		v.SourceFixID, v.IsBaseline, v.CreatedBy, v.CreatedAt)
	if err != nil {
		return models.Variant{}, fmt.Errorf("storage: create variant: %w", err)
	}
	return v, nil
}

// GetVariant fetches a variant by ID.
func (db *DB) GetVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	row := db.pool.QueryRow(ctx, `
		SELECT id, name, type, target_file, content, content_hash,
		       source_fix_id, is_baseline, COALESCE(created_by, ''), created_at
		FROM variants WHERE id = $1
	`, id)

	v, err := scanVariant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get variant: %w", err)
	}
	return v, nil
}

// ListVariantsForTarget returns every variant targeting a file, newest
// first.
func (db *DB) ListVariantsForTarget(ctx context.Context, targetFile string) ([]models.Variant, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, name, type, target_file, content, content_hash,
		       source_fix_id, is_baseline, COALESCE(created_by, ''), created_at
		FROM variants WHERE target_file = $1
		ORDER BY created_at DESC
	`, targetFile)
	if err != nil {
		return nil, fmt.Errorf("storage: list variants: %w", err)
	}
	defer rows.Close()

	var variants []models.Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan variant: %w", err)
		}
		variants = append(variants, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate variants: %w", err)
	}
	return variants, nil
}

func scanVariant(row pgx.Row) (*models.Variant, error) {
	var v models.Variant
	err := row.Scan(&v.ID, &v.Name, &v.Type, &v.TargetFile, &v.Content,
		&v.ContentHash, &v.SourceFixID, &v.IsBaseline, &v.CreatedBy,
		&v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateExperiment inserts a new experiment in draft status unless the
// caller set one explicitly.
func (db *DB) CreateExperiment(ctx context.Context, e models.Experiment) (models.Experiment, error) {
	if err := e.Validate(); err != nil {
		return models.Experiment{}, fmt.Errorf("storage: create experiment: %w", err)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = models.ExperimentDraft
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	arms, err := json.Marshal(e.Arms)
	if err != nil {
		return models.Experiment{}, fmt.Errorf("storage: marshal arms: %w", err)
	}
	testIDs, err := json.Marshal(e.TestIDs)
	if err != nil {
		return models.Experiment{}, fmt.Errorf("storage: marshal test IDs: %w", err)
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO experiments
			(id, hypothesis, status, arms, test_ids, min_samples, max_samples,
			 significance_level, assignment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.Hypothesis, e.Status, arms, testIDs, e.MinSamples,
		e.MaxSamples, e.SignificanceLevel, e.Assignment, e.CreatedAt)
	if err != nil {
		return models.Experiment{}, fmt.Errorf("storage: create experiment: %w", err)
	}
	return e, nil
}

// GetExperiment fetches an experiment by ID.
func (db *DB) GetExperiment(ctx context.Context, id uuid.UUID) (*models.Experiment, error) {
	var (
		e       models.Experiment
		arms    []byte
		testIDs []byte
	)
	err := db.pool.QueryRow(ctx, `
		SELECT id, hypothesis, status, arms, test_ids, min_samples,
		       max_samples, significance_level, assignment, created_at
		FROM experiments WHERE id = $1
	`, id).Scan(&e.ID, &e.Hypothesis, &e.Status, &arms, &testIDs,
		&e.MinSamples, &e.MaxSamples, &e.SignificanceLevel, &e.Assignment,
		&e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get experiment: %w", err)
	}

	if err := json.Unmarshal(arms, &e.Arms); err != nil {
		return nil, fmt.Errorf("storage: unmarshal arms: %w", err)
	}
	if err := json.Unmarshal(testIDs, &e.TestIDs); err != nil {
		return nil, fmt.Errorf("storage: unmarshal test IDs: %w", err)
	}
	return &e, nil
}

// UpdateExperimentStatus moves an experiment through its lifecycle,
// rejecting transitions the state machine does not allow.
func (db *DB) UpdateExperimentStatus(ctx context.Context, id uuid.UUID, status models.ExperimentStatus) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin status tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current models.ExperimentStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM experiments WHERE id = $1 FOR UPDATE
	`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("storage: load experiment status: %w", err)
	}

	if !current.CanTransition(status) {
		return fmt.Errorf("storage: experiment %s: invalid transition %s -> %s", id, current, status)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE experiments SET status = $2 WHERE id = $1
	`, id, status); err != nil {
		return fmt.Errorf("storage: update experiment status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit status tx: %w", err)
	}
	return nil
}

// RecordExperimentRun appends one run row. Rows are never updated or
// deleted after insert.
func (db *DB) RecordExperimentRun(ctx context.Context, run models.ExperimentRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var metrics []byte
	if len(run.Metrics) > 0 {
		var err error
		metrics, err = json.Marshal(run.Metrics)
		if err != nil {
			return fmt.Errorf("storage: marshal run metrics: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx, `
		INSERT INTO experiment_runs
			(id, experiment_id, run_id, test_id, variant_id, role, passed,
			 turns, duration_ms, goal_completion_rate, violation_count,
			 error_occurred, metrics, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, run.ID, run.ExperimentID, run.RunID, run.TestID, run.VariantID,
		run.Role, run.Passed, run.Turns, run.DurationMs,
		run.GoalCompletionRate, run.ViolationCount, run.ErrorOccurred,
		metrics, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("storage: record experiment run: %w", err)
	}
	return nil
}

// ListExperimentRuns returns every run row for an experiment in insertion
// order.
func (db *DB) ListExperimentRuns(ctx context.Context, experimentID uuid.UUID) ([]models.ExperimentRun, error) {
	rows, err := db.pool.Query(ctx, `
		SELECT id, experiment_id, run_id, test_id, variant_id, role, passed,
		       turns, duration_ms, goal_completion_rate, violation_count,
		       error_occurred, metrics, created_at
		FROM experiment_runs WHERE experiment_id = $1
		ORDER BY created_at, id
	`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("storage: list experiment runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ExperimentRun
	for rows.Next() {
		var (
			r       models.ExperimentRun
			metrics []byte
		)
		if err := rows.Scan(&r.ID, &r.ExperimentID, &r.RunID, &r.TestID,
			&r.VariantID, &r.Role, &r.Passed, &r.Turns, &r.DurationMs,
			&r.GoalCompletionRate, &r.ViolationCount, &r.ErrorOccurred,
			&metrics, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: scan experiment run: %w", err)
		}
		if len(metrics) > 0 {
			if err := json.Unmarshal(metrics, &r.Metrics); err != nil {
				return nil, fmt.Errorf("storage: unmarshal run metrics: %w", err)
			}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate experiment runs: %w", err)
	}
	return runs, nil
}
