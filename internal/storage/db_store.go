package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bookedby/convoqa/internal/models"
)

// CommitBatch writes all queued operations in a single transaction. Either
// every operation lands or none do, so a retried batch never leaves partial
// rows behind.
func (db *DB) CommitBatch(ctx context.Context, ops []models.BatchWriteOperation) error {
	if len(ops) == 0 {
		return nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin batch tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, op := range ops {
		if err := db.applyOp(ctx, tx, op); err != nil {
			return fmt.Errorf("storage: batch op %d (%s): %w", i, op.Kind, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit batch tx: %w", err)
	}

	db.logger.Debug("committed batch", "ops", len(ops))
	return nil
}

func (db *DB) applyOp(ctx context.Context, tx pgx.Tx, op models.BatchWriteOperation) error {
	switch op.Kind {
	case models.OpTestResult:
		r := op.TestResult
		if r == nil {
			return errors.New("missing test_result payload")
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO test_results (run_id, test_id, passed, duration_ms, error_msg, created_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
		`, r.RunID, r.TestID, r.Passed, r.DurationMs, r.ErrorMsg, r.CreatedAt)
		return err

	case models.OpTranscript:
		t := op.Transcript
		if t == nil {
			return errors.New("missing transcript payload")
		}
		blob, err := db.codec.encode(t.Turns)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO transcripts (run_id, test_id, turn_count, turns_zstd)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (run_id, test_id) DO UPDATE
			SET turn_count = EXCLUDED.turn_count, turns_zstd = EXCLUDED.turns_zstd
		`, t.RunID, t.TestID, len(t.Turns), blob)
		return err

	case models.OpFinding:
		f := op.Finding
		if f == nil {
			return errors.New("missing finding payload")
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO findings (run_id, test_id, type, severity, description, turn)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, f.RunID, f.TestID, f.Type, f.Severity, f.Description, f.Turn)
		return err

	case models.OpAPICall:
		c := op.APICall
		if c == nil {
			return errors.New("missing api_call payload")
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO api_calls (run_id, test_id, name, status, duration_ms)
			VALUES ($1, $2, $3, $4, $5)
		`, c.RunID, c.TestID, c.Name, c.Status, c.DurationMs)
		return err

	default:
		return fmt.Errorf("unknown batch op kind %q", op.Kind)
	}
}

// SaveGoalTestResult persists the full structured verdict for one test
// execution, including the final progress state and resolved persona so a
// failing run can be reproduced from its recorded seed.
func (db *DB) SaveGoalTestResult(ctx context.Context, result *models.GoalTestResult) error {
	goals, err := json.Marshal(result.Goals)
	if err != nil {
		return fmt.Errorf("storage: marshal goal results: %w", err)
	}
	violations, err := json.Marshal(result.Violations)
	if err != nil {
		return fmt.Errorf("storage: marshal violations: %w", err)
	}

	var finalState []byte
	if result.FinalState != nil {
		finalState, err = json.Marshal(result.FinalState)
		if err != nil {
			return fmt.Errorf("storage: marshal final state: %w", err)
		}
	}

	var persona []byte
	var seed *int64
	if result.ResolvedPersona != nil {
		persona, err = json.Marshal(result.ResolvedPersona)
		if err != nil {
			return fmt.Errorf("storage: marshal resolved persona: %w", err)
		}
		s := result.ResolvedPersona.Meta.Seed
		seed = &s
	}

	_, err = db.pool.Exec(ctx, `
		INSERT INTO goal_test_results
			(run_id, test_id, display_name, category, passed, goals, violations,
			 summary, turns, duration_ms, started_at, final_state,
			 resolved_persona, persona_seed, error_msg)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULLIF($15, ''))
	`, result.RunID, result.TestID, result.DisplayName, result.Category,
		result.Passed, goals, violations, result.Summary, result.Turns,
		result.DurationMs, result.StartedAt, finalState, persona, seed,
		result.ErrorMsg)
	if err != nil {
		return fmt.Errorf("storage: save goal test result: %w", err)
	}
	return nil
}

// SaveProgressSnapshot records a per-turn progress snapshot for debugging.
// Snapshot writes are best-effort at the call site; this method still
// reports errors so the caller can log them.
func (db *DB) SaveProgressSnapshot(ctx context.Context, snap ProgressSnapshot) error {
	state, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("storage: marshal progress state: %w", err)
	}
	_, err = db.pool.Exec(ctx, `
		INSERT INTO goal_progress_snapshots (run_id, test_id, turn, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, test_id, turn) DO UPDATE SET state = EXCLUDED.state
	`, snap.RunID, snap.TestID, snap.Turn, state)
	if err != nil {
		return fmt.Errorf("storage: save progress snapshot: %w", err)
	}
	return nil
}

// LoadTranscript fetches and decompresses the transcript for one test
// execution.
func (db *DB) LoadTranscript(ctx context.Context, runID, testID string) ([]models.ConversationTurn, error) {
	var blob []byte
	err := db.pool.QueryRow(ctx, `
		SELECT turns_zstd FROM transcripts WHERE run_id = $1 AND test_id = $2
	`, runID, testID).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: load transcript: %w", err)
	}
	return db.codec.decode(blob)
}
