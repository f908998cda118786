package experiment

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookedby/convoqa/internal/models"
	"github.com/bookedby/convoqa/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryStore, string) {
	t.Helper()
	store := storage.NewMemoryStore()
	root := t.TempDir()
	svc := NewService(store,
		WithRoot(root),
		WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))))
	return svc, store, root
}

func mustCreateVariant(t *testing.T, store *storage.MemoryStore, target, content string) models.Variant {
	t.Helper()
	v, err := store.CreateVariant(context.Background(), models.Variant{
		Name:       "v-" + content[:min(len(content), 8)],
		Type:       models.VariantTypePrompt,
		TargetFile: target,
		Content:    content,
	})
	require.NoError(t, err)
	return v
}

func TestApplyThenRollbackRestoresOriginalBytes(t *testing.T) {
	svc, store, root := newTestService(t)

	original := []byte("original prompt\nwith two lines\n")
	path := filepath.Join(root, "prompts/system.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, original, 0o644))

	v := mustCreateVariant(t, store, "prompts/system.txt", "replacement prompt")

	require.NoError(t, svc.ApplyVariant(context.Background(), v.ID))

	applied, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "replacement prompt", string(applied))

	require.NoError(t, svc.Rollback("prompts/system.txt"))

	restored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, restored)
}

func TestRollbackRemovesFileThatDidNotExist(t *testing.T) {
	svc, store, root := newTestService(t)

	v := mustCreateVariant(t, store, "prompts/new.txt", "brand new content")
	require.NoError(t, svc.ApplyVariant(context.Background(), v.ID))
	require.NoError(t, svc.Rollback("prompts/new.txt"))

	_, err := os.Stat(filepath.Join(root, "prompts/new.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestRollbackWithoutApplyFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	require.Error(t, svc.Rollback("prompts/never-applied.txt"))
}

func TestApplyUnknownVariantFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.ApplyVariant(context.Background(), uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestApplySerializesPerTargetFile(t *testing.T) {
	svc, store, root := newTestService(t)
	ctx := context.Background()

	path := filepath.Join(root, "prompts/shared.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("base"), 0o644))

	v1 := mustCreateVariant(t, store, "prompts/shared.txt", "variant one")
	v2 := mustCreateVariant(t, store, "prompts/shared.txt", "variant two")

	require.NoError(t, svc.ApplyVariant(ctx, v1.ID))

	// A second apply against the same file must wait for rollback.
	applied := make(chan error, 1)
	go func() {
		applied <- svc.ApplyVariant(ctx, v2.ID)
	}()

	select {
	case <-applied:
		t.Fatal("second apply completed while first was still live")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, svc.Rollback("prompts/shared.txt"))
	require.NoError(t, <-applied)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "variant two", string(content))

	require.NoError(t, svc.Rollback("prompts/shared.txt"))
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "base", string(content))
}

// breakTarget replaces an applied target file with a directory so the
// restore write fails and the rollback leaves the target dirty.
func breakTarget(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(path, 0o755))
}

func TestDirtyTargetRefusesFurtherApplies(t *testing.T) {
	svc, store, root := newTestService(t)
	ctx := context.Background()

	// The target must exist before apply so rollback restores bytes
	// instead of removing the file.
	path := filepath.Join(root, "prompts/fragile.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("baseline\n"), 0o644))

	v := mustCreateVariant(t, store, "prompts/fragile.txt", "variant content")
	require.NoError(t, svc.ApplyVariant(ctx, v.ID))

	breakTarget(t, path)

	require.Error(t, svc.Rollback("prompts/fragile.txt"))
	require.True(t, svc.Dirty("prompts/fragile.txt"))

	err := svc.ApplyVariant(ctx, v.ID)
	require.ErrorContains(t, err, "dirty")

	require.NoError(t, os.Remove(path))
	svc.ClearDirty("prompts/fragile.txt")
	require.NoError(t, svc.ApplyVariant(ctx, v.ID))
	require.NoError(t, svc.Rollback("prompts/fragile.txt"))
}

func TestDirtyObservableDuringRollback(t *testing.T) {
	svc, store, root := newTestService(t)
	ctx := context.Background()

	path := filepath.Join(root, "prompts/racy.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("baseline\n"), 0o644))

	v := mustCreateVariant(t, store, "prompts/racy.txt", "variant content")
	require.NoError(t, svc.ApplyVariant(ctx, v.ID))

	breakTarget(t, path)

	// Poll the dirty flag from another goroutine while the rollback
	// fails; the race detector checks the flag handoff.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			svc.Dirty("prompts/racy.txt")
		}
	}()

	require.Error(t, svc.Rollback("prompts/racy.txt"))
	<-done
	require.True(t, svc.Dirty("prompts/racy.txt"))
}

func TestSelectVariantDeterministic(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	control := mustCreateVariant(t, store, "prompts/system.txt", "control!")
	treatment := mustCreateVariant(t, store, "prompts/system.txt", "treated!")

	exp, err := store.CreateExperiment(ctx, models.Experiment{
		Hypothesis: "treatment improves booking rate",
		Arms: []models.ExperimentArm{
			{VariantID: control.ID, Role: models.RoleControl, Weight: 1},
			{VariantID: treatment.ID, Role: models.RoleTreatment, Weight: 1},
		},
		TestIDs:    []string{"book-basic", "book-twins"},
		Assignment: models.AssignDeterministic,
	})
	require.NoError(t, err)

	first, err := svc.SelectVariant(ctx, exp.ID, "book-basic")
	require.NoError(t, err)
	assert.Equal(t, "prompts/system.txt", first.TargetFile)

	for i := 0; i < 10; i++ {
		again, err := svc.SelectVariant(ctx, exp.ID, "book-basic")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSelectVariantWeightedIsStablePerPairing(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	control := mustCreateVariant(t, store, "prompts/system.txt", "control weighted")
	treatment := mustCreateVariant(t, store, "prompts/system.txt", "treated weighted")

	exp, err := store.CreateExperiment(ctx, models.Experiment{
		Hypothesis: "weighted assignment",
		Arms: []models.ExperimentArm{
			{VariantID: control.ID, Role: models.RoleControl, Weight: 0.25},
			{VariantID: treatment.ID, Role: models.RoleTreatment, Weight: 0.75},
		},
		TestIDs:    []string{"book-basic"},
		Assignment: models.AssignWeighted,
	})
	require.NoError(t, err)

	seen := make(map[uuid.UUID]bool)
	for _, testID := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		first, err := svc.SelectVariant(ctx, exp.ID, testID)
		require.NoError(t, err)
		again, err := svc.SelectVariant(ctx, exp.ID, testID)
		require.NoError(t, err)
		assert.Equal(t, first, again, "pairing %q flapped", testID)
		seen[first.VariantID] = true
	}
	assert.NotEmpty(t, seen)
	for id := range seen {
		assert.Contains(t, []uuid.UUID{control.ID, treatment.ID}, id)
	}
}

func TestRecordTestResult(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	expID := uuid.New()
	sel := models.VariantSelection{
		VariantID:  uuid.New(),
		Role:       models.RoleTreatment,
		TargetFile: "prompts/system.txt",
	}
	result := &models.GoalTestResult{
		RunID:  "run-1",
		TestID: "book-basic",
		Passed: false,
		Goals: []models.GoalResult{
			{GoalID: "collect-phone", Passed: true},
			{GoalID: "confirm-booking", Passed: false},
		},
		Violations: []models.ConstraintViolation{{Constraint: "no_transfer", Turn: 4}},
		Turns:      7,
		DurationMs: 4200,
		ErrorMsg:   "agent gateway timeout",
	}

	require.NoError(t, svc.RecordTestResult(ctx, expID, sel, result))

	runs, err := store.ListExperimentRuns(ctx, expID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	run := runs[0]
	assert.Equal(t, "run-1", run.RunID)
	assert.Equal(t, sel.VariantID, run.VariantID)
	assert.Equal(t, models.RoleTreatment, run.Role)
	assert.False(t, run.Passed)
	assert.InDelta(t, 0.5, run.GoalCompletionRate, 1e-9)
	assert.Equal(t, 1, run.ViolationCount)
	assert.True(t, run.ErrorOccurred)
}

func TestDescribeVariant(t *testing.T) {
	tests := []struct {
		name    string
		variant models.Variant
		want    string
	}{
		{
			name: "prompt with heading",
			variant: models.Variant{
				Type:    models.VariantTypePrompt,
				Content: "# Booking Assistant\n\nYou are a friendly scheduler.",
			},
			want: "Booking Assistant",
		},
		{
			name: "prompt without heading",
			variant: models.Variant{
				Type:    models.VariantTypePrompt,
				Content: "You are a friendly scheduler.\nAlways confirm the phone number.",
			},
			want: "You are a friendly scheduler. Always confirm the phone number.",
		},
		{
			name: "config falls back to first line",
			variant: models.Variant{
				Type:    models.VariantTypeConfig,
				Content: "max_turns: 20\nuse_model: false\n",
			},
			want: "max_turns: 20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeVariant(&tt.variant))
		})
	}
}
