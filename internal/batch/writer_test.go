package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bookedby/convoqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingCommitter records committed batches and can fail a set number of
// commits before succeeding.
type recordingCommitter struct {
	mu       sync.Mutex
	batches  [][]models.BatchWriteOperation
	failures int
}

func (c *recordingCommitter) CommitBatch(_ context.Context, ops []models.BatchWriteOperation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		return fmt.Errorf("injected commit failure")
	}
	batch := append([]models.BatchWriteOperation(nil), ops...)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *recordingCommitter) committed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for _, b := range c.batches {
		for _, op := range b {
			ids = append(ids, op.Finding.Description)
		}
	}
	return ids
}

func (c *recordingCommitter) batchSizes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sizes []int
	for _, b := range c.batches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

func findingOp(i int) models.BatchWriteOperation {
	return models.BatchWriteOperation{
		Kind:    models.OpFinding,
		Finding: &models.FindingRow{Description: fmt.Sprintf("op-%d", i)},
	}
}

func TestWriter_SizeTriggeredFlushes(t *testing.T) {
	committer := &recordingCommitter{}
	w := NewWriter(committer, slog.Default(), WithFlushInterval(0))

	for i := 0; i < 125; i++ {
		require.NoError(t, w.Add(context.Background(), findingOp(i)))
	}

	// Two full batches committed by size triggers, remainder still queued.
	assert.Equal(t, []int{50, 50}, committer.batchSizes())
	assert.Equal(t, 25, w.QueueLen())

	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, []int{50, 50, 25}, committer.batchSizes())
	assert.Equal(t, 0, w.QueueLen())

	// Every operation committed exactly once, in order.
	ids := committer.committed()
	require.Len(t, ids, 125)
	seen := map[string]bool{}
	for i, id := range ids {
		assert.Equal(t, fmt.Sprintf("op-%d", i), id)
		assert.False(t, seen[id], "duplicate commit of %s", id)
		seen[id] = true
	}
}

func TestWriter_FailedFlushRequeuesAtFront(t *testing.T) {
	committer := &recordingCommitter{failures: 1}
	w := NewWriter(committer, slog.Default(), WithFlushInterval(0), WithBatchSize(10))

	var events []FlushEvent
	w.OnFlush(func(e FlushEvent) { events = append(events, e) })

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Add(context.Background(), findingOp(i)))
	}

	err := w.Flush(context.Background())
	require.Error(t, err)
	assert.Equal(t, 5, w.QueueLen())
	require.Len(t, events, 1)
	assert.Error(t, events[0].Err)
	assert.Equal(t, 5, events[0].Ops)

	// Retry succeeds; nothing lost, nothing duplicated.
	require.NoError(t, w.Flush(context.Background()))
	assert.Equal(t, 0, w.QueueLen())
	ids := committer.committed()
	require.Len(t, ids, 5)
	assert.Equal(t, "op-0", ids[0])
	require.Len(t, events, 2)
	assert.NoError(t, events[1].Err)
}

func TestWriter_FailureDuringSizeTriggerKeepsOrder(t *testing.T) {
	committer := &recordingCommitter{failures: 1}
	w := NewWriter(committer, slog.Default(), WithFlushInterval(0), WithBatchSize(3))

	for i := 0; i < 7; i++ {
		require.NoError(t, w.Add(context.Background(), findingOp(i)))
	}
	require.NoError(t, w.Flush(context.Background()))

	ids := committer.committed()
	require.Len(t, ids, 7)
	for i, id := range ids {
		assert.Equal(t, fmt.Sprintf("op-%d", i), id)
	}
}

func TestWriter_EmptyFlushIsNoOp(t *testing.T) {
	committer := &recordingCommitter{}
	w := NewWriter(committer, slog.Default(), WithFlushInterval(0))

	require.NoError(t, w.Flush(context.Background()))
	assert.Empty(t, committer.batchSizes())
}

func TestWriter_TimerFlushesPartialBatch(t *testing.T) {
	committer := &recordingCommitter{}
	w := NewWriter(committer, slog.Default(), WithFlushInterval(20*time.Millisecond))
	defer w.Shutdown(context.Background())

	require.NoError(t, w.Add(context.Background(), findingOp(0)))

	assert.Eventually(t, func() bool {
		return len(committer.committed()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWriter_ShutdownFlushesAndIsIdempotent(t *testing.T) {
	committer := &recordingCommitter{}
	w := NewWriter(committer, slog.Default(), WithFlushInterval(time.Hour))

	require.NoError(t, w.Add(context.Background(), findingOp(0)))
	require.NoError(t, w.Shutdown(context.Background()))
	assert.Len(t, committer.committed(), 1)

	// Shutdown with an empty queue is a no-op, not an error.
	require.NoError(t, w.Shutdown(context.Background()))
}

func TestWriter_DisabledBatchingCommitsSynchronously(t *testing.T) {
	committer := &recordingCommitter{}
	w := NewWriter(committer, slog.Default(), WithBatchingDisabled())

	require.NoError(t, w.Add(context.Background(), findingOp(0)))
	assert.Equal(t, []int{1}, committer.batchSizes())
	assert.Equal(t, 0, w.QueueLen())

	failing := &recordingCommitter{failures: 1}
	wf := NewWriter(failing, slog.Default(), WithBatchingDisabled())
	assert.Error(t, wf.Add(context.Background(), findingOp(1)))
}

func TestWriter_ConcurrentAdds(t *testing.T) {
	committer := &recordingCommitter{}
	w := NewWriter(committer, slog.Default(), WithFlushInterval(0), WithBatchSize(25))

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = w.Add(context.Background(), findingOp(base*50+i))
			}
		}(g)
	}
	wg.Wait()
	require.NoError(t, w.Flush(context.Background()))

	ids := committer.committed()
	assert.Len(t, ids, 200)
	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate commit of %s", id)
		seen[id] = true
	}
}
