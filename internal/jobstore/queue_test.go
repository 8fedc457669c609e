package jobstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/synthesis-service/internal/core"
	"github.com/book-expert/synthesis-service/internal/jobstore"
)

func setupQueue(t *testing.T) (*jobstore.Queue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return jobstore.NewQueue(client, "synthesis", time.Hour), mr
}

func TestNextPendingEmptyQueueReturnsNil(t *testing.T) {
	t.Parallel()

	queue, _ := setupQueue(t)

	entry, err := queue.NextPending(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestQueueOrdersByEnqueueTime(t *testing.T) {
	t.Parallel()

	queue, _ := setupQueue(t)
	ctx := context.Background()

	base := time.Now().UTC()

	second := core.QueueEntry{
		JobID:      "job-second",
		UserID:     "user-1",
		Priority:   0,
		EnqueuedAt: base.Add(time.Second),
	}
	first := core.QueueEntry{
		JobID:      "job-first",
		UserID:     "user-1",
		Priority:   0,
		EnqueuedAt: base,
	}

	// Enqueue out of order; the score keeps oldest-first ordering.
	require.NoError(t, queue.Enqueue(ctx, second))
	require.NoError(t, queue.Enqueue(ctx, first))

	next, err := queue.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "job-first", next.JobID)
}

func TestQueuePriorityJumpsAhead(t *testing.T) {
	t.Parallel()

	queue, _ := setupQueue(t)
	ctx := context.Background()

	base := time.Now().UTC()

	require.NoError(t, queue.Enqueue(ctx, core.QueueEntry{
		JobID:      "job-normal",
		UserID:     "user-1",
		Priority:   0,
		EnqueuedAt: base,
	}))
	require.NoError(t, queue.Enqueue(ctx, core.QueueEntry{
		JobID:      "job-urgent",
		UserID:     "user-2",
		Priority:   1,
		EnqueuedAt: base.Add(time.Second),
	}))

	next, err := queue.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "job-urgent", next.JobID)
}

func TestNextPendingDoesNotRemove(t *testing.T) {
	t.Parallel()

	queue, _ := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, core.QueueEntry{
		JobID:      "job-1",
		UserID:     "",
		Priority:   0,
		EnqueuedAt: time.Now().UTC(),
	}))

	first, err := queue.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	again, err := queue.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, first.JobID, again.JobID)
}

func TestRemoveDrainsEntry(t *testing.T) {
	t.Parallel()

	queue, _ := setupQueue(t)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, core.QueueEntry{
		JobID:      "job-1",
		UserID:     "",
		Priority:   0,
		EnqueuedAt: time.Now().UTC(),
	}))

	require.NoError(t, queue.Remove(ctx, "job-1"))

	entry, err := queue.NextPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestRemoveUnknownJobIsIdempotent(t *testing.T) {
	t.Parallel()

	queue, _ := setupQueue(t)

	require.NoError(t, queue.Remove(context.Background(), "never-enqueued"))
}

func TestNextPendingSurvivesExpiredMetadata(t *testing.T) {
	t.Parallel()

	queue, mr := setupQueue(t)
	ctx := context.Background()

	enqueuedAt := time.Now().UTC()
	require.NoError(t, queue.Enqueue(ctx, core.QueueEntry{
		JobID:      "job-1",
		UserID:     "user-1",
		Priority:   0,
		EnqueuedAt: enqueuedAt,
	}))

	// Entry metadata expires with the job TTL; the sorted-set member stays.
	mr.FastForward(2 * time.Hour)

	entry, err := queue.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "job-1", entry.JobID)
	assert.Empty(t, entry.UserID)
	assert.WithinDuration(t, enqueuedAt, entry.EnqueuedAt, time.Millisecond)
}
