package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/book-expert/synthesis-service/internal/core"
)

// priorityBias is how far one priority level jumps a job ahead of the
// enqueue-time ordering.
const priorityBias = time.Minute

// Queue implements core.JobQueue as a Redis sorted set keyed by enqueue
// timestamp, giving true oldest-first ordering and O(log n) dequeue instead
// of a prefix scan over all keys.
type Queue struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewQueue creates a queue with the given key prefix. Entry metadata shares
// the job retention TTL so an expired job never leaves an orphaned entry.
func NewQueue(client *redis.Client, prefix string, ttl time.Duration) *Queue {
	return &Queue{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Enqueue adds a pending entry. The sorted-set score is the enqueue time in
// nanoseconds, reduced by one priorityBias per priority level.
func (q *Queue) Enqueue(ctx context.Context, entry core.QueueEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal queue entry for job '%s': %w", entry.JobID, err)
	}

	score := float64(entry.EnqueuedAt.UnixNano() - int64(entry.Priority)*int64(priorityBias))

	pipe := q.client.TxPipeline()
	pipe.ZAdd(ctx, q.setKey(), redis.Z{Score: score, Member: entry.JobID})
	pipe.Set(ctx, q.entryKey(entry.JobID), data, q.ttl)

	_, execErr := pipe.Exec(ctx)
	if execErr != nil {
		return fmt.Errorf("failed to enqueue job '%s': %w", entry.JobID, execErr)
	}

	return nil
}

// NextPending returns the oldest outstanding entry without removing it, or
// nil when the queue is empty.
func (q *Queue) NextPending(ctx context.Context) (*core.QueueEntry, error) {
	members, err := q.client.ZRangeWithScores(ctx, q.setKey(), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue: %w", err)
	}

	if len(members) == 0 {
		return nil, nil
	}

	jobID, ok := members[0].Member.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected queue member type %T", members[0].Member)
	}

	data, err := q.client.Get(ctx, q.entryKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Metadata expired; reconstruct what the score encodes.
			return &core.QueueEntry{
				JobID:      jobID,
				UserID:     "",
				Priority:   0,
				EnqueuedAt: time.Unix(0, int64(members[0].Score)),
			}, nil
		}

		return nil, fmt.Errorf("failed to fetch queue entry for job '%s': %w", jobID, err)
	}

	var entry core.QueueEntry

	unmarshalErr := json.Unmarshal(data, &entry)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal queue entry for job '%s': %w", jobID, unmarshalErr)
	}

	return &entry, nil
}

// Remove deletes a job's queue entry so it cannot be claimed again. Removing
// an entry that was already claimed, or that never existed, is not an error,
// which also makes pre-claim cancellation a plain Remove call.
func (q *Queue) Remove(ctx context.Context, jobID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.setKey(), jobID)
	pipe.Del(ctx, q.entryKey(jobID))

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove queue entry for job '%s': %w", jobID, err)
	}

	return nil
}

func (q *Queue) setKey() string {
	return q.prefix + ":queue:pending"
}

func (q *Queue) entryKey(jobID string) string {
	return q.prefix + ":queue:entry:" + jobID
}
