// Package jobstore persists synthesis job records and the pending-work queue
// in Redis with TTL-bounded retention.
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

// Store implements core.JobStore on Redis. Each job is one JSON record under
// a namespaced key with the configured retention TTL; an expired record is
// indistinguishable from one that never existed.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New creates a job store with the given key prefix and record retention.
func New(client *redis.Client, prefix string, ttl time.Duration) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// AddJob persists a new job record.
func (s *Store) AddJob(ctx context.Context, job *core.SynthesisJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job '%s': %w", job.ID, err)
	}

	setErr := s.client.Set(ctx, s.jobKey(job.ID), data, s.ttl).Err()
	if setErr != nil {
		return fmt.Errorf("failed to store job '%s': %w", job.ID, setErr)
	}

	return nil
}

// GetJob fetches a job record, returning core.ErrJobNotFound for unknown or
// expired ids.
func (s *Store) GetJob(ctx context.Context, id string) (*core.SynthesisJob, error) {
	data, err := s.client.Get(ctx, s.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
		}

		return nil, fmt.Errorf("failed to fetch job '%s': %w", id, err)
	}

	var job core.SynthesisJob

	unmarshalErr := json.Unmarshal(data, &job)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal job '%s': %w", id, unmarshalErr)
	}

	return &job, nil
}

// UpdateJob merges a partial update into the stored record, preserving the
// remaining TTL. Status updates must not move backward and progress must not
// decrease before a terminal status; violating updates are rejected.
func (s *Store) UpdateJob(ctx context.Context, id string, update core.JobUpdate) (*core.SynthesisJob, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	mergeErr := merge(job, update)
	if mergeErr != nil {
		return nil, mergeErr
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job '%s': %w", id, err)
	}

	setErr := s.client.Set(ctx, s.jobKey(id), data, redis.KeepTTL).Err()
	if setErr != nil {
		return nil, fmt.Errorf("failed to store job '%s': %w", id, setErr)
	}

	return job, nil
}

// merge applies the non-nil fields of update onto job, enforcing the
// lifecycle invariants.
func merge(job *core.SynthesisJob, update core.JobUpdate) error {
	if update.Status != nil {
		if update.Status.Rank() < job.Status.Rank() || (job.Status.Terminal() && *update.Status != job.Status) {
			return fmt.Errorf(
				"%w: %s -> %s for job '%s'",
				core.ErrStatusRegression, job.Status, *update.Status, job.ID,
			)
		}

		job.Status = *update.Status
	}

	if update.Progress != nil {
		if *update.Progress < job.Progress && !job.Status.Terminal() {
			return fmt.Errorf(
				"%w: %d -> %d for job '%s'",
				core.ErrProgressRegression, job.Progress, *update.Progress, job.ID,
			)
		}

		job.Progress = clampProgress(*update.Progress)
	}

	if update.Result != nil {
		job.Result = update.Result
	}

	if update.Error != nil {
		job.Error = *update.Error
	}

	if update.CompletedAt != nil {
		job.CompletedAt = update.CompletedAt
	}

	return nil
}

func clampProgress(progress int) int {
	if progress < core.ProgressMin {
		return core.ProgressMin
	}

	if progress > core.ProgressMax {
		return core.ProgressMax
	}

	return progress
}

func (s *Store) jobKey(id string) string {
	return s.prefix + ":job:" + id
}
