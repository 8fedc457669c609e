package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/synthesis-service/internal/audio"
	"github.com/book-expert/synthesis-service/internal/core"
	"github.com/book-expert/synthesis-service/internal/fingerprint"
	"github.com/book-expert/synthesis-service/internal/format"
	"github.com/book-expert/synthesis-service/internal/pipeline"
)

// Progress milestones along a job's lifecycle.
const (
	progressClaimed   = 10
	progressCompleted = 100

	// synthesisProgressShare is how much of the progress range the
	// synthesis phase occupies, after the claim milestone.
	synthesisProgressShare = 85
)

// audioObjectSuffix is appended to the generated object key.
const audioObjectSuffix = ".wav"

// Log formats.
const (
	logFmtClaimed        = "Claimed job '%s' (queued %s)"
	logFmtCompleted      = "Completed job '%s': %s audio, %s"
	logFmtFailed         = "Job '%s' failed: %v"
	logFmtVanished       = "Dropping queue entry for vanished job '%s'"
	logFmtTickError      = "Scheduler tick failed: %v"
	logFmtUpdateFailed   = "Failed to update job '%s': %v"
	errFmtUploadFailed   = "failed to upload audio for job '%s': %w"
	errFmtClaimMarkError = "failed to mark job '%s' processing: %w"
)

// Scheduler is the single logical worker loop. Each tick it claims at most
// one pending job, runs it through the chunking pipeline, and records the
// outcome on the job record, the object store, and the cache.
type Scheduler struct {
	queue    core.JobQueue
	jobs     core.JobStore
	cache    core.CacheStore
	objects  core.ObjectStore
	pipeline *pipeline.Pipeline
	leases   *LeaseSet
	interval time.Duration
	cacheTTL time.Duration
	log      *logger.Logger
}

// New creates a scheduler. All collaborators are injected explicitly by the
// composition root; the scheduler performs no deferred lookups.
func New(
	queue core.JobQueue,
	jobs core.JobStore,
	cacheStore core.CacheStore,
	objects core.ObjectStore,
	pipe *pipeline.Pipeline,
	leases *LeaseSet,
	interval time.Duration,
	cacheTTL time.Duration,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		queue:    queue,
		jobs:     jobs,
		cache:    cacheStore,
		objects:  objects,
		pipeline: pipe,
		leases:   leases,
		interval: interval,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// Run polls the queue at the fixed interval until the context is canceled.
// Tick failures are logged, never fatal: the next tick simply tries again.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := s.Tick(ctx)
			if err != nil {
				s.log.Error(logFmtTickError, err)
			}
		}
	}
}

// Tick claims and processes at most one pending job. It is exported so tests
// can drive the loop deterministically.
func (s *Scheduler) Tick(ctx context.Context) error {
	entry, err := s.queue.NextPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan for pending jobs: %w", err)
	}

	if entry == nil {
		return nil
	}

	if !s.leases.Acquire(entry.JobID) {
		// Another worker holds this job; skip the tick.
		return nil
	}
	defer s.leases.Release(entry.JobID)

	removeErr := s.queue.Remove(ctx, entry.JobID)
	if removeErr != nil {
		return fmt.Errorf("failed to remove queue entry for job '%s': %w", entry.JobID, removeErr)
	}

	return s.process(ctx, entry)
}

// process drives one claimed job to a terminal state. Pipeline failures are
// recorded on the job, not returned: the job is the caller here.
func (s *Scheduler) process(ctx context.Context, entry *core.QueueEntry) error {
	job, err := s.jobs.GetJob(ctx, entry.JobID)
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			s.log.Warn(logFmtVanished, entry.JobID)

			return nil
		}

		return fmt.Errorf("failed to load job '%s': %w", entry.JobID, err)
	}

	claimErr := s.markProcessing(ctx, job.ID)
	if claimErr != nil {
		return claimErr
	}

	s.log.Info(logFmtClaimed, job.ID, format.Duration(time.Since(entry.EnqueuedAt).Seconds()))

	audioData, synthErr := s.pipeline.Run(ctx, &job.Request, func(percent int) {
		s.reportProgress(ctx, job.ID, progressClaimed+percent*synthesisProgressShare/100)
	})
	if synthErr != nil {
		s.markFailed(ctx, job.ID, synthErr)

		return nil
	}

	completeErr := s.complete(ctx, job, audioData)
	if completeErr != nil {
		s.markFailed(ctx, job.ID, completeErr)

		return nil
	}

	return nil
}

func (s *Scheduler) markProcessing(ctx context.Context, jobID string) error {
	status := core.JobStatusProcessing
	progress := progressClaimed

	_, err := s.jobs.UpdateJob(ctx, jobID, core.JobUpdate{
		Status:      &status,
		Progress:    &progress,
		Result:      nil,
		Error:       nil,
		CompletedAt: nil,
	})
	if err != nil {
		return fmt.Errorf(errFmtClaimMarkError, jobID, err)
	}

	return nil
}

// reportProgress is best-effort; a missed milestone never fails the job.
func (s *Scheduler) reportProgress(ctx context.Context, jobID string, percent int) {
	_, err := s.jobs.UpdateJob(ctx, jobID, core.JobUpdate{
		Status:      nil,
		Progress:    &percent,
		Result:      nil,
		Error:       nil,
		CompletedAt: nil,
	})
	if err != nil {
		s.log.Warn(logFmtUpdateFailed, jobID, err)
	}
}

// complete uploads the audio, records the result, and populates the cache
// under the job request's fingerprint.
func (s *Scheduler) complete(ctx context.Context, job *core.SynthesisJob, audioData []byte) error {
	objectKey := uuid.NewString() + audioObjectSuffix

	uploadErr := s.objects.Upload(ctx, objectKey, audioData)
	if uploadErr != nil {
		return fmt.Errorf(errFmtUploadFailed, job.ID, uploadErr)
	}

	// Non-WAV encodings fall back to a PCM16 estimate at the requested
	// sample rate.
	fallbackByteRate := job.Request.Audio.SampleRateHertz * 2

	result := &core.JobResult{
		AudioLengthBytes:  len(audioData),
		DurationSeconds:   audio.DurationOrEstimate(audioData, fallbackByteRate),
		DownloadReference: objectKey,
	}

	status := core.JobStatusCompleted
	progress := progressCompleted
	completedAt := time.Now().UTC()

	_, err := s.jobs.UpdateJob(ctx, job.ID, core.JobUpdate{
		Status:      &status,
		Progress:    &progress,
		Result:      result,
		Error:       nil,
		CompletedAt: &completedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to record result for job '%s': %w", job.ID, err)
	}

	key := fingerprint.ForRequest(&job.Request, s.pipeline.ProviderName())

	cacheErr := s.cache.Set(ctx, key, audioData, s.cacheTTL)
	if cacheErr != nil {
		s.log.Warn(logFmtUpdateFailed, job.ID, cacheErr)
	}

	s.log.Info(
		logFmtCompleted,
		job.ID,
		format.FileSize(int64(result.AudioLengthBytes)),
		format.Duration(result.DurationSeconds),
	)

	return nil
}

// markFailed records a terminal failure with the error message. Automatic
// retries stop here; the provider's own single retry is all a job gets.
func (s *Scheduler) markFailed(ctx context.Context, jobID string, cause error) {
	s.log.Error(logFmtFailed, jobID, cause)

	status := core.JobStatusFailed
	message := cause.Error()
	completedAt := time.Now().UTC()

	_, err := s.jobs.UpdateJob(ctx, jobID, core.JobUpdate{
		Status:      &status,
		Progress:    nil,
		Result:      nil,
		Error:       &message,
		CompletedAt: &completedAt,
	})
	if err != nil {
		s.log.Error(logFmtUpdateFailed, jobID, err)
	}
}
