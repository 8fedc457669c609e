// Package orchestrator is the synthesis entry point: it routes each request
// through the cache, the synchronous provider path, the streaming pipeline,
// or the asynchronous job queue.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/synthesis-service/internal/core"
	"github.com/book-expert/synthesis-service/internal/fingerprint"
	"github.com/book-expert/synthesis-service/internal/pipeline"
)

// Log formats.
const (
	logFmtCacheHit   = "Cache hit for fingerprint %s"
	logFmtJobCreated = "Created job '%s' for user '%s'"
	logFmtCacheWarn  = "Failed to cache synthesis result: %v"
)

// Response is the outcome of a synthesis call: either immediate audio bytes
// or a job handle the caller polls later. Exactly one of Audio and Job is
// set.
type Response struct {
	Audio  []byte
	Job    *core.SynthesisJob
	Cached bool
}

// Orchestrator composes the cache, job store, queue, pipeline, and provider.
// All collaborators are injected once at composition time.
type Orchestrator struct {
	provider core.Provider
	cache    core.CacheStore
	jobs     core.JobStore
	queue    core.JobQueue
	pre      core.Preprocessor
	pipeline *pipeline.Pipeline
	cacheTTL time.Duration
	log      *logger.Logger
}

// New creates an orchestrator.
func New(
	provider core.Provider,
	cacheStore core.CacheStore,
	jobs core.JobStore,
	queue core.JobQueue,
	pre core.Preprocessor,
	pipe *pipeline.Pipeline,
	cacheTTL time.Duration,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		cache:    cacheStore,
		jobs:     jobs,
		queue:    queue,
		pre:      pre,
		pipeline: pipe,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// Synthesize validates and normalizes the request, then routes it. A cache
// hit returns the stored bytes with no provider call and no job. Async
// requests return a pending job handle immediately; streaming and plain
// synchronous requests return audio inline, surfacing any failure to the
// caller directly.
func (o *Orchestrator) Synthesize(
	ctx context.Context,
	req core.SynthesisRequest,
	callerID string,
) (*Response, error) {
	err := req.Validate()
	if err != nil {
		return nil, err
	}

	// The request snapshot carries the normalized text from here on; the
	// scheduler recomputes the same fingerprint from it.
	req.Text = o.pre.Process(req.Text)

	key := fingerprint.ForRequest(&req, o.provider.Name())

	cached, found, err := o.cache.Get(ctx, key)
	if err == nil && found {
		o.log.Info(logFmtCacheHit, key)

		return &Response{Audio: cached, Job: nil, Cached: true}, nil
	}

	if req.Async {
		return o.submitJob(ctx, req, callerID)
	}

	if req.Streaming {
		return o.runStreaming(ctx, &req, key)
	}

	return o.runSync(ctx, &req, key)
}

// GetJob returns the caller-facing job handle. Unknown and expired ids are
// both core.ErrJobNotFound.
func (o *Orchestrator) GetJob(ctx context.Context, id string) (*core.SynthesisJob, error) {
	return o.jobs.GetJob(ctx, id)
}

// CancelPending removes a not-yet-claimed job's queue entry so no worker
// ever picks it up. A job already claimed runs to completion or failure.
func (o *Orchestrator) CancelPending(ctx context.Context, id string) error {
	return o.queue.Remove(ctx, id)
}

// ListVoices exposes the provider's voice catalogue.
func (o *Orchestrator) ListVoices(ctx context.Context) ([]core.Voice, error) {
	return o.provider.ListVoices(ctx)
}

// submitJob creates the job record and its queue entry, returning the handle
// immediately.
func (o *Orchestrator) submitJob(
	ctx context.Context,
	req core.SynthesisRequest,
	callerID string,
) (*Response, error) {
	job := &core.SynthesisJob{
		ID:          uuid.NewString(),
		UserID:      callerID,
		Status:      core.JobStatusPending,
		Progress:    0,
		Request:     req,
		Result:      nil,
		Error:       "",
		CreatedAt:   time.Now().UTC(),
		CompletedAt: nil,
	}

	err := o.jobs.AddJob(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	enqueueErr := o.queue.Enqueue(ctx, core.QueueEntry{
		JobID:      job.ID,
		UserID:     callerID,
		Priority:   0,
		EnqueuedAt: job.CreatedAt,
	})
	if enqueueErr != nil {
		return nil, fmt.Errorf("failed to enqueue job '%s': %w", job.ID, enqueueErr)
	}

	o.log.Info(logFmtJobCreated, job.ID, callerID)

	return &Response{Audio: nil, Job: job, Cached: false}, nil
}

// runStreaming drives the chunking pipeline inline and caches the
// reassembled buffer.
func (o *Orchestrator) runStreaming(
	ctx context.Context,
	req *core.SynthesisRequest,
	key string,
) (*Response, error) {
	audioData, err := o.pipeline.Run(ctx, req, nil)
	if err != nil {
		return nil, err
	}

	o.cacheResult(ctx, key, audioData)

	return &Response{Audio: audioData, Job: nil, Cached: false}, nil
}

// runSync performs one direct provider call and caches the buffer.
func (o *Orchestrator) runSync(
	ctx context.Context,
	req *core.SynthesisRequest,
	key string,
) (*Response, error) {
	audioData, err := o.provider.Synthesize(ctx, req.Text, req.Voice, req.Audio)
	if err != nil {
		return nil, err
	}

	o.cacheResult(ctx, key, audioData)

	return &Response{Audio: audioData, Job: nil, Cached: false}, nil
}

// cacheResult is fail-open like the cache itself.
func (o *Orchestrator) cacheResult(ctx context.Context, key string, audioData []byte) {
	err := o.cache.Set(ctx, key, audioData, o.cacheTTL)
	if err != nil {
		o.log.Warn(logFmtCacheWarn, err)
	}
}
