// Package orchestrator_test tests request routing across the cache, the
// synchronous and streaming paths, and the asynchronous job queue.
package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/book-expert/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/synthesis-service/internal/cache"
	"github.com/book-expert/synthesis-service/internal/core"
	"github.com/book-expert/synthesis-service/internal/jobstore"
	"github.com/book-expert/synthesis-service/internal/orchestrator"
	"github.com/book-expert/synthesis-service/internal/pipeline"
	"github.com/book-expert/synthesis-service/internal/text"
)

var errSynthUnavailable = errors.New("synthesis unavailable")

// countingProvider echoes the input text as audio and counts synthesis calls.
type countingProvider struct {
	err   error
	calls int
}

func (p *countingProvider) Name() string {
	return "counting"
}

func (p *countingProvider) ListVoices(_ context.Context) ([]core.Voice, error) {
	return []core.Voice{
		{Name: "en-US-standard-a", LanguageCode: "en-US", Gender: "female"},
	}, nil
}

func (p *countingProvider) Synthesize(
	_ context.Context,
	chunk string,
	_ core.VoiceSelector,
	_ core.AudioOptions,
) ([]byte, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}

	return []byte(chunk), nil
}

type testHarness struct {
	orch     *orchestrator.Orchestrator
	provider *countingProvider
	queue    *jobstore.Queue
	redis    *miniredis.Miniredis
}

func setupOrchestrator(t *testing.T, prov *countingProvider) *testHarness {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	log, err := logger.New(t.TempDir(), "orchestrator-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	pre := text.NewPreprocessor()
	cacheStore := cache.New(client, "synthesis", log)
	jobs := jobstore.New(client, "synthesis", time.Hour)
	queue := jobstore.NewQueue(client, "synthesis", time.Hour)
	pipe := pipeline.New(prov, pre, 30, 0, log)

	orch := orchestrator.New(prov, cacheStore, jobs, queue, pre, pipe, time.Hour, log)

	return &testHarness{
		orch:     orch,
		provider: prov,
		queue:    queue,
		redis:    mr,
	}
}

func newRequest(reqText string) core.SynthesisRequest {
	return core.SynthesisRequest{
		Text: reqText,
		Voice: core.VoiceSelector{
			LanguageCode: "en-US",
			Name:         "en-US-standard-a",
			Gender:       "",
		},
		Audio: core.AudioOptions{
			Encoding:        "wav",
			SpeakingRate:    1.0,
			Pitch:           0,
			VolumeGainDB:    0,
			SampleRateHertz: 22050,
		},
		Async:     false,
		Streaming: false,
	}
}

func TestSynthesizeRejectsInvalidRequest(t *testing.T) {
	t.Parallel()

	h := setupOrchestrator(t, &countingProvider{err: nil, calls: 0})

	_, err := h.orch.Synthesize(context.Background(), newRequest(""), "user-1")
	require.ErrorIs(t, err, core.ErrTextEmpty)
	assert.Zero(t, h.provider.calls)
}

func TestSynthesizeSyncReturnsAudio(t *testing.T) {
	t.Parallel()

	h := setupOrchestrator(t, &countingProvider{err: nil, calls: 0})

	resp, err := h.orch.Synthesize(context.Background(), newRequest("Hello world."), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello world."), resp.Audio)
	assert.Nil(t, resp.Job)
	assert.False(t, resp.Cached)
	assert.Equal(t, 1, h.provider.calls)
}

func TestSynthesizeSecondIdenticalRequestHitsCache(t *testing.T) {
	t.Parallel()

	h := setupOrchestrator(t, &countingProvider{err: nil, calls: 0})
	ctx := context.Background()

	first, err := h.orch.Synthesize(ctx, newRequest("Hello world."), "user-1")
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := h.orch.Synthesize(ctx, newRequest("Hello world."), "user-2")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Audio, second.Audio)

	// The provider ran exactly once across both calls.
	assert.Equal(t, 1, h.provider.calls)
}

func TestSynthesizeNormalizationSharesCacheEntry(t *testing.T) {
	t.Parallel()

	h := setupOrchestrator(t, &countingProvider{err: nil, calls: 0})
	ctx := context.Background()

	_, err := h.orch.Synthesize(ctx, newRequest("Hello   world."), "user-1")
	require.NoError(t, err)

	// Differing only in whitespace normalizes to the same text, so the
	// fingerprint matches and the cache answers.
	resp, err := h.orch.Synthesize(ctx, newRequest("Hello world."), "user-1")
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, 1, h.provider.calls)
}

func TestSynthesizeAsyncReturnsPendingJob(t *testing.T) {
	t.Parallel()

	h := setupOrchestrator(t, &countingProvider{err: nil, calls: 0})
	ctx := context.Background()

	req := newRequest("Hello world.")
	req.Async = true

	resp, err := h.orch.Synthesize(ctx, req, "user-1")
	require.NoError(t, err)
	assert.Nil(t, resp.Audio)
	require.NotNil(t, resp.Job)
	assert.Equal(t, core.JobStatusPending, resp.Job.Status)
	assert.Equal(t, "user-1", resp.Job.UserID)
	assert.Zero(t, h.provider.calls)

	// The handle is retrievable and the queue holds the entry.
	got, err := h.orch.GetJob(ctx, resp.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Job.ID, got.ID)

	entry, err := h.queue.NextPending(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, resp.Job.ID, entry.JobID)
}

func TestSynthesizeStreamingChunksAndReassembles(t *testing.T) {
	t.Parallel()

	h := setupOrchestrator(t, &countingProvider{err: nil, calls: 0})

	req := newRequest("First sentence here. Second sentence here. Third sentence here.")
	req.Streaming = true

	resp, err := h.orch.Synthesize(context.Background(), req, "user-1")
	require.NoError(t, err)
	assert.Greater(t, h.provider.calls, 1)

	// Echo provider: reassembled audio is the normalized text minus the
	// inter-chunk spaces.
	assert.NotEmpty(t, resp.Audio)
	assert.Nil(t, resp.Job)
}

func TestSynthesizeProviderFailureSurfaces(t *testing.T) {
	t.Parallel()

	h := setupOrchestrator(t, &countingProvider{err: errSynthUnavailable, calls: 0})

	_, err := h.orch.Synthesize(context.Background(), newRequest("Hello world."), "user-1")
	require.ErrorIs(t, err, errSynthUnavailable)
}

func TestSynthesizeSurvivesCacheOutage(t *testing.T) {
	t.Parallel()

	h := setupOrchestrator(t, &countingProvider{err: nil, calls: 0})

	// A dead cache backend degrades to cache-miss behavior. The job store
	// is untouched on the synchronous path.
	h.redis.Close()

	resp, err := h.orch.Synthesize(context.Background(), newRequest("Hello world."), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello world."), resp.Audio)
	assert.False(t, resp.Cached)
}

func TestGetJobUnknownIDFails(t *testing.T) {
	t.Parallel()

	h := setupOrchestrator(t, &countingProvider{err: nil, calls: 0})

	_, err := h.orch.GetJob(context.Background(), "no-such-job")
	require.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestCancelPendingDrainsQueueEntry(t *testing.T) {
	t.Parallel()

	h := setupOrchestrator(t, &countingProvider{err: nil, calls: 0})
	ctx := context.Background()

	req := newRequest("Hello world.")
	req.Async = true

	resp, err := h.orch.Synthesize(ctx, req, "user-1")
	require.NoError(t, err)

	require.NoError(t, h.orch.CancelPending(ctx, resp.Job.ID))

	entry, err := h.queue.NextPending(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry)

	// The record itself stays queryable.
	got, err := h.orch.GetJob(ctx, resp.Job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, got.Status)
}

func TestListVoicesDelegatesToProvider(t *testing.T) {
	t.Parallel()

	h := setupOrchestrator(t, &countingProvider{err: nil, calls: 0})

	voices, err := h.orch.ListVoices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "en-US-standard-a", voices[0].Name)
}
