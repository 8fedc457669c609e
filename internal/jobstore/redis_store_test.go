// Package jobstore_test tests job record persistence and the pending-work
// queue.
package jobstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/synthesis-service/internal/core"
	"github.com/book-expert/synthesis-service/internal/jobstore"
)

func setupStore(t *testing.T) (*jobstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return jobstore.New(client, "synthesis", time.Hour), mr
}

func newTestJob() *core.SynthesisJob {
	return &core.SynthesisJob{
		ID:       uuid.NewString(),
		UserID:   "user-1",
		Status:   core.JobStatusPending,
		Progress: 0,
		Request: core.SynthesisRequest{
			Text: "Hello world.",
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
			Async:     true,
			Streaming: false,
		},
		Result:      nil,
		Error:       "",
		CreatedAt:   time.Now().UTC(),
		CompletedAt: nil,
	}
}

func statusPtr(s core.JobStatus) *core.JobStatus {
	return &s
}

func intPtr(i int) *int {
	return &i
}

func TestAddAndGetJob(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.AddJob(ctx, job))

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, core.JobStatusPending, got.Status)
	assert.Equal(t, "Hello world.", got.Request.Text)
}

func TestGetJobUnknownIDReturnsNotFound(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)

	_, err := store.GetJob(context.Background(), "no-such-job")
	require.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestGetJobAfterTTLExpiryReturnsNotFound(t *testing.T) {
	t.Parallel()

	store, mr := setupStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.AddJob(ctx, job))

	mr.FastForward(2 * time.Hour)

	_, err := store.GetJob(ctx, job.ID)
	require.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestUpdateJobMergesFields(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.AddJob(ctx, job))

	updated, err := store.UpdateJob(ctx, job.ID, core.JobUpdate{
		Status:      statusPtr(core.JobStatusProcessing),
		Progress:    intPtr(10),
		Result:      nil,
		Error:       nil,
		CompletedAt: nil,
	})
	require.NoError(t, err)

	// The merge never clobbers fields the update leaves nil.
	assert.Equal(t, core.JobStatusProcessing, updated.Status)
	assert.Equal(t, 10, updated.Progress)
	assert.Equal(t, job.Request.Text, updated.Request.Text)
	assert.Equal(t, job.UserID, updated.UserID)
}

func TestUpdateJobRejectsStatusRegression(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.AddJob(ctx, job))

	_, err := store.UpdateJob(ctx, job.ID, core.JobUpdate{
		Status:      statusPtr(core.JobStatusCompleted),
		Progress:    intPtr(100),
		Result:      nil,
		Error:       nil,
		CompletedAt: nil,
	})
	require.NoError(t, err)

	_, err = store.UpdateJob(ctx, job.ID, core.JobUpdate{
		Status:      statusPtr(core.JobStatusProcessing),
		Progress:    nil,
		Result:      nil,
		Error:       nil,
		CompletedAt: nil,
	})
	require.ErrorIs(t, err, core.ErrStatusRegression)

	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusCompleted, got.Status)
}

func TestUpdateJobRejectsTerminalFlip(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.AddJob(ctx, job))

	_, err := store.UpdateJob(ctx, job.ID, core.JobUpdate{
		Status:      statusPtr(core.JobStatusFailed),
		Progress:    nil,
		Result:      nil,
		Error:       nil,
		CompletedAt: nil,
	})
	require.NoError(t, err)

	_, err = store.UpdateJob(ctx, job.ID, core.JobUpdate{
		Status:      statusPtr(core.JobStatusCompleted),
		Progress:    nil,
		Result:      nil,
		Error:       nil,
		CompletedAt: nil,
	})
	require.ErrorIs(t, err, core.ErrStatusRegression)
}

func TestUpdateJobRejectsProgressRegression(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.AddJob(ctx, job))

	_, err := store.UpdateJob(ctx, job.ID, core.JobUpdate{
		Status:      statusPtr(core.JobStatusProcessing),
		Progress:    intPtr(50),
		Result:      nil,
		Error:       nil,
		CompletedAt: nil,
	})
	require.NoError(t, err)

	_, err = store.UpdateJob(ctx, job.ID, core.JobUpdate{
		Status:      nil,
		Progress:    intPtr(10),
		Result:      nil,
		Error:       nil,
		CompletedAt: nil,
	})
	require.ErrorIs(t, err, core.ErrProgressRegression)
}

func TestUpdateJobRecordsResult(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	job := newTestJob()
	require.NoError(t, store.AddJob(ctx, job))

	completedAt := time.Now().UTC()
	result := &core.JobResult{
		AudioLengthBytes:  1024,
		DurationSeconds:   2.5,
		DownloadReference: "abc.wav",
	}

	updated, err := store.UpdateJob(ctx, job.ID, core.JobUpdate{
		Status:      statusPtr(core.JobStatusCompleted),
		Progress:    intPtr(100),
		Result:      result,
		Error:       nil,
		CompletedAt: &completedAt,
	})
	require.NoError(t, err)

	require.NotNil(t, updated.Result)
	assert.Equal(t, 1024, updated.Result.AudioLengthBytes)
	assert.InEpsilon(t, 2.5, updated.Result.DurationSeconds, 0.001)
	assert.Equal(t, "abc.wav", updated.Result.DownloadReference)
	require.NotNil(t, updated.CompletedAt)
}
