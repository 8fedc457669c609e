package core

import (
	"context"
	"time"
)

// CacheStore is a TTL key/value store used to deduplicate synthesis requests.
// Implementations are fail-open: on backing-store unavailability Get reports
// absent and Set/Delete degrade to no-ops, so callers may treat the cache as
// a pure optimization and never as a correctness dependency.
type CacheStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// JobStore persists job records with TTL-bounded retention.
type JobStore interface {
	AddJob(ctx context.Context, job *SynthesisJob) error
	// GetJob returns ErrJobNotFound for unknown or expired ids.
	GetJob(ctx context.Context, id string) (*SynthesisJob, error)
	// UpdateJob merges the partial update into the stored record, enforcing
	// status monotonicity and non-decreasing progress.
	UpdateJob(ctx context.Context, id string, update JobUpdate) (*SynthesisJob, error)
}

// JobQueue is the time-ordered pending-work queue drained by the scheduler.
type JobQueue interface {
	Enqueue(ctx context.Context, entry QueueEntry) error
	// NextPending returns the oldest outstanding entry, or nil when the
	// queue is empty.
	NextPending(ctx context.Context) (*QueueEntry, error)
	Remove(ctx context.Context, jobID string) error
}

// Provider performs the actual text-to-audio call.
type Provider interface {
	Name() string
	// ListVoices returns the available voices, falling back to a fixed
	// built-in list when a remote lookup fails.
	ListVoices(ctx context.Context) ([]Voice, error)
	// Synthesize returns non-empty audio for the given text. Failures are
	// classified as transient or fatal; an empty result is fatal.
	Synthesize(ctx context.Context, text string, voice VoiceSelector, opts AudioOptions) ([]byte, error)
}

// ObjectStore is a key/value blob store holding finished audio.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// Preprocessor is the text-preprocessing collaborator. Both operations are
// consumed as pure functions.
type Preprocessor interface {
	Process(text string) string
	SplitIntoChunks(text string, maxLen int) []string
}
