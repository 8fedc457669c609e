// Package core defines the domain types and interfaces for the synthesis service.
package core

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Limits for incoming synthesis requests.
const (
	MaxTextLength = 5000

	MinSpeakingRate = 0.25
	MaxSpeakingRate = 4.0
	MinPitch        = -20.0
	MaxPitch        = 20.0
	MinVolumeGainDB = -96.0
	MaxVolumeGainDB = 16.0
	MaxSampleRate   = 48000
)

// Progress bounds for a job.
const (
	ProgressMin = 0
	ProgressMax = 100
)

// Validation errors.
var (
	// ErrTextEmpty indicates that the request text is empty.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrTextTooLong indicates that the request text exceeds MaxTextLength.
	ErrTextTooLong = errors.New("text exceeds maximum length")
	// ErrSpeakingRateRange indicates a speaking rate outside [0.25, 4.0].
	ErrSpeakingRateRange = errors.New("speaking rate out of range")
	// ErrPitchRange indicates a pitch outside [-20.0, 20.0] semitones.
	ErrPitchRange = errors.New("pitch out of range")
	// ErrVolumeGainRange indicates a volume gain outside [-96.0, 16.0] dB.
	ErrVolumeGainRange = errors.New("volume gain out of range")
	// ErrSampleRateRange indicates a non-positive or excessive sample rate.
	ErrSampleRateRange = errors.New("sample rate out of range")
)

// Job lifecycle errors.
var (
	// ErrJobNotFound indicates an unknown or expired job id. Callers cannot
	// distinguish an expired job from one that never existed.
	ErrJobNotFound = errors.New("job not found")
	// ErrStatusRegression indicates an update that would move a job status
	// backward in its lifecycle.
	ErrStatusRegression = errors.New("job status cannot move backward")
	// ErrProgressRegression indicates an update that would lower a job's
	// progress before it reached a terminal status.
	ErrProgressRegression = errors.New("job progress cannot decrease")
)

// JobStatus is the lifecycle state of a synthesis job.
type JobStatus string

// Job lifecycle states. Transitions are monotonic:
// pending -> processing -> completed|failed. Terminal states never change.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Rank orders statuses along the lifecycle so that monotonicity can be
// enforced by comparison. Both terminal states share the highest rank.
func (s JobStatus) Rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether the status is a final lifecycle state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// VoiceSelector identifies the voice to synthesize with.
type VoiceSelector struct {
	LanguageCode string `json:"language_code"`
	Name         string `json:"name"`
	Gender       string `json:"gender,omitempty"`
}

// AudioOptions controls the audio rendition of the synthesized speech.
type AudioOptions struct {
	Encoding        string  `json:"encoding"`
	SpeakingRate    float64 `json:"speaking_rate"`
	Pitch           float64 `json:"pitch"`
	VolumeGainDB    float64 `json:"volume_gain_db"`
	SampleRateHertz int     `json:"sample_rate_hertz"`
}

// SynthesisRequest is a single text-to-speech request. It is immutable once
// accepted; the job snapshot stores it verbatim.
type SynthesisRequest struct {
	Text      string        `json:"text"`
	Voice     VoiceSelector `json:"voice"`
	Audio     AudioOptions  `json:"audio"`
	Async     bool          `json:"async,omitempty"`
	Streaming bool          `json:"streaming,omitempty"`
}

// Validate rejects malformed or oversized requests before any job or cache
// interaction takes place.
func (r *SynthesisRequest) Validate() error {
	if r.Text == "" {
		return ErrTextEmpty
	}

	if textLen := utf8.RuneCountInString(r.Text); textLen > MaxTextLength {
		return fmt.Errorf("%w: %d > %d characters", ErrTextTooLong, textLen, MaxTextLength)
	}

	return r.Audio.validate()
}

func (o *AudioOptions) validate() error {
	if o.SpeakingRate != 0 && (o.SpeakingRate < MinSpeakingRate || o.SpeakingRate > MaxSpeakingRate) {
		return fmt.Errorf("%w: got %.2f", ErrSpeakingRateRange, o.SpeakingRate)
	}

	if o.Pitch < MinPitch || o.Pitch > MaxPitch {
		return fmt.Errorf("%w: got %.2f", ErrPitchRange, o.Pitch)
	}

	if o.VolumeGainDB < MinVolumeGainDB || o.VolumeGainDB > MaxVolumeGainDB {
		return fmt.Errorf("%w: got %.2f", ErrVolumeGainRange, o.VolumeGainDB)
	}

	if o.SampleRateHertz < 0 || o.SampleRateHertz > MaxSampleRate {
		return fmt.Errorf("%w: got %d", ErrSampleRateRange, o.SampleRateHertz)
	}

	return nil
}

// Voice describes one voice a provider can synthesize with.
type Voice struct {
	Name         string `json:"name"`
	LanguageCode string `json:"language_code"`
	Gender       string `json:"gender,omitempty"`
}

// JobResult holds the outcome of a completed synthesis job. The audio bytes
// themselves live in the object store under DownloadReference.
type JobResult struct {
	AudioLengthBytes  int     `json:"audio_length_bytes"`
	DurationSeconds   float64 `json:"duration_seconds"`
	DownloadReference string  `json:"download_reference"`
}

// SynthesisJob is a unit of asynchronous synthesis work. It is created by the
// orchestrator on async submission and mutated only by the scheduler.
type SynthesisJob struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id,omitempty"`
	Status      JobStatus        `json:"status"`
	Progress    int              `json:"progress"`
	Request     SynthesisRequest `json:"request"`
	Result      *JobResult       `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// JobUpdate is a partial update applied to a stored job. Nil fields are left
// untouched by the merge.
type JobUpdate struct {
	Status      *JobStatus
	Progress    *int
	Result      *JobResult
	Error       *string
	CompletedAt *time.Time
}

// QueueEntry is the pending-work marker created alongside a SynthesisJob. It
// is deleted once a worker claims the job.
type QueueEntry struct {
	JobID      string    `json:"job_id"`
	UserID     string    `json:"user_id,omitempty"`
	Priority   int       `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
