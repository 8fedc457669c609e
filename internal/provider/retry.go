package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/synthesis-service/internal/core"
)

// Log formats for the retry wrapper.
const (
	logFmtTransientRetry = "Transient failure from provider '%s', retrying in %s: %v"
	errFmtAfterRetry     = "synthesis failed after transient-failure retry: %s"
)

// Retrying wraps a provider with the transient-failure policy: a transient
// error earns exactly one delayed retry, after which any failure is fatal.
// The transient classification never leaks to callers; a failed retry
// surfaces as a plain error carrying the underlying message.
type Retrying struct {
	inner   core.Provider
	backoff time.Duration
	log     *logger.Logger
}

// NewRetrying wraps inner with the fixed-backoff single-retry policy.
func NewRetrying(inner core.Provider, backoff time.Duration, log *logger.Logger) *Retrying {
	return &Retrying{
		inner:   inner,
		backoff: backoff,
		log:     log,
	}
}

// Name reports the wrapped provider's identity. The wrapper is invisible in
// fingerprints.
func (r *Retrying) Name() string {
	return r.inner.Name()
}

// ListVoices delegates to the wrapped provider.
func (r *Retrying) ListVoices(ctx context.Context) ([]core.Voice, error) {
	return r.inner.ListVoices(ctx)
}

// Synthesize performs one synthesis call, retrying once after the configured
// backoff when the failure is transient.
func (r *Retrying) Synthesize(
	ctx context.Context,
	text string,
	voice core.VoiceSelector,
	opts core.AudioOptions,
) ([]byte, error) {
	audio, err := r.inner.Synthesize(ctx, text, voice, opts)
	if err == nil {
		return audio, nil
	}

	if !IsTransient(err) {
		return nil, err
	}

	r.log.Warn(logFmtTransientRetry, r.inner.Name(), r.backoff, err)

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("synthesis canceled during retry backoff: %w", ctx.Err())
	case <-time.After(r.backoff):
	}

	audio, retryErr := r.inner.Synthesize(ctx, text, voice, opts)
	if retryErr != nil {
		// Escalate to fatal; drop the transient classification so it
		// cannot leak as a distinct error kind.
		return nil, fmt.Errorf(errFmtAfterRetry, retryErr)
	}

	return audio, nil
}
