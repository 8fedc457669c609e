// Package provider implements the synthesis provider variants and the
// transient-failure retry policy shared by all of them.
package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/synthesis-service/internal/config"
	"github.com/book-expert/synthesis-service/internal/core"
)

// Fatal provider errors.
var (
	// ErrNoAudioContent indicates a synthesis call that returned an empty
	// result. An empty result is always fatal.
	ErrNoAudioContent = errors.New("no audio content")
	// ErrTextEmpty indicates an empty synthesis input.
	ErrTextEmpty = errors.New("text cannot be empty")
)

// TransientError marks a provider failure expected to resolve after a short
// delay, such as a model warming up or a rate limit. The retry wrapper grants
// such failures exactly one delayed retry before escalating to fatal.
type TransientError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	return "transient provider failure: " + e.Reason
}

// IsTransient reports whether err is classified as transient.
func IsTransient(err error) bool {
	var transientErr *TransientError

	return errors.As(err, &transientErr)
}

// builtinVoices is the fixed fallback list used when a remote voice lookup
// fails.
func builtinVoices() []core.Voice {
	return []core.Voice{
		{Name: "en-US-standard-a", LanguageCode: "en-US", Gender: "female"},
		{Name: "en-US-standard-b", LanguageCode: "en-US", Gender: "male"},
		{Name: "en-GB-standard-a", LanguageCode: "en-GB", Gender: "female"},
	}
}

// New resolves the configured provider kind to a concrete provider, wrapped
// with the single-retry policy. The kind enumeration is closed; config
// validation rejects anything else before this point.
func New(cfg *config.Config, log *logger.Logger) (core.Provider, error) {
	var inner core.Provider

	switch cfg.Provider.Kind {
	case config.ProviderCloud:
		inner = NewCloud(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.ProviderTimeout())
	case config.ProviderInference:
		inner = NewInference(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Model, cfg.ProviderTimeout())
	case config.ProviderMock:
		inner = NewMock()
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProviderKind, cfg.Provider.Kind)
	}

	return NewRetrying(inner, cfg.RetryBackoff(), log), nil
}
