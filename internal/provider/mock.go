package provider

import (
	"context"
	"math"

	"github.com/book-expert/synthesis-service/internal/audio"
	"github.com/book-expert/synthesis-service/internal/core"
)

// mockName identifies the mock provider in fingerprints and logs.
const mockName = "mock"

// Mock synthesis parameters. Output length scales with input length so that
// chunked pipelines exercise realistic reassembly.
const (
	mockSampleRate    = 22050
	mockChannels      = 1
	mockToneFrequency = 440.0
	mockAmplitude     = 0.3
	mockMillisPerRune = 40
)

// Mock generates deterministic sine-tone WAV audio instead of calling a real
// synthesis backend. It is an explicitly selected provider for testing and
// degraded-mode operation, never a silent fallback for a failing real
// provider.
type Mock struct {
	sampleRate int
}

// NewMock creates a mock provider at the default sample rate.
func NewMock() *Mock {
	return &Mock{sampleRate: mockSampleRate}
}

// Name identifies this provider.
func (m *Mock) Name() string {
	return mockName
}

// ListVoices returns the built-in voice list.
func (m *Mock) ListVoices(_ context.Context) ([]core.Voice, error) {
	return builtinVoices(), nil
}

// Synthesize produces a WAV tone whose duration is proportional to the text
// length. Identical inputs yield identical bytes.
func (m *Mock) Synthesize(
	ctx context.Context,
	text string,
	_ core.VoiceSelector,
	opts core.AudioOptions,
) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	sampleRate := m.sampleRate
	if opts.SampleRateHertz > 0 {
		sampleRate = opts.SampleRateHertz
	}

	durationMillis := len([]rune(text)) * mockMillisPerRune
	sampleCount := sampleRate * durationMillis / 1000

	samples := make([]byte, 0, sampleCount*2)

	for i := range sampleCount {
		value := mockAmplitude * math.Sin(2*math.Pi*mockToneFrequency*float64(i)/float64(sampleRate))
		sample := int16(value * math.MaxInt16)

		samples = append(samples, byte(sample), byte(sample>>8))
	}

	return audio.EncodePCM16(samples, sampleRate, mockChannels), nil
}
