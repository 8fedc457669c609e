package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/synthesis-service/internal/core"
	"github.com/book-expert/synthesis-service/internal/pipeline"
	"github.com/book-expert/synthesis-service/internal/text"
)

var errSynthesisBroken = errors.New("synthesis broken")

// recordingProvider echoes each chunk back as its audio bytes and records the
// chunks in call order. failAt makes the n-th call fail (1-based, 0 disables).
type recordingProvider struct {
	chunks []string
	failAt int
}

func (p *recordingProvider) Name() string {
	return "recording"
}

func (p *recordingProvider) ListVoices(_ context.Context) ([]core.Voice, error) {
	return nil, nil
}

func (p *recordingProvider) Synthesize(
	_ context.Context,
	chunk string,
	_ core.VoiceSelector,
	_ core.AudioOptions,
) ([]byte, error) {
	p.chunks = append(p.chunks, chunk)
	if p.failAt > 0 && len(p.chunks) == p.failAt {
		return nil, errSynthesisBroken
	}

	return []byte(chunk), nil
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "pipeline-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

func newTestRequest(reqText string) *core.SynthesisRequest {
	return &core.SynthesisRequest{
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

func TestRunSingleChunk(t *testing.T) {
	t.Parallel()

	prov := &recordingProvider{chunks: nil, failAt: 0}
	pipe := pipeline.New(prov, text.NewPreprocessor(), 500, 0, newTestLogger(t))

	audio, err := pipe.Run(context.Background(), newTestRequest("Short text."), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("Short text."), audio)
	assert.Len(t, prov.chunks, 1)
}

func TestRunChunksInOrderAndConcatenates(t *testing.T) {
	t.Parallel()

	prov := &recordingProvider{chunks: nil, failAt: 0}
	pipe := pipeline.New(prov, text.NewPreprocessor(), 30, 0, newTestLogger(t))

	input := "First sentence here. Second sentence here. Third sentence here."

	audio, err := pipe.Run(context.Background(), newTestRequest(input), nil)
	require.NoError(t, err)
	require.Greater(t, len(prov.chunks), 1)

	// The concatenated audio is exactly the chunks in submission order, and
	// the chunks reassemble the input.
	assert.Equal(t, strings.Join(prov.chunks, ""), string(audio))
	assert.Equal(t, input, strings.Join(prov.chunks, " "))
}

func TestRunReportsProgress(t *testing.T) {
	t.Parallel()

	prov := &recordingProvider{chunks: nil, failAt: 0}
	pipe := pipeline.New(prov, text.NewPreprocessor(), 30, 0, newTestLogger(t))

	var reported []int

	input := "First sentence here. Second sentence here. Third sentence here."

	_, err := pipe.Run(context.Background(), newTestRequest(input), func(percent int) {
		reported = append(reported, percent)
	})
	require.NoError(t, err)

	require.Len(t, reported, len(prov.chunks))
	assert.IsNonDecreasing(t, reported)
	assert.Equal(t, 100, reported[len(reported)-1])
}

func TestRunChunkFailureFailsWholeRun(t *testing.T) {
	t.Parallel()

	prov := &recordingProvider{chunks: nil, failAt: 2}
	pipe := pipeline.New(prov, text.NewPreprocessor(), 30, 0, newTestLogger(t))

	input := "First sentence here. Second sentence here. Third sentence here."

	audio, err := pipe.Run(context.Background(), newTestRequest(input), nil)
	require.ErrorIs(t, err, errSynthesisBroken)
	assert.Nil(t, audio)
	assert.Contains(t, err.Error(), "chunk 2/")

	// No synthesis past the failed chunk.
	assert.Len(t, prov.chunks, 2)
}

func TestRunEmptyTextFails(t *testing.T) {
	t.Parallel()

	prov := &recordingProvider{chunks: nil, failAt: 0}
	pipe := pipeline.New(prov, text.NewPreprocessor(), 500, 0, newTestLogger(t))

	_, err := pipe.Run(context.Background(), newTestRequest("   "), nil)
	require.ErrorIs(t, err, core.ErrTextEmpty)
	assert.Empty(t, prov.chunks)
}

func TestProviderName(t *testing.T) {
	t.Parallel()

	prov := &recordingProvider{chunks: nil, failAt: 0}
	pipe := pipeline.New(prov, text.NewPreprocessor(), 500, 0, newTestLogger(t))

	assert.Equal(t, "recording", pipe.ProviderName())
}
