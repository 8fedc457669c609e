// Package pipeline drives chunk-wise synthesis of long text and reassembles
// the per-chunk audio into one contiguous buffer.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/synthesis-service/internal/core"
)

// Log formats.
const (
	logFmtChunkSynthesized = "Synthesized chunk %d/%d (%d bytes)"
	errFmtChunkFailed      = "chunk %d/%d failed: %w"
)

// ProgressFunc receives the pipeline's completion percentage, 0 to 100.
type ProgressFunc func(percent int)

// Pipeline splits text into sentence-aligned chunks and synthesizes them
// strictly in sequence, respecting provider rate limits. Chunk audio is
// concatenated in order; any chunk failure fails the whole run, so no partial
// audio is ever returned as a success.
type Pipeline struct {
	provider    core.Provider
	pre         core.Preprocessor
	maxChunkLen int
	chunkDelay  time.Duration
	log         *logger.Logger
}

// New creates a pipeline over the given provider and preprocessor.
func New(
	provider core.Provider,
	pre core.Preprocessor,
	maxChunkLen int,
	chunkDelay time.Duration,
	log *logger.Logger,
) *Pipeline {
	return &Pipeline{
		provider:    provider,
		pre:         pre,
		maxChunkLen: maxChunkLen,
		chunkDelay:  chunkDelay,
		log:         log,
	}
}

// ProviderName exposes the underlying provider identity for fingerprinting.
func (p *Pipeline) ProviderName() string {
	return p.provider.Name()
}

// Run synthesizes the request text chunk by chunk and returns the
// concatenated audio. Text that fits in a single chunk degenerates to one
// direct provider call. onProgress may be nil.
func (p *Pipeline) Run(
	ctx context.Context,
	req *core.SynthesisRequest,
	onProgress ProgressFunc,
) ([]byte, error) {
	chunks := p.pre.SplitIntoChunks(req.Text, p.maxChunkLen)
	if len(chunks) == 0 {
		return nil, core.ErrTextEmpty
	}

	var buffer bytes.Buffer

	for chunkIndex, chunk := range chunks {
		if chunkIndex > 0 && p.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("pipeline canceled: %w", ctx.Err())
			case <-time.After(p.chunkDelay):
			}
		}

		chunkAudio, err := p.provider.Synthesize(ctx, chunk, req.Voice, req.Audio)
		if err != nil {
			return nil, fmt.Errorf(errFmtChunkFailed, chunkIndex+1, len(chunks), err)
		}

		buffer.Write(chunkAudio)

		p.log.Info(logFmtChunkSynthesized, chunkIndex+1, len(chunks), len(chunkAudio))

		if onProgress != nil {
			onProgress((chunkIndex + 1) * 100 / len(chunks))
		}
	}

	return buffer.Bytes(), nil
}
