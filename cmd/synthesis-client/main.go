// main package for the synthesis command-line client. It composes the
// orchestrator in-process and performs one synchronous or streaming
// synthesis, or lists the provider's voices.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/book-expert/logger"
	"github.com/redis/go-redis/v9"

	"github.com/book-expert/synthesis-service/internal/cache"
	"github.com/book-expert/synthesis-service/internal/config"
	"github.com/book-expert/synthesis-service/internal/core"
	"github.com/book-expert/synthesis-service/internal/format"
	"github.com/book-expert/synthesis-service/internal/jobstore"
	"github.com/book-expert/synthesis-service/internal/orchestrator"
	"github.com/book-expert/synthesis-service/internal/pipeline"
	"github.com/book-expert/synthesis-service/internal/provider"
	"github.com/book-expert/synthesis-service/internal/text"
)

// Flag names.
const (
	flagText    = "text"
	flagOutput  = "output"
	flagStream  = "stream"
	flagVoices  = "voices"
	flagLang    = "language"
	flagVoice   = "voice"
	flagCaller  = "caller"
	defaultLang = "en-US"
)

// Flag descriptions.
const (
	flagTextDesc   = "Text to convert to speech"
	flagOutputDesc = "Output file path (.wav)"
	flagStreamDesc = "Synthesize through the chunking pipeline"
	flagVoicesDesc = "List available voices and exit"
	flagLangDesc   = "Voice language code"
	flagVoiceDesc  = "Voice name"
	flagCallerDesc = "Caller id recorded with the request"
)

// ErrTextRequired indicates that no action flag was provided.
var ErrTextRequired = errors.New("either --text or --voices must be provided")

// Messages.
const (
	logFmtSynthesized  = "Synthesized %s of audio to %s"
	logFmtCacheServed  = " (served from cache)"
	clientLogFile      = "synthesis-client.log"
	defaultOutputFile  = "output.wav"
	outputFilePerms    = 0o600
	voiceListTemplate  = "%-24s %-8s %s\n"
	voiceListHeaderFmt = "Voices for provider '%s':\n"
)

type appFlags struct {
	text   string
	output string
	lang   string
	voice  string
	caller string
	stream bool
	voices bool
}

func parseFlags() appFlags {
	var flags appFlags

	flag.StringVar(&flags.text, flagText, "", flagTextDesc)
	flag.StringVar(&flags.output, flagOutput, defaultOutputFile, flagOutputDesc)
	flag.StringVar(&flags.lang, flagLang, defaultLang, flagLangDesc)
	flag.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flag.StringVar(&flags.caller, flagCaller, "", flagCallerDesc)
	flag.BoolVar(&flags.stream, flagStream, false, flagStreamDesc)
	flag.BoolVar(&flags.voices, flagVoices, false, flagVoicesDesc)
	flag.Parse()

	return flags
}

func run() error {
	flags := parseFlags()

	log, err := logger.New(os.TempDir(), clientLogFile)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	cfg, err := config.Load(log)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()

	synthesizer, err := buildOrchestrator(cfg, log)
	if err != nil {
		return err
	}

	if flags.voices {
		return listVoices(ctx, synthesizer, cfg)
	}

	if flags.text == "" {
		return ErrTextRequired
	}

	return synthesizeToFile(ctx, synthesizer, flags)
}

// buildOrchestrator wires the synchronous composition. The cache degrades to
// a no-op when Redis is unreachable, so the client works without it.
func buildOrchestrator(cfg *config.Config, log *logger.Logger) (*orchestrator.Orchestrator, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	synthProvider, err := provider.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider: %w", err)
	}

	preprocessor := text.NewPreprocessor()
	synthPipeline := pipeline.New(
		synthProvider,
		preprocessor,
		cfg.Pipeline.MaxChunkChars,
		cfg.ChunkDelay(),
		log,
	)

	return orchestrator.New(
		synthProvider,
		cache.New(redisClient, cfg.Redis.KeyPrefix, log),
		jobstore.New(redisClient, cfg.Redis.KeyPrefix, cfg.JobTTL()),
		jobstore.NewQueue(redisClient, cfg.Redis.KeyPrefix, cfg.JobTTL()),
		preprocessor,
		synthPipeline,
		cfg.CacheTTL(),
		log,
	), nil
}

func listVoices(ctx context.Context, synthesizer *orchestrator.Orchestrator, cfg *config.Config) error {
	voices, err := synthesizer.ListVoices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list voices: %w", err)
	}

	fmt.Printf(voiceListHeaderFmt, cfg.Provider.Kind)

	for _, voice := range voices {
		fmt.Printf(voiceListTemplate, voice.Name, voice.LanguageCode, voice.Gender)
	}

	return nil
}

func synthesizeToFile(ctx context.Context, synthesizer *orchestrator.Orchestrator, flags appFlags) error {
	req := core.SynthesisRequest{
		Text: flags.text,
		Voice: core.VoiceSelector{
			LanguageCode: flags.lang,
			Name:         flags.voice,
			Gender:       "",
		},
		Audio: core.AudioOptions{
			Encoding:        "wav",
			SpeakingRate:    0,
			Pitch:           0,
			VolumeGainDB:    0,
			SampleRateHertz: 0,
		},
		Async:     false,
		Streaming: flags.stream,
	}

	resp, err := synthesizer.Synthesize(ctx, req, flags.caller)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	writeErr := os.WriteFile(flags.output, resp.Audio, outputFilePerms)
	if writeErr != nil {
		return fmt.Errorf("failed to write audio file: %w", writeErr)
	}

	suffix := ""
	if resp.Cached {
		suffix = logFmtCacheServed
	}

	fmt.Printf(logFmtSynthesized+suffix+"\n", format.FileSize(int64(len(resp.Audio))), flags.output)

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client exited with error: %v\n", err)
		os.Exit(1)
	}
}
