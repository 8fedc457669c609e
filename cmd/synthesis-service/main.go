// main package for the synthesis worker service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/book-expert/synthesis-service/internal/cache"
	"github.com/book-expert/synthesis-service/internal/config"
	"github.com/book-expert/synthesis-service/internal/jobstore"
	"github.com/book-expert/synthesis-service/internal/objectstore"
	"github.com/book-expert/synthesis-service/internal/pipeline"
	"github.com/book-expert/synthesis-service/internal/provider"
	"github.com/book-expert/synthesis-service/internal/scheduler"
	"github.com/book-expert/synthesis-service/internal/text"
)

const bootstrapLogFile = "synthesis-service-bootstrap.log"

const serviceLogFile = "synthesis-service.log"

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), bootstrapLogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, serviceLogFile)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScheduler(ctx, cfg, finalLog)
}

// runScheduler is the composition root: every collaborator is created here
// once and handed to its consumers by reference.
func runScheduler(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	defer func() {
		closeErr := redisClient.Close()
		if closeErr != nil {
			log.Warn("Failed to close redis client: %v", closeErr)
		}
	}()

	// The job store is a hard dependency; only the cache is fail-open.
	pingErr := redisClient.Ping(ctx).Err()
	if pingErr != nil {
		return fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, pingErr)
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to open JetStream context: %w", err)
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to open audio object store: %w", err)
	}

	synthProvider, err := provider.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build provider: %w", err)
	}

	preprocessor := text.NewPreprocessor()
	synthPipeline := pipeline.New(
		synthProvider,
		preprocessor,
		cfg.Pipeline.MaxChunkChars,
		cfg.ChunkDelay(),
		log,
	)

	cacheStore := cache.New(redisClient, cfg.Redis.KeyPrefix, log)
	jobs := jobstore.New(redisClient, cfg.Redis.KeyPrefix, cfg.JobTTL())
	queue := jobstore.NewQueue(redisClient, cfg.Redis.KeyPrefix, cfg.JobTTL())
	leases := scheduler.NewLeaseSet(cfg.LeaseTTL())

	workerLoop := scheduler.New(
		queue,
		jobs,
		cacheStore,
		audioStore,
		synthPipeline,
		leases,
		cfg.PollInterval(),
		cfg.CacheTTL(),
		log,
	)

	log.System(
		"Synthesis service initialized. Provider '%s', polling every %s.",
		synthProvider.Name(),
		cfg.PollInterval(),
	)

	err = workerLoop.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("scheduler stopped: %w", err)
	}

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
