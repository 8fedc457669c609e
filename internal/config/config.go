// Package config provides the configuration structure for the synthesis service.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// ErrUnknownProviderKind indicates a provider kind outside the closed set
// {cloud, inference, mock}.
var ErrUnknownProviderKind = errors.New("unknown provider kind")

// ProviderKind selects the synthesis provider. The set is closed and resolved
// once at startup.
type ProviderKind string

// Supported provider kinds.
const (
	ProviderCloud     ProviderKind = "cloud"
	ProviderInference ProviderKind = "inference"
	ProviderMock      ProviderKind = "mock"
)

// RedisConfig holds the connection settings for the Redis-backed stores.
type RedisConfig struct {
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

// NATSConfig holds the configuration for the NATS audio object store.
type NATSConfig struct {
	URL                    string `toml:"url"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// ProviderConfig holds the synthesis provider selection and its settings.
type ProviderConfig struct {
	Kind                ProviderKind `toml:"kind"`
	BaseURL             string       `toml:"base_url"`
	APIKey              string       `toml:"api_key"`
	Model               string       `toml:"model"`
	TimeoutSeconds      int          `toml:"timeout_seconds"`
	RetryBackoffSeconds int          `toml:"retry_backoff_seconds"`
}

// SchedulerConfig holds the worker loop settings.
type SchedulerConfig struct {
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	LeaseTTLSeconds     int `toml:"lease_ttl_seconds"`
	JobTTLMinutes       int `toml:"job_ttl_minutes"`
}

// PipelineConfig holds the chunked synthesis settings.
type PipelineConfig struct {
	MaxChunkChars          int `toml:"max_chunk_chars"`
	ChunkDelayMilliseconds int `toml:"chunk_delay_milliseconds"`
}

// CacheConfig holds the result cache settings.
type CacheConfig struct {
	TTLMinutes int `toml:"ttl_minutes"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Redis     RedisConfig     `toml:"redis"`
	NATS      NATSConfig      `toml:"nats"`
	Provider  ProviderConfig  `toml:"provider"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Cache     CacheConfig     `toml:"cache"`
	Paths     PathsConfig     `toml:"paths"`
}

// Defaults applied when a section leaves a value unset.
const (
	DefaultProviderTimeoutSeconds = 30
	DefaultRetryBackoffSeconds    = 10
	DefaultPollIntervalSeconds    = 1
	DefaultLeaseTTLSeconds        = 120
	DefaultJobTTLMinutes          = 60
	DefaultMaxChunkChars          = 500
	DefaultCacheTTLMinutes        = 60
	DefaultKeyPrefix              = "synthesis"
)

// Load loads the configuration for the synthesis service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	validationErr := cfg.Validate()
	if validationErr != nil {
		return nil, validationErr
	}

	return &cfg, nil
}

// ApplyDefaults fills in unset values with the service defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = DefaultProviderTimeoutSeconds
	}

	if c.Provider.RetryBackoffSeconds <= 0 {
		c.Provider.RetryBackoffSeconds = DefaultRetryBackoffSeconds
	}

	if c.Scheduler.PollIntervalSeconds <= 0 {
		c.Scheduler.PollIntervalSeconds = DefaultPollIntervalSeconds
	}

	if c.Scheduler.LeaseTTLSeconds <= 0 {
		c.Scheduler.LeaseTTLSeconds = DefaultLeaseTTLSeconds
	}

	if c.Scheduler.JobTTLMinutes <= 0 {
		c.Scheduler.JobTTLMinutes = DefaultJobTTLMinutes
	}

	if c.Pipeline.MaxChunkChars <= 0 {
		c.Pipeline.MaxChunkChars = DefaultMaxChunkChars
	}

	if c.Cache.TTLMinutes <= 0 {
		c.Cache.TTLMinutes = DefaultCacheTTLMinutes
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = DefaultKeyPrefix
	}
}

// Validate rejects configurations outside the closed provider enumeration.
func (c *Config) Validate() error {
	switch c.Provider.Kind {
	case ProviderCloud, ProviderInference, ProviderMock:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProviderKind, c.Provider.Kind)
	}
}

// ProviderTimeout returns the per-call provider timeout as a duration.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSeconds) * time.Second
}

// RetryBackoff returns the transient-failure retry delay as a duration.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Provider.RetryBackoffSeconds) * time.Second
}

// PollInterval returns the scheduler tick interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Scheduler.PollIntervalSeconds) * time.Second
}

// LeaseTTL returns the processing lease expiry as a duration.
func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.Scheduler.LeaseTTLSeconds) * time.Second
}

// JobTTL returns the job record retention as a duration.
func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.Scheduler.JobTTLMinutes) * time.Minute
}

// CacheTTL returns the result cache retention as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

// ChunkDelay returns the fixed inter-chunk delay as a duration.
func (c *Config) ChunkDelay() time.Duration {
	return time.Duration(c.Pipeline.ChunkDelayMilliseconds) * time.Millisecond
}
