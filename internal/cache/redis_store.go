// Package cache provides a Redis-backed, fail-open TTL cache for synthesis
// results.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/redis/go-redis/v9"
)

// Log formats for degraded-cache warnings.
const (
	logFmtGetUnavailable    = "Cache get degraded to miss for key '%s': %v"
	logFmtSetUnavailable    = "Cache set skipped for key '%s': %v"
	logFmtDeleteUnavailable = "Cache delete skipped for key '%s': %v"
	logFmtExistsUnavailable = "Cache exists degraded to false for key '%s': %v"
	logFmtCorruptEntry      = "Discarding corrupt cache entry for key '%s': %v"
)

// envelope wraps binary payloads in a typed JSON structure so they round-trip
// byte-for-byte through the store. encoding/json base64-encodes the Data
// field.
type envelope struct {
	ContentType string    `json:"content_type"`
	Data        []byte    `json:"data"`
	StoredAt    time.Time `json:"stored_at"`
}

const audioContentType = "audio/wav"

// Store implements core.CacheStore on Redis. All backing-store failures are
// fail-open: Get reports absent, Set and Delete become no-ops, and a warning
// is the only observable effect.
type Store struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

// New creates a cache store namespaced under the given key prefix.
func New(client *redis.Client, prefix string, log *logger.Logger) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		log:    log,
	}
}

// Set stores a binary value under the key with the given TTL, overwriting any
// prior value.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	payload, err := json.Marshal(envelope{
		ContentType: audioContentType,
		Data:        value,
		StoredAt:    time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope: %w", err)
	}

	setErr := s.client.Set(ctx, s.namespaced(key), payload, ttl).Err()
	if setErr != nil {
		s.log.Warn(logFmtSetUnavailable, key, setErr)
	}

	return nil
}

// Get retrieves a value. The second return reports presence; an expired or
// missing key, a corrupt entry, and an unreachable store all read as absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, s.namespaced(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Warn(logFmtGetUnavailable, key, err)
		}

		return nil, false, nil
	}

	var entry envelope

	unmarshalErr := json.Unmarshal(payload, &entry)
	if unmarshalErr != nil {
		s.log.Warn(logFmtCorruptEntry, key, unmarshalErr)

		return nil, false, nil
	}

	return entry.Data, true, nil
}

// Delete removes a value. A missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.Del(ctx, s.namespaced(key)).Err()
	if err != nil {
		s.log.Warn(logFmtDeleteUnavailable, key, err)
	}

	return nil
}

// Exists reports whether the key currently holds a value.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, s.namespaced(key)).Result()
	if err != nil {
		s.log.Warn(logFmtExistsUnavailable, key, err)

		return false, nil
	}

	return count > 0, nil
}

// namespaced prefixes keys so cache entries cannot collide with unrelated
// data sharing the same Redis instance.
func (s *Store) namespaced(key string) string {
	return s.prefix + ":cache:" + key
}
