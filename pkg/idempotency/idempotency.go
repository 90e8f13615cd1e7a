// Package idempotency claims keys for a bounded time so that a unit of work
// (a provider webhook event, a sweep interval) runs once across replicas.
//
// Redis SETNX backs the claims in production; an in-process go-cache store
// serves single-instance deployments and tests.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

var (
	ErrEmptyKey      = errors.New("idempotency key is empty")
	ErrClaimFailed   = errors.New("failed to claim idempotency key")
	ErrReleaseFailed = errors.New("failed to release idempotency key")
	ErrExtendFailed  = errors.New("failed to extend idempotency key")
)

// Config holds claim settings.
type Config struct {
	TTL    time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"72h"`
	Prefix string        `env:"IDEMPOTENCY_PREFIX" envDefault:"labgrid:idem:"`
}

// Store claims and releases keys.
type Store interface {
	// Claim reports true if the key was free and is now held for ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees a held key so the work can be retried.
	Release(ctx context.Context, key string) error
	// Extend holds key for ttl from now, claiming it again if it already expired.
	Extend(ctx context.Context, key string, ttl time.Duration) error
}

// Key joins parts into a claim key, e.g. Key("stripe", "evt_1") = "stripe:evt_1".
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// RedisStore claims keys with SET NX PX.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if client == nil {
		panic("idempotency: redis client is required")
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	ok, err := s.client.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, errors.Join(ErrClaimFailed, err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrReleaseFailed, err)
	}
	return nil
}

func (s *RedisStore) Extend(ctx context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.client.Set(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return errors.Join(ErrExtendFailed, err)
	}
	return nil
}

// MemoryStore claims keys in process memory.
type MemoryStore struct {
	c *cache.Cache
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{c: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	// Add fails when an unexpired item exists, which makes it the atomic claim.
	if err := s.c.Add(key, struct{}{}, ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}

func (s *MemoryStore) Extend(_ context.Context, key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.c.Set(key, struct{}{}, ttl)
	return nil
}
