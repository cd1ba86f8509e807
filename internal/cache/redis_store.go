// Package cache provides the best-effort caches that sit in front of the
// template store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a byte-oriented key/value backend. Available reports whether
// calls reach a real backend; a disabled store misses on every read.
type Store interface {
	Available() bool
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr bumps the counter at key and refreshes its expiry.
	Incr(ctx context.Context, key string, ttl time.Duration) error
	// Counter reads the counter at key. A missing counter is zero.
	Counter(ctx context.Context, key string) (int64, error)
	// SetIfCounter writes value only while the counter at counterKey still
	// equals want. It reports whether the write happened.
	SetIfCounter(ctx context.Context, key string, value []byte, ttl time.Duration, counterKey string, want int64) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// RedisStore implements Store using Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Available() bool {
	return true
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete %v: %w", keys, err)
	}
	return nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("incr %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Counter(ctx context.Context, key string) (int64, error) {
	value, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get counter %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) SetIfCounter(ctx context.Context, key string, value []byte, ttl time.Duration, counterKey string, want int64) (bool, error) {
	written := false
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, counterKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != want {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		written = true
		return nil
	}, counterKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("set %s: %w", key, err)
	}
	return written, nil
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Disabled is the Store used when no cache is configured.
type Disabled struct{}

func (Disabled) Available() bool { return false }

func (Disabled) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (Disabled) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (Disabled) Delete(context.Context, ...string) error { return nil }

func (Disabled) Incr(context.Context, string, time.Duration) error { return nil }

func (Disabled) Counter(context.Context, string) (int64, error) { return 0, nil }

func (Disabled) SetIfCounter(context.Context, string, []byte, time.Duration, string, int64) (bool, error) {
	return false, nil
}

func (Disabled) Ping(context.Context) error { return nil }

func (Disabled) Close() error { return nil }

// Open returns a RedisStore for redisURL, or Disabled when it is empty.
func Open(redisURL string) (Store, error) {
	if redisURL == "" {
		return Disabled{}, nil
	}
	return NewRedisStore(redisURL)
}
