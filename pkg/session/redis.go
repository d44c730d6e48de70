package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "redditauth:session"

// RedisStore keeps session values in Redis, one key per value, each with the
// session ttl.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisStore connects to redisURL and pings it before returning.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return NewRedisStoreFromClient(rdb, ttl), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: defaultKeyPrefix}
}

func (s *RedisStore) key(sessionID, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, sessionID, key)
}

func (s *RedisStore) Set(ctx context.Context, sessionID, key, value string) error {
	if err := s.rdb.Set(ctx, s.key(sessionID, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("setting session value: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID, key string) (string, error) {
	v, err := s.rdb.Get(ctx, s.key(sessionID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fetching session value: %w", err)
	}
	return v, nil
}

// Take uses GETDEL so two concurrent callbacks cannot both observe the value.
func (s *RedisStore) Take(ctx context.Context, sessionID, key string) (string, error) {
	v, err := s.rdb.GetDel(ctx, s.key(sessionID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consuming session value: %w", err)
	}
	return v, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.key(sessionID, key)
	}
	if err := s.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("deleting session values: %w", err)
	}
	return nil
}

// Health checks the Redis connection.
func (s *RedisStore) Health(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close shuts down the Redis client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
