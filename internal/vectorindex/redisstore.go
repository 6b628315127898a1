package vectorindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces index keys in a shared Redis.
const DefaultRedisPrefix = "rulesbot:"

// RedisStore keeps index blobs in Redis, one key per game. Redis SET is
// atomic so readers never observe a partial blob.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed blob store. An empty prefix falls
// back to DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(gameID int64) string {
	return fmt.Sprintf("%sindex:%d", s.prefix, gameID)
}

// Load reads the blob for a game. Returns ErrNoIndex when none exists.
func (s *RedisStore) Load(ctx context.Context, gameID int64) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoIndex
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read index from redis: %w", err)
	}
	return data, nil
}

// Save writes the blob for a game.
func (s *RedisStore) Save(ctx context.Context, gameID int64, blob []byte) error {
	if err := s.client.Set(ctx, s.key(gameID), blob, 0).Err(); err != nil {
		return fmt.Errorf("failed to write index to redis: %w", err)
	}
	return nil
}

// Delete removes the blob for a game.
func (s *RedisStore) Delete(ctx context.Context, gameID int64) error {
	if err := s.client.Del(ctx, s.key(gameID)).Err(); err != nil {
		return fmt.Errorf("failed to delete index from redis: %w", err)
	}
	return nil
}
