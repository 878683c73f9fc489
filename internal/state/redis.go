package state

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/user/orderbot/internal/types"
)

const customerKeyPattern = "customer:*:chat"

// RedisStore keeps each session blob as a plain redis string under its
// customer key, without expiry.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// DialRedis connects to the server described by a redis:// URL.
func DialRedis(url string) (*RedisStore, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts)), nil
}

func (s *RedisStore) Get(ctx context.Context, key types.SessionKey) ([]byte, error) {
	data, err := s.client.Get(ctx, string(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key types.SessionKey, data []byte) error {
	if err := s.client.Set(ctx, string(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// List scans the keyspace for customer chat keys. SCAN may yield a key
// more than once, so results are deduplicated.
func (s *RedisStore) List(ctx context.Context) ([]types.SessionKey, error) {
	seen := make(map[string]bool)
	var keys []types.SessionKey
	iter := s.client.Scan(ctx, 0, customerKeyPattern, 100).Iterator()
	for iter.Next(ctx) {
		if key := iter.Val(); !seen[key] {
			seen[key] = true
			keys = append(keys, types.SessionKey(key))
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
