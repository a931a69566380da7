package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTransientPrefix = "boxtal:transient:"

// RedisTransientStore keeps ad-hoc notice payloads in Redis and lets key
// expiry do the cleanup.
type RedisTransientStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisTransientStore connects to addr and verifies the connection.
func NewRedisTransientStore(addr, password string, db int) (*RedisTransientStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisTransientStoreWithClient(client, ""), nil
}

// NewRedisTransientStoreWithClient wraps an existing client. An empty prefix
// selects the default one.
func NewRedisTransientStoreWithClient(client *redis.Client, keyPrefix string) *RedisTransientStore {
	if keyPrefix == "" {
		keyPrefix = defaultTransientPrefix
	}
	return &RedisTransientStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisTransientStore) SetTransient(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("SetTransient %s: encode: %w", key, err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("SetTransient %s: %w", key, err)
	}
	return nil
}

func (s *RedisTransientStore) GetTransient(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("GetTransient %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("GetTransient %s: decode: %w", key, err)
	}
	return true, nil
}

func (s *RedisTransientStore) DeleteTransient(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("DeleteTransient %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisTransientStore) Close() error {
	return s.client.Close()
}
