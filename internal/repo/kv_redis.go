package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores every key as a field of a single Redis hash so a deployment
// can share one Redis with other services.
type RedisKV struct {
	redis   *redis.Client
	hashKey string
}

// NewRedisKV returns a KV over client. An empty namespace defaults to
// "shopping-assistant:kv".
func NewRedisKV(client *redis.Client, namespace string) *RedisKV {
	if namespace == "" {
		namespace = "shopping-assistant:kv"
	}
	return &RedisKV{redis: client, hashKey: namespace}
}

// OpenRedis parses url (redis://...) and verifies connectivity.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.redis.HGet(ctx, r.hashKey, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return v, nil
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return errors.New("kv: empty key")
	}
	return r.redis.HSet(ctx, r.hashKey, key, value).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.redis.HDel(ctx, r.hashKey, key).Err()
}
