package storage

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values as fields of one Redis hash, so several machines
// can share a session.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore wraps an existing client. key names the hash.
func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	return &RedisStore{rdb: rdb, key: key}
}

// OpenRedis connects to redisURL (e.g. "redis://localhost:6379/0") and
// verifies the connection.
func OpenRedis(ctx context.Context, redisURL, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStore(rdb, key), nil
}

func (r *RedisStore) Get(ctx context.Context, field string) (string, bool, error) {
	v, err := r.rdb.HGet(ctx, r.key, field).Result()
	if stderrors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis HGET %s: %w", field, err)
	}
	return v, true, nil
}

func (r *RedisStore) Put(ctx context.Context, field, value string) error {
	if err := r.rdb.HSet(ctx, r.key, field, value).Err(); err != nil {
		return fmt.Errorf("redis HSET %s: %w", field, err)
	}
	return nil
}

func (r *RedisStore) Remove(ctx context.Context, field string) error {
	if err := r.rdb.HDel(ctx, r.key, field).Err(); err != nil {
		return fmt.Errorf("redis HDEL %s: %w", field, err)
	}
	return nil
}

// Apply runs every write in a MULTI/EXEC transaction.
func (r *RedisStore) Apply(ctx context.Context, b Batch) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(b.Puts) > 0 {
			args := make([]any, 0, 2*len(b.Puts))
			for k, v := range b.Puts {
				args = append(args, k, v)
			}
			pipe.HSet(ctx, r.key, args...)
		}
		if len(b.Removes) > 0 {
			pipe.HDel(ctx, r.key, b.Removes...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis session transaction: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Clear deletes the whole hash.
func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis session clear: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

var (
	_ Store   = (*RedisStore)(nil)
	_ Batcher = (*RedisStore)(nil)
	_ Clearer = (*RedisStore)(nil)
)
