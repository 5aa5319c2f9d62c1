package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Repository interface {
	// Count returns the current window counter and the time remaining until
	// the window resets. A missing key reads as zero with no TTL.
	Count(ctx context.Context, key string) (int, time.Duration, error)
	// Increment atomically bumps the window counter, starting the window TTL
	// on first use. Returns the counter value after the increment.
	Increment(ctx context.Context, key string, window time.Duration) (int, error)
}

type RedisRepository struct {
	client *redis.Client
}

func NewRepository(client *redis.Client) Repository {
	return &RedisRepository{client: client}
}

func (r *RedisRepository) Count(ctx context.Context, key string) (int, time.Duration, error) {
	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return 0, 0, fmt.Errorf("redis rate limit read failed: %w", err)
	}

	count, err := getCmd.Int()
	if err == redis.Nil {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("redis rate limit counter parse failed: %w", err)
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = 0
	}
	return count, ttl, nil
}

func (r *RedisRepository) Increment(ctx context.Context, key string, window time.Duration) (int, error) {
	pipe := r.client.TxPipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis rate limit increment failed: %w", err)
	}
	return int(incrCmd.Val()), nil
}
