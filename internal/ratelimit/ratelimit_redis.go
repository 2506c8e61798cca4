package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:intake:"

// RedisLimiter implements Limiter with a sorted set per key, scored by
// request time. Shared across instances.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, now time.Time) (Result, error) {
	redisKey := keyPrefix + key
	cutoff := now.Add(-l.window)

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}

	count := int(countCmd.Val())
	retryAt := now.Add(l.window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		retryAt = time.Unix(0, int64(oldest[0].Score)).Add(l.window)
	}

	if count >= l.limit {
		return Result{Allowed: false, RetryAt: retryAt}, nil
	}

	pipe = l.client.Pipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit record: %w", err)
	}

	return Result{Allowed: true, Remaining: l.limit - count - 1, RetryAt: retryAt}, nil
}
