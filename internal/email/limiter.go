package email

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// WindowLimiter allows at most limit events per key within a rolling window.
// Events are members of a Redis sorted set scored by their timestamp.
type WindowLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewWindowLimiter(client *redis.Client, limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records an event for key and reports whether it fits the limit.
// Rejected events are not counted.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := "ratelimit:" + key
	now := l.now()
	member := uuid.New().String()
	cutoff := now.Add(-l.window).UnixMilli()

	var count *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		count = pipe.ZCard(ctx, redisKey)
		pipe.PExpire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("record rate limit event: %w", err)
	}

	if count.Val() <= int64(l.limit) {
		return true, nil
	}

	if err := l.client.ZRem(ctx, redisKey, member).Err(); err != nil {
		return false, fmt.Errorf("drop rejected rate limit event: %w", err)
	}
	return false, nil
}
