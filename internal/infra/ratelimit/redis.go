package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/starpath-app/starpath/internal/logger"
)

// Redis is a rolling-window limiter on a sorted set per key, shared by every
// API instance. When Redis is unreachable the request is allowed.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedis creates a limiter storing its windows under "rate_limit:<key>".
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "rate_limit:", now: time.Now}
}

// Allow trims hits older than the window, counts the rest and records this
// one, all in one MULTI. Over the limit the fresh hit is removed again.
func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := r.now()
	k := r.prefix + key
	member := uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-window).UnixMicro(), 10)

	var card *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRemRangeByScore(ctx, k, "-inf", cutoff)
		card = p.ZCard(ctx, k)
		p.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		p.Expire(ctx, k, window)
		return nil
	})
	if err != nil {
		logger.Warn("rate limiter unavailable, allowing request", "key", key, "err", err)
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}

	count := int(card.Val())
	if count < limit {
		return Decision{Allowed: true, Limit: limit, Remaining: limit - count - 1}, nil
	}

	if err := r.client.ZRem(ctx, k, member).Err(); err != nil {
		logger.Warn("rate limiter cleanup failed", "key", key, "err", err)
	}
	d := Decision{Limit: limit, RetryAfter: window}
	oldest, err := r.client.ZRangeWithScores(ctx, k, 0, 0).Result()
	if err == nil && len(oldest) == 1 {
		at := time.UnixMicro(int64(oldest[0].Score))
		if wait := at.Add(window).Sub(now); wait > 0 {
			d.RetryAfter = wait
		}
	}
	return d, nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
