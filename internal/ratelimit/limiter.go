// Package ratelimit throttles request bursts with a sliding window counter
// kept in Redis sorted sets, one set per caller key.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Result describes the limiter's verdict for one event.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is a sliding window rate limiter backed by Redis.
type Limiter struct {
	Client *redis.Client
	Prefix string
}

// Allow registers an event under key and reports whether the caller is still
// within max events per window. A nil client or non-positive limits disable
// limiting.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (Result, error) {
	if l.Client == nil || max <= 0 || window <= 0 {
		return Result{Allowed: true, Remaining: max, ResetAt: time.Now().Add(window)}, nil
	}

	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)
	redisKey := l.Prefix + ":rl:" + key
	member := uuid.NewString()

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{ResetAt: now.Add(window)}, err
	}

	current := int(countCmd.Val())
	remaining := max - current
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   current <= max,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}, nil
}
