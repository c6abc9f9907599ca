package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces the per-identifier sorted sets.
const redisKeyPrefix = "ratelimit:"

// RedisLimiter is the shared sliding-window backend. Each identifier
// maps to a sorted set of request timestamps; prune + count + insert run
// in a single MULTI/EXEC pipeline so concurrent checks for the same
// identifier do not interleave.
type RedisLimiter struct {
	client *redis.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisLimiter creates a Redis-backed limiter. A nil clock defaults
// to time.Now.
func NewRedisLimiter(client *redis.Client, logger *slog.Logger, now func() time.Time) *RedisLimiter {
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{
		client: client,
		logger: logger.With("component", "ratelimit.redis"),
		now:    now,
	}
}

// Check implements Limiter.
//
// If Redis is unreachable the limiter fails open: the request is allowed
// with a reported count of 0. Availability of the validation service
// takes priority over strict rate enforcement during infrastructure
// faults.
func (l *RedisLimiter) Check(ctx context.Context, identifier string, limit int, window time.Duration) Result {
	now := l.now()
	key := redisKeyPrefix + identifier
	windowStart := now.Add(-window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", formatScore(windowStart))
	countCmd := pipe.ZCard(ctx, key)
	// The member must be unique per request: ZADD overwrites duplicate
	// members, so a bare timestamp would count two same-instant checks
	// as one. The timestamp lives in the score, which is what the prune
	// range operates on.
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  scoreOf(now),
		Member: strconv.FormatInt(now.UnixNano(), 10) + "-" + ulid.Make().String(),
	})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limit backend unavailable, failing open",
			slog.String("identifier", identifier),
			slog.String("error", err.Error()),
		)
		return Result{Allowed: true, Current: 0, Limit: limit}
	}

	// ZCard ran before the insert; count this request too.
	current := int(countCmd.Val()) + 1

	return Result{
		Allowed: current <= limit,
		Current: current,
		Limit:   limit,
	}
}

func scoreOf(t time.Time) float64 {
	return float64(t.UnixNano())
}

func formatScore(t time.Time) string {
	return strconv.FormatFloat(scoreOf(t), 'f', -1, 64)
}
