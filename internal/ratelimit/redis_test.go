package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/verimail/verimail/internal/testutil"
)

func newRedisLimiter(t *testing.T) (*RedisLimiter, *testutil.Clock) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	clock := testutil.NewClock(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedisLimiter(client, logger, clock.Now), clock
}

func TestRedisLimiter_WindowLimit(t *testing.T) {
	t.Parallel()

	limiter, clock := newRedisLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		result := limiter.Check(ctx, "key-1", 5, time.Minute)
		if !result.Allowed {
			t.Fatalf("call %d should be allowed", i)
		}
		if result.Current != i {
			t.Errorf("call %d: Current = %d, want %d", i, result.Current, i)
		}
	}

	result := limiter.Check(ctx, "key-1", 5, time.Minute)
	if result.Allowed {
		t.Error("6th call within window should be rejected")
	}
	if result.Current != 6 {
		t.Errorf("Current = %d, want 6", result.Current)
	}

	// Old timestamps fall out of the window by score; the next call is
	// admitted again.
	clock.Advance(61 * time.Second)
	result = limiter.Check(ctx, "key-1", 5, time.Minute)
	if !result.Allowed {
		t.Error("call after window elapsed should be allowed")
	}
	if result.Current != 1 {
		t.Errorf("Current after expiry = %d, want 1", result.Current)
	}
}

func TestRedisLimiter_CountsSameInstantRequests(t *testing.T) {
	t.Parallel()

	// The clock never advances, so every request carries an identical
	// timestamp. Each one must still count toward the window.
	limiter, _ := newRedisLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		result := limiter.Check(ctx, "burst", 3, time.Minute)
		if !result.Allowed {
			t.Fatalf("call %d should be allowed", i)
		}
		if result.Current != i {
			t.Errorf("call %d: Current = %d, want %d", i, result.Current, i)
		}
	}

	if limiter.Check(ctx, "burst", 3, time.Minute).Allowed {
		t.Error("4th same-instant call should be rejected")
	}
}

func TestRedisLimiter_IdentifiersAreIndependent(t *testing.T) {
	t.Parallel()

	limiter, _ := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		limiter.Check(ctx, "busy", 2, time.Minute)
	}
	if limiter.Check(ctx, "busy", 2, time.Minute).Allowed {
		t.Error("busy identifier should be over its limit")
	}
	if !limiter.Check(ctx, "quiet", 2, time.Minute).Allowed {
		t.Error("quiet identifier should not be affected")
	}
}

func TestRedisLimiter_FailsOpenWhenBackendUnreachable(t *testing.T) {
	t.Parallel()

	// Point the client at a dead address.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	limiter := NewRedisLimiter(client, logger, nil)

	result := limiter.Check(context.Background(), "key", 5, time.Minute)
	if !result.Allowed {
		t.Error("limiter must fail open when the backend is unreachable")
	}
	if result.Current != 0 {
		t.Errorf("Current = %d, want 0 on fail-open", result.Current)
	}
	if result.Limit != 5 {
		t.Errorf("Limit = %d, want 5", result.Limit)
	}
}
