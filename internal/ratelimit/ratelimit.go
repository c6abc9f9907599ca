// Package ratelimit implements sliding-window rate limiting with two
// interchangeable backends: a shared Redis sorted set for multi-process
// deployments and a local in-memory fallback for single-process runs.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed bool
	Current int
	Limit   int
}

// Limiter counts requests per identifier within a trailing window.
//
// Check records the current request and reports whether it is within
// limit. The triggering request's own timestamp counts toward the limit.
// Implementations never fail a request because of backend trouble: an
// unreachable backend fails open.
type Limiter interface {
	Check(ctx context.Context, identifier string, limit int, window time.Duration) Result
}
