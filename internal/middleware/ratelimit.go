package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/verimail/verimail/internal/auth"
	"github.com/verimail/verimail/internal/metrics"
	"github.com/verimail/verimail/internal/model"
	"github.com/verimail/verimail/internal/ratelimit"
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter ratelimit.Limiter
	Metrics metrics.Recorder
}

// RateLimit returns middleware that enforces a sliding-window limit per
// API key for the route it wraps. Each route gets its own window, so a
// burst against one endpoint never starves the others.
// Must be applied after Auth middleware.
func RateLimit(cfg RateLimitConfig, limit model.WindowLimit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				// No auth context - should not happen if Auth middleware ran first
				next.ServeHTTP(w, r)
				return
			}

			identifier := authCtx.KeyID + ":" + r.URL.Path

			// The limiter fails open internally; an unreachable backend
			// never rejects a request.
			result := cfg.Limiter.Check(r.Context(), identifier, limit.Requests, limit.Window)

			remaining := limit.Requests - result.Current
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !result.Allowed {
				cfg.Metrics.IncRateLimited(r.URL.Path)
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("key_id", authCtx.KeyID),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int("current", result.Current),
					slog.Int("limit", limit.Requests),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				retryAfter := int(limit.Window.Seconds())
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeRateLimitError(w, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	msg := fmt.Sprintf(`{"error":{"code":"RATE_LIMITED","message":"Rate limit exceeded. Retry after %d seconds."}}`, retryAfter)
	_, _ = w.Write([]byte(msg))
}
