package ratelimit

import (
	"context"
	"sync"
	"time"
)

// window holds the recorded timestamps for one identifier. Each window
// carries its own lock so concurrent checks for different identifiers
// never contend.
type window struct {
	mu     sync.Mutex
	stamps []time.Time
}

// MemoryLimiter is the in-process sliding-window backend, used when no
// shared store is configured. Observable behavior is identical to the
// Redis backend.
type MemoryLimiter struct {
	mu      sync.RWMutex
	windows map[string]*window
	now     func() time.Time
}

// NewMemoryLimiter creates an in-memory limiter. A nil clock defaults to
// time.Now.
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		windows: make(map[string]*window),
		now:     now,
	}
}

// Check implements Limiter. Entries older than the window are pruned
// lazily on each check.
func (l *MemoryLimiter) Check(ctx context.Context, identifier string, limit int, windowSize time.Duration) Result {
	now := l.now()
	w := l.windowFor(identifier)

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-windowSize)
	kept := w.stamps[:0]
	for _, stamp := range w.stamps {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}
	w.stamps = append(kept, now)

	current := len(w.stamps)
	return Result{
		Allowed: current <= limit,
		Current: current,
		Limit:   limit,
	}
}

func (l *MemoryLimiter) windowFor(identifier string) *window {
	l.mu.RLock()
	w, ok := l.windows[identifier]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.windows[identifier]; ok {
		return w
	}
	w = &window{}
	l.windows[identifier] = w
	return w
}
