package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

const defaultMaxKeys = 10000

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a mutex-guarded fixed-window limiter. It is an injected
// dependency, not package state, so tests and future distributed setups can
// own their instances.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	maxKeys int
}

// MemoryOption configures a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// WithMaxKeys caps how many distinct keys may hold live windows.
func WithMaxKeys(n int) MemoryOption {
	return func(l *MemoryLimiter) {
		if n > 0 {
			l.maxKeys = n
		}
	}
}

func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		now:     time.Now,
		windows: make(map[string]*window),
		maxKeys: defaultMaxKeys,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, windowDur time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if ok && now.After(w.resetAt) {
		delete(l.windows, key)
		ok = false
	}
	if !ok {
		if len(l.windows) >= l.maxKeys {
			l.gc(now)
		}
		if len(l.windows) >= l.maxKeys {
			return Decision{}, errors.New("ratelimit: key capacity exceeded")
		}
		w = &window{resetAt: now.Add(windowDur)}
		l.windows[key] = w
	}

	if w.count < limit {
		w.count++
		return Decision{Allowed: true, Limit: limit, Remaining: limit - w.count, ResetAt: w.resetAt}, nil
	}
	return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: w.resetAt}, nil
}

func (l *MemoryLimiter) gc(now time.Time) {
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
