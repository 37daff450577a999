// Package ratelimit provides fixed-window request limiting behind a small
// interface so the backing store can be swapped (in-process map for a single
// instance, Redis under horizontal scaling).
package ratelimit

import (
	"context"
	"time"
)

// Decision reports the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key within fixed windows. The counter resets by
// replacing the window when it elapses, not by sliding.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}
