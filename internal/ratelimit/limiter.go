// Package ratelimit bounds per-chat message bursts in front of the engine,
// over a sliding window kept in Redis or in process memory.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrLimitExceeded marks a throttled chat. Callers drop the update and reply
// with nothing; the window result says when capacity returns.
var ErrLimitExceeded = errors.New("rate limit exceeded")

// Result reports the state of one chat's window after a check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the chat must wait before the window frees a
// slot. Zero when the check passed or no reset time is known.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r == nil || r.Allowed || r.ResetAt.IsZero() {
		return 0
	}
	if d := r.ResetAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Limiter counts one event against key's window. A throttled event yields
// ErrLimitExceeded alongside the filled Result.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
