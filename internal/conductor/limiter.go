package conductor

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrQuietPeriod is returned by [RateLimiter.Reserve] while the quiet
	// period after the previous call has not elapsed.
	ErrQuietPeriod = errors.New("conductor: quiet period has not elapsed")

	// ErrTooManyCalls is returned by [RateLimiter.Reserve] when the number
	// of active calls has reached the configured maximum.
	ErrTooManyCalls = errors.New("conductor: too many active calls")
)

// RateLimiter spaces out synthesizer calls. It enforces a quiet period
// between two granted calls and a cap on how many calls may be playing at
// once. One limiter is shared by everything that triggers calls on the same
// chorus. It is safe for concurrent use.
type RateLimiter struct {
	mu        sync.Mutex
	quiet     time.Duration
	maxActive int
	last      time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter. A maxActive of zero or less disables the
// active-call cap. now may be nil to use [time.Now].
func NewRateLimiter(quiet time.Duration, maxActive int, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{quiet: max(quiet, 0), maxActive: maxActive, now: now}
}

// Reserve grants a call slot if the quiet period has elapsed and fewer than
// the maximum number of calls are active. On success the quiet period
// restarts.
func (l *RateLimiter) Reserve(active int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.last.IsZero() && now.Sub(l.last) < l.quiet {
		return ErrQuietPeriod
	}
	if l.maxActive > 0 && active >= l.maxActive {
		return ErrTooManyCalls
	}
	l.last = now
	return nil
}

// SetLimits replaces the quiet period and active-call cap. The time of the
// last granted call is kept.
func (l *RateLimiter) SetLimits(quiet time.Duration, maxActive int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.quiet = max(quiet, 0)
	l.maxActive = maxActive
}

// Reset forgets the last granted call.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last = time.Time{}
}
