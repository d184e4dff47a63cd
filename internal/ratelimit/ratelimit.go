// Package ratelimit provides the single token bucket shared by every request of a scan.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Limiter is a token bucket with capacity burst refilled at rps tokens per second.
// One instance bounds the total outbound request rate of a scan regardless of
// worker concurrency.
type Limiter struct {
	bucket  *rate.Limiter
	blocked atomic.Int64

	mu       sync.Mutex
	adaptive *adaptive
	grants   []time.Time
	misses   []time.Time
}

type adaptive struct {
	threshold int
	window    int
	factor    float64
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithAdaptive lowers the rate by factor whenever more than threshold acquisitions
// are blocked since the oldest of the last window grants.
func WithAdaptive(threshold, window int, factor float64) Option {
	return func(l *Limiter) {
		l.adaptive = &adaptive{threshold: threshold, window: window, factor: factor}
	}
}

// New creates a limiter that starts with a full bucket.
func New(rps float64, burst int, opts ...Option) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{bucket: rate.NewLimiter(rate.Limit(rps), burst)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire takes one token. When none is available it waits up to timeout for
// the bucket to refill; on expiry it returns false and counts the request as
// blocked. Cancellation of ctx also returns false.
func (l *Limiter) Acquire(ctx context.Context, timeout time.Duration) bool {
	if l.bucket.Allow() {
		l.granted()
		return true
	}
	if timeout <= 0 {
		l.denied()
		return false
	}

	r := l.bucket.Reserve()
	if !r.OK() {
		l.denied()
		return false
	}
	delay := r.Delay()
	if delay > timeout {
		r.Cancel()
		l.denied()
		return false
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		l.granted()
		return true
	case <-ctx.Done():
		r.Cancel()
		return false
	}
}

// Blocked returns how many acquisitions timed out since creation.
func (l *Limiter) Blocked() int64 {
	return l.blocked.Load()
}

// Rate returns the current refill rate in tokens per second.
func (l *Limiter) Rate() float64 {
	return float64(l.bucket.Limit())
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	return l.bucket.Burst()
}

// Tokens returns the tokens currently available, clamped to [0, burst]. The
// underlying bucket goes negative while reservations made by Acquire are still
// waiting for their slot, so the lower bound comes from the clamp here.
func (l *Limiter) Tokens() float64 {
	return math.Max(0, math.Min(float64(l.bucket.Burst()), l.bucket.Tokens()))
}

func (l *Limiter) granted() {
	if l.adaptive == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.grants = append(l.grants, time.Now())
	if over := len(l.grants) - l.adaptive.window; over > 0 {
		l.grants = l.grants[over:]
	}
}

func (l *Limiter) denied() {
	l.blocked.Add(1)
	if l.adaptive == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.misses = append(l.misses, now)
	if len(l.grants) > 0 {
		oldest := l.grants[0]
		kept := l.misses[:0]
		for _, t := range l.misses {
			if !t.Before(oldest) {
				kept = append(kept, t)
			}
		}
		l.misses = kept
	}
	if len(l.misses) <= l.adaptive.threshold {
		return
	}

	lowered := l.bucket.Limit() * rate.Limit(l.adaptive.factor)
	l.bucket.SetLimitAt(now, lowered)
	l.misses = l.misses[:0]
	log.Info().Float64("requests_per_second", float64(lowered)).Msg("Adjusting rate limit")
}
