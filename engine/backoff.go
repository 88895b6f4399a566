package engine

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultBackoffMax  = 5 * time.Second

	jitterMin = 0.10
	jitterMax = 0.50
)

// Backoff computes exponential retry delays with additive jitter:
// min(Base*2^(attempt-1), Max) plus 10-50% of that value.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	jitter func() float64 // uniform in [0, 1)
}

// BackoffOption configures a Backoff.
type BackoffOption func(*Backoff)

// WithJitterSource replaces the random source; fn must return values in [0, 1).
func WithJitterSource(fn func() float64) BackoffOption {
	return func(b *Backoff) { b.jitter = fn }
}

// NewBackoff returns a Backoff. Non-positive durations fall back to the defaults.
func NewBackoff(base, ceiling time.Duration, opts ...BackoffOption) *Backoff {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if ceiling <= 0 {
		ceiling = DefaultBackoffMax
	}
	if ceiling < base {
		ceiling = base
	}
	b := &Backoff{Base: base, Max: ceiling, jitter: rand.Float64}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Floor returns the capped exponential component for attempt, without jitter.
func (b *Backoff) Floor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

// Delay returns the wait before retrying after the given 1-based attempt.
func (b *Backoff) Delay(attempt int) time.Duration {
	floor := b.Floor(attempt)
	frac := jitterMin + (jitterMax-jitterMin)*b.jitter()
	return floor + time.Duration(float64(floor)*frac)
}

// Wait sleeps for Delay(attempt) or until ctx is done.
func (b *Backoff) Wait(ctx context.Context, attempt int) error {
	timer := time.NewTimer(b.Delay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
