package dispatch

import (
	"context"
	"math/rand/v2"
	"time"
)

const maxExponent = 20

// Backoff computes jittered exponential retry delays:
//
//	base  = min(2^min(attempt, 20), CapUnits) * Unit
//	delay = base + U(0, 0.5*base)
//
// It is safe for concurrent use as long as Jitter is.
type Backoff struct {
	// Unit is the duration of one backoff unit (default 1s).
	Unit time.Duration
	// CapUnits caps the exponential base in units. Zero or negative disables
	// the cap, leaving only the 2^20 exponent bound.
	CapUnits int
	// Jitter returns a value in [0, 1). Defaults to math/rand/v2.Float64.
	Jitter func() float64
}

// DefaultBackoff returns the production backoff: 1s units capped at 20.
func DefaultBackoff() *Backoff {
	return &Backoff{Unit: time.Second, CapUnits: 20}
}

// Base returns the delay before jitter.
func (b *Backoff) Base(attempt int) time.Duration {
	units := int64(1) << min(max(attempt, 0), maxExponent)
	if b.CapUnits > 0 && units > int64(b.CapUnits) {
		units = int64(b.CapUnits)
	}
	return time.Duration(units) * b.Unit
}

// Delay returns the backoff to wait after the given (1-based) attempt.
func (b *Backoff) Delay(attempt int) time.Duration {
	base := b.Base(attempt)
	if base <= 0 {
		return 0
	}

	jitter := b.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}

	f := jitter()
	if f < 0 || f >= 1 {
		f = 0
	}

	return base + time.Duration(f*0.5*float64(base))
}

// Wait sleeps for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
