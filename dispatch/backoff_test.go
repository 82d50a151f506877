package dispatch

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff_Bounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	b := &Backoff{Unit: time.Second, CapUnits: 20, Jitter: rng.Float64}

	for attempt := -2; attempt <= 40; attempt++ {
		for i := 0; i < 50; i++ {
			d := b.Delay(attempt)
			upper := time.Duration(math.Pow(2, float64(min(max(attempt, 0), 20))) * 1.5 * float64(time.Second))

			require.GreaterOrEqual(t, d, time.Duration(0), "attempt %d", attempt)
			require.LessOrEqual(t, d, upper, "attempt %d", attempt)
		}
	}
}

func TestBackoff_UncappedStillBounded(t *testing.T) {
	b := &Backoff{Unit: time.Nanosecond, Jitter: func() float64 { return 0.999 }}

	assert.Equal(t, time.Duration(1<<20), b.Base(100))
	assert.LessOrEqual(t, b.Delay(100), time.Duration(float64(1<<20)*1.5))
}

func TestBackoff_BaseAndJitter(t *testing.T) {
	b := &Backoff{Unit: time.Second, CapUnits: 20, Jitter: func() float64 { return 0 }}

	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 4*time.Second, b.Delay(2))
	assert.Equal(t, 16*time.Second, b.Delay(4))
	assert.Equal(t, 20*time.Second, b.Delay(5), "capped")
	assert.Equal(t, 20*time.Second, b.Delay(30))

	b.Jitter = func() float64 { return 0.5 }
	assert.Equal(t, 5*time.Second, b.Delay(2), "4s + 0.5*0.5*4s")

	b.Jitter = func() float64 { return 7 }
	assert.Equal(t, 4*time.Second, b.Delay(2), "out of range jitter ignored")
}

func TestBackoff_NonDecreasingBase(t *testing.T) {
	b := DefaultBackoff()

	prev := time.Duration(0)
	for a := 0; a < 30; a++ {
		cur := b.Base(a)
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestWait_Cancellable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Wait(ctx, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.NoError(t, Wait(context.Background(), time.Millisecond))
}
