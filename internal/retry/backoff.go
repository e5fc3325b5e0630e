package retry

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes capped exponential delays with optional jitter.
type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Factor    float64
	Jitter    float64
}

// NextDelay returns the wait before the next attempt, given how many
// attempts have already failed (1 for the first failure).
func (b *Backoff) NextDelay(failedAttempts int) time.Duration {
	exp := failedAttempts - 1
	if exp < 0 {
		exp = 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}

	delay := float64(b.BaseDelay) * math.Pow(factor, float64(exp))
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}

	if b.Jitter > 0 {
		jitterRange := delay * b.Jitter
		delay += (rand.Float64() * 2 * jitterRange) - jitterRange
	}
	// MaxDelay is a hard ceiling, jitter included.
	if b.MaxDelay > 0 && delay > float64(b.MaxDelay) {
		delay = float64(b.MaxDelay)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
