package worker

import (
	"math"
	"time"
)

// RetryPolicy defines exponential backoff parameters for redelivery of
// failed queue entries.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the delay for a given attempt (1-based) with clamping.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	// Clamp before converting: at high attempts the product exceeds int64
	// and time.Duration(delay) would wrap negative.
	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}
	d := time.Duration(delay)
	if d <= 0 || delay > float64(math.MaxInt64) {
		d = time.Second
	}
	return d
}
