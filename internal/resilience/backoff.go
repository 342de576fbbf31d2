package resilience

import (
	"math"
	"math/rand"
	"time"
)

// Strategy calculates the delay before a retry attempt.
// Implementations must be safe for concurrent use.
type Strategy interface {
	// NextDelay returns the backoff duration for the given attempt.
	// Attempt starts at 1 for the first retry.
	NextDelay(attempt int) time.Duration
}

// Exponential implements exponential backoff with additive jitter:
// BaseDelay * 2^(attempt-1) + uniform[0, JitterCeiling). Jitter spreads
// retries across callers to avoid synchronized retry storms.
type Exponential struct {
	BaseDelay     time.Duration
	JitterCeiling time.Duration
}

func (e Exponential) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	base := e.BaseDelay
	if base == 0 {
		base = time.Second
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if e.JitterCeiling > 0 {
		delay += time.Duration(rand.Int63n(int64(e.JitterCeiling)))
	}

	return delay
}

// Fixed implements a constant delay between retries. Useful in tests where
// predictable timing matters.
type Fixed struct {
	Delay time.Duration
}

func (f Fixed) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Delay
}
