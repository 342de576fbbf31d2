package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponential_NextDelay(t *testing.T) {
	strategy := Exponential{BaseDelay: 500 * time.Millisecond, JitterCeiling: 250 * time.Millisecond}

	tests := []struct {
		attempt int
		floor   time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1 * time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
	}

	for _, tt := range tests {
		// Jitter is random, so sample a few times and check the bounds hold.
		for i := 0; i < 20; i++ {
			delay := strategy.NextDelay(tt.attempt)
			assert.GreaterOrEqual(t, delay, tt.floor, "attempt %d", tt.attempt)
			assert.Less(t, delay, tt.floor+strategy.JitterCeiling, "attempt %d", tt.attempt)
		}
	}
}

func TestExponential_NextDelay_NoJitter(t *testing.T) {
	strategy := Exponential{BaseDelay: 100 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, strategy.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, strategy.NextDelay(2))
	assert.Equal(t, 400*time.Millisecond, strategy.NextDelay(3))
}

func TestExponential_NextDelay_ZeroAttempt(t *testing.T) {
	strategy := Exponential{BaseDelay: 100 * time.Millisecond}

	assert.Equal(t, time.Duration(0), strategy.NextDelay(0))
	assert.Equal(t, time.Duration(0), strategy.NextDelay(-1))
}

func TestExponential_NextDelay_DefaultBase(t *testing.T) {
	strategy := Exponential{}

	assert.Equal(t, time.Second, strategy.NextDelay(1))
	assert.Equal(t, 2*time.Second, strategy.NextDelay(2))
}

func TestFixed_NextDelay(t *testing.T) {
	strategy := Fixed{Delay: 50 * time.Millisecond}

	assert.Equal(t, time.Duration(0), strategy.NextDelay(0))
	assert.Equal(t, 50*time.Millisecond, strategy.NextDelay(1))
	assert.Equal(t, 50*time.Millisecond, strategy.NextDelay(5))
}
