package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDelayForExponentialGrowth(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseDelay: time.Second, Cap: time.Minute}

	assert.Equal(t, 1*time.Second, p.DelayFor(0))
	assert.Equal(t, 2*time.Second, p.DelayFor(1))
	assert.Equal(t, 4*time.Second, p.DelayFor(2))
	assert.Equal(t, 8*time.Second, p.DelayFor(3))
}

func TestDelayForMonotonicAndCapped(t *testing.T) {
	p := Policy{MaxRetries: 20, BaseDelay: 500 * time.Millisecond, Cap: 10 * time.Second}

	prev := time.Duration(0)
	for attempt := 0; attempt < 20; attempt++ {
		d := p.DelayFor(attempt)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempt)
		assert.LessOrEqual(t, d, p.Cap, "attempt %d", attempt)
		prev = d
	}
	assert.Equal(t, p.Cap, p.DelayFor(19))
}

func TestDelayForNegativeAttempt(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, p.BaseDelay, p.DelayFor(-3))
}
