package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour int) time.Time {
	return time.Date(2026, 5, 10, hour, 30, 0, 0, time.UTC)
}

func TestIntervalTriggerAlwaysAllows(t *testing.T) {
	trig := IntervalTrigger{}
	for hour := 0; hour < 24; hour++ {
		assert.True(t, trig.Allowed(at(hour)))
	}
}

func TestTimeWindowTriggerDaytime(t *testing.T) {
	trig, err := NewTimeWindowTrigger(6, 18)
	require.NoError(t, err)

	assert.False(t, trig.Allowed(at(5)))
	assert.True(t, trig.Allowed(at(6)))
	assert.True(t, trig.Allowed(at(17)))
	assert.False(t, trig.Allowed(at(18)))
	assert.False(t, trig.Allowed(at(23)))
}

func TestTimeWindowTriggerSpansMidnight(t *testing.T) {
	trig, err := NewTimeWindowTrigger(22, 6)
	require.NoError(t, err)

	assert.True(t, trig.Allowed(at(22)))
	assert.True(t, trig.Allowed(at(23)))
	assert.True(t, trig.Allowed(at(0)))
	assert.True(t, trig.Allowed(at(5)))
	assert.False(t, trig.Allowed(at(6)))
	assert.False(t, trig.Allowed(at(12)))
}

func TestNewTimeWindowTriggerValidation(t *testing.T) {
	_, err := NewTimeWindowTrigger(-1, 5)
	assert.Error(t, err)
	_, err = NewTimeWindowTrigger(0, 24)
	assert.Error(t, err)
	_, err = NewTimeWindowTrigger(7, 7)
	assert.Error(t, err)
}
