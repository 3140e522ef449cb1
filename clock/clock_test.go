package clock

import (
	"errors"
	"testing"
	"time"

	"github.com/colorfulnotion/femtobench/bencherrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonotonicMeasureRunsOnce(t *testing.T) {
	c := New()
	calls := 0
	d, err := c.Measure(func() {
		calls++
		time.Sleep(2 * time.Millisecond)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.GreaterOrEqual(t, d, 2*time.Millisecond)
}

func TestMonotonicNowNonDecreasing(t *testing.T) {
	c := New()
	prev := c.Now()
	for i := 0; i < 1000; i++ {
		now := c.Now()
		require.GreaterOrEqual(t, now, prev)
		prev = now
	}
}

func TestZeroClockUnavailable(t *testing.T) {
	var c Monotonic
	called := false
	_, err := c.Measure(func() { called = true })
	assert.True(t, errors.Is(err, bencherrors.ErrClockUnavailable))
	assert.False(t, called)
}

func TestManualClock(t *testing.T) {
	m := &Manual{Step: 7 * time.Microsecond}
	d, err := m.Measure(func() {})
	require.NoError(t, err)
	assert.Equal(t, 7*time.Microsecond, d)
	m.Sleep(time.Millisecond)
	assert.Equal(t, Instant(1007), m.Now())
	assert.Equal(t, []time.Duration{time.Millisecond}, m.Slept)
}

func TestMicros(t *testing.T) {
	assert.Equal(t, uint64(1), Micros(1999*time.Nanosecond))
	assert.Equal(t, uint64(0), Micros(-time.Second))
	assert.Equal(t, time.Duration(0), Instant(3).Sub(Instant(5)))
}
