// Package clock provides the monotonic microsecond timer used to measure
// program preparation and execution.
package clock

import (
	"sync"
	"time"

	"github.com/colorfulnotion/femtobench/bencherrors"
)

// Instant is a timestamp in microseconds relative to the clock's epoch.
type Instant uint64

// Sub returns the duration elapsed between earlier and i.
func (i Instant) Sub(earlier Instant) time.Duration {
	if i < earlier {
		return 0
	}
	return time.Duration(i-earlier) * time.Microsecond
}

type Clock interface {
	// Now returns a non-decreasing timestamp with microsecond resolution.
	Now() Instant
	// Measure runs work exactly once, synchronously, and returns the elapsed time.
	Measure(work func()) (time.Duration, error)
	// Sleep suspends the caller for at least d.
	Sleep(d time.Duration)
}

// Monotonic reads the runtime's monotonic clock. The zero value has no epoch
// and reports ErrClockUnavailable; use New.
type Monotonic struct {
	epoch time.Time
}

func New() *Monotonic {
	return &Monotonic{epoch: time.Now()}
}

func (c *Monotonic) Now() Instant {
	if c == nil || c.epoch.IsZero() {
		return 0
	}
	return Instant(time.Since(c.epoch) / time.Microsecond)
}

func (c *Monotonic) Measure(work func()) (time.Duration, error) {
	if c == nil || c.epoch.IsZero() {
		return 0, bencherrors.ErrClockUnavailable
	}
	start := time.Now()
	work()
	return time.Since(start), nil
}

func (c *Monotonic) Sleep(d time.Duration) {
	time.Sleep(d)
}

// Manual is a deterministic clock for tests: every Measure advances time by
// Step and Sleep advances it by the requested duration without blocking.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	Step  time.Duration
	Slept []time.Duration
}

func (m *Manual) Now() Instant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Instant(m.now / time.Microsecond)
}

func (m *Manual) Measure(work func()) (time.Duration, error) {
	work()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += m.Step
	return m.Step, nil
}

func (m *Manual) Sleep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
	m.Slept = append(m.Slept, d)
}

// Micros truncates d to whole microseconds, the unit of the benchmark report.
func Micros(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d / time.Microsecond)
}
