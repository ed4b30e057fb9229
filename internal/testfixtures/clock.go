package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven wall clock. Readings are naive UTC values, the
// same shape the store persists.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: wall(start)}
}

// Now returns the clock reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc adapts the clock for constructors taking func() time.Time.
func (c *Clock) NowFunc() func() time.Time {
	return c.Now
}

// Advance moves the clock forward and returns the new reading.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d).Truncate(time.Second)
	return c.current
}

func wall(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
