package service

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timestamps are stored at microsecond resolution, matching timestamptz.
const timestampResolution = time.Microsecond

// MonotonicClock hands out strictly increasing UTC timestamps so that two
// messages created by this process never share a created_at.
type MonotonicClock struct {
	clock clockwork.Clock

	mu   sync.Mutex
	last time.Time
}

// NewMonotonicClock wraps clock; nil means the wall clock
func NewMonotonicClock(clock clockwork.Clock) *MonotonicClock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MonotonicClock{clock: clock}
}

// Now returns a timestamp after every timestamp previously returned
func (c *MonotonicClock) Now() time.Time {
	now := c.clock.Now().UTC().Truncate(timestampResolution)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !now.After(c.last) {
		now = c.last.Add(timestampResolution)
	}
	c.last = now
	return now
}
