package chat

import (
	"sync"
	"time"
)

// fakeClock is a manually advanced clock shared by the tests of this package.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to base+offset.
func (c *fakeClock) Set(base time.Time, offset time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = base.Add(offset)
}
