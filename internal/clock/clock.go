package clock

import (
	"sync"
	"time"
)

// Clock abstracts "now" so overlap checks against active reservations are deterministic in tests.
type Clock interface {
	Now() time.Time
}

// Real reads the system clock in UTC.
type Real struct{}

func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Fake is a settable clock for tests.
type Fake struct {
	mu      sync.Mutex
	current time.Time
}

func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Fake) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the fake clock by d, which may be negative.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}
