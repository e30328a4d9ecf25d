// Package clock provides a time abstraction for testable time-dependent code.
// Use Real in production and Mock in tests.
package clock

import (
	"sync"
	"time"
)

// Clock supplies the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// Real implements Clock using the standard time package.
type Real struct{}

// Now returns the current local time.
func (Real) Now() time.Time {
	return time.Now()
}

// Mock is a Clock whose time only moves when told to.
type Mock struct {
	mu      sync.Mutex
	current time.Time
}

// NewMock creates a Mock starting at the given time.
func NewMock(start time.Time) *Mock {
	return &Mock{current: start}
}

// Now returns the mock current time.
func (c *Mock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the mock clock by d. Negative values move it backwards.
func (c *Mock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

// Set jumps the mock clock to t.
func (c *Mock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}
