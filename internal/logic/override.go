package logic

import (
	"sync"
	"time"
)

// DefaultOverrideTime is how long a button press holds the inverted state.
const DefaultOverrideTime = 15 * time.Minute

// OverrideTracker holds the manual override: a press inverts whatever the
// fan is doing and locks that for a fixed duration. Safe for concurrent use.
type OverrideTracker struct {
	duration time.Duration

	mu        sync.Mutex
	toggledAt time.Time
	latched   State
}

// NewOverrideTracker creates an inactive tracker. Latched is OFF until the
// first toggle.
func NewOverrideTracker(duration time.Duration) *OverrideTracker {
	return &OverrideTracker{
		duration:  duration,
		toggledAt: Never,
		latched:   StateOff,
	}
}

// RecordToggle starts a new override window at now, latching the inverse of
// the fan state at the moment of the press.
func (o *OverrideTracker) RecordToggle(now time.Time, current State) State {
	latched := current.Invert()
	o.mu.Lock()
	o.toggledAt = now
	o.latched = latched
	o.mu.Unlock()
	return latched
}

// Active reports whether the override window covers now.
func (o *OverrideTracker) Active(now time.Time) bool {
	return now.Before(o.Until())
}

// Latched returns the state captured at the most recent toggle.
func (o *OverrideTracker) Latched() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latched
}

// Until returns the first instant the override is no longer active.
func (o *OverrideTracker) Until() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.toggledAt.Add(o.duration)
}
