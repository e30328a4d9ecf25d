package logic

import (
	"sync"
	"time"
)

// DefaultMotionStayOn is how long a single motion pulse keeps the fan running.
const DefaultMotionStayOn = 3 * time.Minute

// Lockout is a nightly range of hours during which motion is ignored.
// Both ends are inclusive. From > To wraps around midnight.
type Lockout struct {
	From int
	To   int
}

// DefaultLockout blocks hours 22, 23 and 0 through 7.
var DefaultLockout = Lockout{From: 22, To: 7}

// Contains reports whether hour falls inside the lockout.
func (l Lockout) Contains(hour int) bool {
	if l.From <= l.To {
		return hour >= l.From && hour <= l.To
	}
	return hour >= l.From || hour <= l.To
}

// MotionTracker remembers the last detected motion and decides whether it
// still justifies running the fan. Safe for concurrent use.
type MotionTracker struct {
	stayOn  time.Duration
	lockout Lockout

	mu           sync.Mutex
	lastMotionAt time.Time
}

// NewMotionTracker creates a tracker with no motion recorded yet.
func NewMotionTracker(stayOn time.Duration, lockout Lockout) *MotionTracker {
	return &MotionTracker{
		stayOn:       stayOn,
		lockout:      lockout,
		lastMotionAt: Never,
	}
}

// RecordMotion stores now as the last motion time. The stored time never
// moves backwards.
func (m *MotionTracker) RecordMotion(now time.Time) {
	m.mu.Lock()
	if now.After(m.lastMotionAt) {
		m.lastMotionAt = now
	}
	m.mu.Unlock()
}

// LastMotion returns the last recorded motion time (Never if none).
func (m *MotionTracker) LastMotion() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMotionAt
}

// Active reports whether motion currently keeps the fan on.
func (m *MotionTracker) Active(now time.Time) bool {
	if m.lockout.Contains(now.Hour()) {
		return false
	}
	m.mu.Lock()
	last := m.lastMotionAt
	m.mu.Unlock()
	return now.Before(last.Add(m.stayOn))
}
