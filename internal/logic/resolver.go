package logic

import "time"

// Decision is the resolved fan state for one cycle together with the
// individual inputs that produced it.
type Decision struct {
	State      State
	Reason     Reason
	Motion     bool
	Fumigation bool
	Override   bool
}

// Resolver combines motion, schedule and override into one fan state.
type Resolver struct {
	motion   *MotionTracker
	schedule Schedule
	override *OverrideTracker
}

// NewResolver creates a resolver over the given trackers.
func NewResolver(motion *MotionTracker, schedule Schedule, override *OverrideTracker) *Resolver {
	return &Resolver{
		motion:   motion,
		schedule: schedule,
		override: override,
	}
}

// Resolve evaluates all inputs at now. An active override replaces the
// motion/fumigation result unconditionally.
func (r *Resolver) Resolve(now time.Time) Decision {
	d := Decision{
		Motion:     r.motion.Active(now),
		Fumigation: r.schedule.Active(now),
		Override:   r.override.Active(now),
	}

	switch {
	case d.Motion:
		d.State, d.Reason = StateOn, ReasonMotion
	case d.Fumigation:
		d.State, d.Reason = StateOn, ReasonFumigation
	default:
		d.State, d.Reason = StateOff, ReasonIdle
	}

	if d.Override {
		d.State, d.Reason = r.override.Latched(), ReasonOverride
	}
	return d
}

// Transitions remembers the last logged fan state. The first observation is
// always a transition.
type Transitions struct {
	previous State
	counts   TransitionCounts
}

// Observe records s and reports whether it differs from the previous one.
func (t *Transitions) Observe(s State) bool {
	if s == t.previous {
		return false
	}
	t.previous = s
	if s == StateOn {
		t.counts.On++
	} else {
		t.counts.Off++
	}
	return true
}

// Counts returns the transition counts so far.
func (t *Transitions) Counts() TransitionCounts {
	return t.counts
}

// Heartbeat decides when periodic status events are due.
type Heartbeat struct {
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewHeartbeat creates a heartbeat whose first beat is one interval after startTime.
func NewHeartbeat(startTime time.Time) *Heartbeat {
	return &Heartbeat{startTime: startTime, lastHeartbeat: startTime}
}

// Check returns heartbeat data if the interval has elapsed since the last
// heartbeat (or startup). Returns nil if the interval has not elapsed or if
// interval is <= 0 (disabled).
func (h *Heartbeat) Check(now time.Time, interval time.Duration, counts TransitionCounts) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(h.lastHeartbeat) < interval {
		return nil
	}

	h.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(h.startTime),
		Counts:    counts,
	}
}
