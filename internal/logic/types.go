// Package logic contains pure business logic for the bathroom fan.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logical state of the fan (both relay channels).
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// Invert returns the opposite state. Anything that is not ON inverts to ON.
func (s State) Invert() State {
	if s == StateOn {
		return StateOff
	}
	return StateOn
}

// Never is the timestamp trackers start with: far enough in the past that
// no stay-on or override window can cover the present.
var Never = time.Date(1, time.January, 1, 1, 0, 0, 0, time.UTC)

// Reason explains which input decided the fan state.
type Reason string

const (
	ReasonOverride   Reason = "override"
	ReasonMotion     Reason = "motion"
	ReasonFumigation Reason = "fumigation"
	ReasonIdle       Reason = "idle"
)

// EventType represents a fan state transition event.
type EventType string

const (
	EventFanOn  EventType = "FAN_ON"
	EventFanOff EventType = "FAN_OFF"
)

// Event represents a state transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	State     State
	Reason    Reason
}

// EventFor builds the transition event for a resolved decision.
func EventFor(d Decision, now time.Time) Event {
	typ := EventFanOff
	if d.State == StateOn {
		typ = EventFanOn
	}
	return Event{
		Timestamp: now,
		Type:      typ,
		State:     d.State,
		Reason:    d.Reason,
	}
}

// TransitionCounts tracks the number of logged transitions since startup.
type TransitionCounts struct {
	On  int
	Off int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    TransitionCounts
}
