// Package status provides a thread-safe status tracker for the bathroom-fan daemon.
// It is read by HTTP handlers and embedded in MQTT system events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/bathroom-fan/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Mode          string
	PollMs        int64
	HeartbeatMs   int64
	MotionStayOnS int64
	OverrideS     int64
	Broker        string
	WSBroker      string // websocket URL for the live status page (empty = disabled)
	HTTPAddr      string
	MotionPin     int
	OverridePin   int
	RelayPins     []int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Fan           logic.State
	DecidedBy     logic.Reason
	Motion        bool
	Fumigation    bool
	Override      bool
	LastMotion    time.Time
	OverrideUntil time.Time
	Counts        logic.TransitionCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// HasMotion reports whether any motion was recorded since startup.
func (s Snapshot) HasMotion() bool {
	return s.LastMotion.After(logic.Never)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime:     startTime,
			LastMotion:    logic.Never,
			OverrideUntil: logic.Never,
			Config:        cfg,
		},
	}
}

// Update records the outcome of a successful tick.
func (t *Tracker) Update(d logic.Decision, counts logic.TransitionCounts, lastMotion, overrideUntil time.Time) {
	t.mu.Lock()
	t.snap.Fan = d.State
	t.snap.DecidedBy = d.Reason
	t.snap.Motion = d.Motion
	t.snap.Fumigation = d.Fumigation
	t.snap.Override = d.Override
	t.snap.Counts = counts
	t.snap.LastMotion = lastMotion
	t.snap.OverrideUntil = overrideUntil
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
