package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Fan           string       `json:"fan"`
	DecidedBy     string       `json:"decided_by,omitempty"`
	Inputs        InputsJSON   `json:"inputs"`
	LastMotion    string       `json:"last_motion,omitempty"`
	OverrideUntil string       `json:"override_until,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"transitions"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// InputsJSON reports which inputs currently ask for the fan.
type InputsJSON struct {
	Motion     bool `json:"motion"`
	Fumigation bool `json:"fumigation"`
	Override   bool `json:"override"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of transition counts.
type CountsJSON struct {
	On  int `json:"on"`
	Off int `json:"off"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Mode          string `json:"mode"`
	PollMs        int64  `json:"poll_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	MotionStayOnS int64  `json:"motion_stay_on_s"`
	OverrideS     int64  `json:"override_s"`
	Broker        string `json:"broker"`
	WSBroker      string `json:"ws_broker,omitempty"`
	HTTPAddr      string `json:"http_addr"`
	MotionPin     int    `json:"motion_pin"`
	OverridePin   int    `json:"override_pin"`
	RelayPins     []int  `json:"relay_pins"`
}

func buildInner(snap Snapshot) StatusInner {
	fan := string(snap.Fan)
	if fan == "" {
		fan = "UNKNOWN"
	}

	inner := StatusInner{
		Fan:       fan,
		DecidedBy: string(snap.DecidedBy),
		Inputs: InputsJSON{
			Motion:     snap.Motion,
			Fumigation: snap.Fumigation,
			Override:   snap.Override,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        CountsJSON{On: snap.Counts.On, Off: snap.Counts.Off},
		Config: ConfigJSON{
			Mode:          snap.Config.Mode,
			PollMs:        snap.Config.PollMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			MotionStayOnS: snap.Config.MotionStayOnS,
			OverrideS:     snap.Config.OverrideS,
			Broker:        snap.Config.Broker,
			WSBroker:      snap.Config.WSBroker,
			HTTPAddr:      snap.Config.HTTPAddr,
			MotionPin:     snap.Config.MotionPin,
			OverridePin:   snap.Config.OverridePin,
			RelayPins:     snap.Config.RelayPins,
		},
	}
	if snap.HasMotion() {
		inner.LastMotion = snap.LastMotion.UTC().Format(time.RFC3339)
	}
	if snap.Override {
		inner.OverrideUntil = snap.OverrideUntil.UTC().Format(time.RFC3339)
	}
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
