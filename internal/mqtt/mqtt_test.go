package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/bathroom-fan/internal/logic"
)

func TestFormatPayload(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC),
		Type:      logic.EventFanOn,
		State:     logic.StateOn,
		Reason:    logic.ReasonMotion,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"fan":{"timestamp":"2026-02-02T22:18:12Z","event":"FAN_ON","state":"ON","reason":"motion"}}`
	if string(payload) != want {
		t.Errorf("payload:\n got %s\nwant %s", payload, want)
	}
}

func TestFormatPayloadAllEventTypes(t *testing.T) {
	tests := []struct {
		eventType logic.EventType
		state     logic.State
		reason    logic.Reason
	}{
		{logic.EventFanOn, logic.StateOn, logic.ReasonMotion},
		{logic.EventFanOn, logic.StateOn, logic.ReasonFumigation},
		{logic.EventFanOn, logic.StateOn, logic.ReasonOverride},
		{logic.EventFanOff, logic.StateOff, logic.ReasonOverride},
		{logic.EventFanOff, logic.StateOff, logic.ReasonIdle},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType)+"/"+string(tt.reason), func(t *testing.T) {
			payload, err := FormatPayload(logic.Event{
				Timestamp: time.Now(),
				Type:      tt.eventType,
				State:     tt.state,
				Reason:    tt.reason,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var parsed Payload
			if err := json.Unmarshal(payload, &parsed); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if parsed.Fan.Event != string(tt.eventType) {
				t.Errorf("event: got %s, want %s", parsed.Fan.Event, tt.eventType)
			}
			if parsed.Fan.State != string(tt.state) {
				t.Errorf("state: got %s, want %s", parsed.Fan.State, tt.state)
			}
			if parsed.Fan.Reason != string(tt.reason) {
				t.Errorf("reason: got %s, want %s", parsed.Fan.Reason, tt.reason)
			}
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	payload, _ := FormatPayload(logic.Event{
		Timestamp: time.Date(2026, 2, 2, 23, 0, 0, 0, loc),
		Type:      logic.EventFanOff,
		State:     logic.StateOff,
		Reason:    logic.ReasonIdle,
	})

	var parsed Payload
	json.Unmarshal(payload, &parsed)
	if parsed.Fan.Timestamp != "2026-02-02T22:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.Fan.Timestamp)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "home/bathroom/fan/events" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "home/bathroom/fan/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Date(2026, 2, 3, 14, 30, 0, 0, time.UTC),
		Event:     "SHUTDOWN",
		Reason:    "SIGTERM",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"system":{"timestamp":"2026-02-03T14:30:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(payload) != want {
		t.Errorf("payload:\n got %s\nwant %s", payload, want)
	}
}

func TestFormatSystemPayloadRawPassthrough(t *testing.T) {
	raw := []byte(`{"status":{"fan":"ON"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("expected raw payload, got %s", payload)
	}
}

func TestWillPayloadFormat(t *testing.T) {
	want := `{"system":{"event":"OFFLINE","reason":"connection lost"}}`
	if got := string(WillPayload()); got != want {
		t.Errorf("will payload:\n got %s\nwant %s", got, want)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	event := logic.Event{
		Timestamp: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		Type:      logic.EventFanOn,
		State:     logic.StateOn,
		Reason:    logic.ReasonOverride,
	}

	if err := f.Publish(event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Events) != 1 || f.Events[0] != event {
		t.Errorf("unexpected events: %+v", f.Events)
	}
	if len(f.Payloads) != 1 {
		t.Errorf("expected 1 payload, got %d", len(f.Payloads))
	}
	if len(f.SystemEvents) != 1 || !f.SystemEvents[0].Retained {
		t.Errorf("unexpected system events: %+v", f.SystemEvents)
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("simulated")
	f.PublishSystemError = errors.New("simulated system")

	if err := f.Publish(logic.Event{}); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishSystem(SystemEvent{}); err == nil {
		t.Error("expected publish system error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes must not be recorded")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Publish(logic.Event{Type: logic.EventFanOn})
	f.PublishSystem(SystemEvent{Event: "STARTUP"})
	f.Close()
	f.Connected = true

	f.Reset()

	if len(f.Events) != 0 || len(f.Payloads) != 0 || len(f.SystemEvents) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("expected all recordings cleared")
	}
	if f.Closed || f.Connected {
		t.Error("expected flags cleared")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(logic.Event{}); err != nil {
		t.Error(err)
	}
	if err := p.PublishSystem(SystemEvent{}); err != nil {
		t.Error(err)
	}
	if (NopPublisher{}).IsConnected() {
		t.Error("nop publisher is never connected")
	}
}
