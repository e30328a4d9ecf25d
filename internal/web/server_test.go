package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/bathroom-fan/internal/logic"
	"github.com/sweeney/bathroom-fan/internal/metrics"
	"github.com/sweeney/bathroom-fan/internal/status"
)

func newTestServer(t *testing.T, m *metrics.Metrics) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Mode:        "edge",
		PollMs:      1000,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":80",
		MotionPin:   4,
		OverridePin: 17,
		RelayPins:   []int{2, 3},
	}
	tr := status.NewTracker(start, cfg)
	var h http.Handler
	if m != nil {
		h = m.Handler()
	}
	srv := New(":0", tr, h)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(logic.Decision{State: logic.StateOn, Reason: logic.ReasonMotion, Motion: true},
		logic.TransitionCounts{On: 5, Off: 4}, time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC), logic.Never)
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if sj.Status.Fan != "ON" {
		t.Errorf("Fan: got %q, want ON", sj.Status.Fan)
	}
	if sj.Status.DecidedBy != "motion" {
		t.Errorf("DecidedBy: got %q, want motion", sj.Status.DecidedBy)
	}
	if !sj.Status.Inputs.Motion {
		t.Error("expected Inputs.Motion=true")
	}
	if sj.Status.LastMotion != "2026-01-01T00:01:00Z" {
		t.Errorf("LastMotion: got %q", sj.Status.LastMotion)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.On != 5 || sj.Status.Counts.Off != 4 {
		t.Errorf("Counts: got %+v", sj.Status.Counts)
	}
	if sj.Status.Config.PollMs != 1000 {
		t.Errorf("Config.PollMs: got %d, want 1000", sj.Status.Config.PollMs)
	}
	if sj.Status.Config.OverridePin != 17 {
		t.Errorf("Config.OverridePin: got %d, want 17", sj.Status.Config.OverridePin)
	}
}

func TestJSONUnknownStateBeforeFirstTick(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Fan != "UNKNOWN" {
		t.Errorf("Fan before first tick: got %q, want UNKNOWN", sj.Status.Fan)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	until := time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC)
	tr.Update(logic.Decision{State: logic.StateOff, Reason: logic.ReasonOverride, Override: true},
		logic.TransitionCounts{On: 1, Off: 1}, logic.Never, until)

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	page := string(body)
	for _, want := range []string{
		`<td id="fan-state" class="off">OFF</td>`,
		"until 2026-01-01T00:15:00Z",
		"<td>never</td>",
		"relays 2/3",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func getPage(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestHTMLRefreshesWithoutLiveUpdates(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	page := getPage(t, ts.URL+"/")
	if !strings.Contains(page, `<meta http-equiv="refresh" content="10">`) {
		t.Error("expected meta refresh when live updates are off")
	}
	for _, unwanted := range []string{"live-dot", "mqtt.min.js", "mqtt.connect"} {
		if strings.Contains(page, unwanted) {
			t.Errorf("page should not contain %q", unwanted)
		}
	}
}

func TestHTMLLiveUpdates(t *testing.T) {
	tr := status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{
		Broker:   "tcp://192.168.1.200:1883",
		WSBroker: "ws://192.168.1.200:9001",
	})
	ts := httptest.NewServer(New(":0", tr, nil).httpServer.Handler)
	t.Cleanup(ts.Close)

	page := getPage(t, ts.URL+"/")
	for _, want := range []string{
		`<span id="live-dot" class="live-dot pending" title="connecting"></span>`,
		`<td id="decided-by">`,
		`<script src="/mqtt.min.js"></script>`,
		"192.168.1.200:9001",
		`bathroom\/fan\/events`,
		`bathroom\/fan\/system`,
		"setFan(msg.fan.state, msg.fan.reason)",
		"setFan(msg.status.fan, msg.status.decided_by)",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, `http-equiv="refresh"`) {
		t.Error("live page should not reload itself")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.SetState(logic.StateOn)
	ts, _ := newTestServer(t, m)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "bathroom_fan_on 1") {
		t.Errorf("metrics missing fan gauge:\n%s", body)
	}
}

func TestMetricsEndpointDisabled(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	// Falls through to the index handler, which rejects unknown paths.
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, nil)

	if sj := getJSON(t, ts.URL+"/index.json"); sj.Status.Counts.On != 0 {
		t.Errorf("expected no transitions initially, got %+v", sj.Status.Counts)
	}

	tr.Update(logic.Decision{State: logic.StateOn, Reason: logic.ReasonFumigation, Fumigation: true},
		logic.TransitionCounts{On: 1}, logic.Never, logic.Never)
	tr.SetMQTTConnected(true)

	sj := getJSON(t, ts.URL+"/index.json")
	if sj.Status.Fan != "ON" {
		t.Errorf("Fan: got %q, want ON", sj.Status.Fan)
	}
	if !sj.Status.Inputs.Fumigation {
		t.Error("expected fumigation input after update")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
