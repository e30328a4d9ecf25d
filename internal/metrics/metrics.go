// Package metrics exposes fan activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/bathroom-fan/internal/logic"
)

// Metrics holds the fan collectors on a private registry. All methods are
// safe on a nil *Metrics, which records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	fanOn       prometheus.Gauge
	transitions *prometheus.CounterVec
	edges       *prometheus.CounterVec
	relayErrors prometheus.Counter
	readErrors  prometheus.Counter
}

// New creates and registers the fan collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fanOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bathroom_fan_on",
			Help: "1 while the fan relays are energized, 0 otherwise.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bathroom_fan_transitions_total",
			Help: "Logged fan state transitions by new state.",
		}, []string{"state"}),
		edges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bathroom_fan_edges_total",
			Help: "Rising edges seen on sensor inputs.",
		}, []string{"input"}),
		relayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bathroom_fan_relay_errors_total",
			Help: "Relay writes that failed.",
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bathroom_fan_input_read_errors_total",
			Help: "Sensor pin reads that failed (poll mode).",
		}),
	}

	m.registry.MustRegister(
		m.fanOn,
		m.transitions,
		m.edges,
		m.relayErrors,
		m.readErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (for tests and extra collectors).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SetState records the state currently driven onto the relays.
func (m *Metrics) SetState(s logic.State) {
	if m == nil {
		return
	}
	if s == logic.StateOn {
		m.fanOn.Set(1)
	} else {
		m.fanOn.Set(0)
	}
}

// Transition counts a logged transition into s.
func (m *Metrics) Transition(s logic.State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(s)).Inc()
}

// Edge counts a rising edge on the named input.
func (m *Metrics) Edge(input string) {
	if m == nil {
		return
	}
	m.edges.WithLabelValues(input).Inc()
}

// RelayError counts a failed relay write.
func (m *Metrics) RelayError() {
	if m == nil {
		return
	}
	m.relayErrors.Inc()
}

// ReadError counts a failed sensor read.
func (m *Metrics) ReadError() {
	if m == nil {
		return
	}
	m.readErrors.Inc()
}
