// Package metrics instruments the dashboard core with Prometheus collectors.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultSuccess    = "success"
	ResultError      = "error"
	ResultSuperseded = "superseded"
	ResultSkipped    = "skipped"
	ResultCoalesced  = "coalesced"
)

// Metrics groups every collector the core records to.
type Metrics struct {
	registry *prometheus.Registry

	fetches      *prometheus.CounterVec
	fetchSeconds prometheus.Histogram
	polls        *prometheus.CounterVec
	commands     *prometheus.CounterVec
	renderFaults prometheus.Counter
	records      prometheus.Gauge
	highRisk     prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskmonitor",
			Name:      "record_fetches_total",
			Help:      "Record queries issued by the dashboard, by result.",
		}, []string{"result"}),
		fetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "riskmonitor",
			Name:      "record_fetch_duration_seconds",
			Help:      "Latency of record queries.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskmonitor",
			Name:      "status_polls_total",
			Help:      "Backend status polls, by result.",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "riskmonitor",
			Name:      "commands_total",
			Help:      "Run-now requests, by result.",
		}, []string{"result"}),
		renderFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "riskmonitor",
			Name:      "render_faults_total",
			Help:      "Presentation failures caught by the fault boundary.",
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riskmonitor",
			Name:      "displayed_records",
			Help:      "Records in the current result set.",
		}),
		highRisk: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "riskmonitor",
			Name:      "displayed_high_risk_records",
			Help:      "High-risk records in the current result set.",
		}),
	}

	reg.MustRegister(
		m.fetches, m.fetchSeconds, m.polls, m.commands, m.renderFaults, m.records, m.highRisk,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry; nil for a nil receiver.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Fetch records a resolved record query.
func (m *Metrics) Fetch(result string, seconds float64) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
	if result != ResultSuperseded {
		m.fetchSeconds.Observe(seconds)
	}
}

// ResultSet records the size of the committed result set.
func (m *Metrics) ResultSet(total, highRisk int) {
	if m == nil {
		return
	}
	m.records.Set(float64(total))
	m.highRisk.Set(float64(highRisk))
}

// Poll records a status poll tick.
func (m *Metrics) Poll(result string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
}

// Command records a run-now request.
func (m *Metrics) Command(result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(result).Inc()
}

// RenderFault records a contained presentation failure.
func (m *Metrics) RenderFault() {
	if m == nil {
		return
	}
	m.renderFaults.Inc()
}
