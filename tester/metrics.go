package tester

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Algorysh/Networking-Tests/model"
)

// Metrics publishes harness counters to prometheus. All methods are
// safe on a nil receiver, so the harness can run unmetered.
type Metrics struct {
	activeClients prometheus.Gauge
	peakClients   prometheus.Gauge
	requestsTotal *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	throughput    *prometheus.GaugeVec
	runsTotal     prometheus.Counter
}

// NewMetrics creates the harness collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scale_tester_active_clients",
			Help: "Workers currently connected",
		}),
		peakClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scale_tester_peak_clients",
			Help: "Highest worker count observed in the current run",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scale_tester_requests_total",
			Help: "Echo requests by protocol and outcome",
		}, []string{"protocol", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scale_tester_latency_ms",
			Help:    "Echo round-trip latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 20),
		}, []string{"protocol"}),
		throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scale_tester_throughput_mbps",
			Help: "Throughput of the last completed run in MB/s",
		}, []string{"protocol", "clients"}),
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scale_tester_runs_total",
			Help: "Completed (protocol, cohort size) runs",
		}),
	}
	reg.MustRegister(
		m.activeClients,
		m.peakClients,
		m.requestsTotal,
		m.latency,
		m.throughput,
		m.runsTotal,
	)
	return m
}

// WorkerStarted records a worker that connected.
func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.activeClients.Inc()
}

// WorkerStopped records a worker that finished.
func (m *Metrics) WorkerStopped() {
	if m == nil {
		return
	}
	m.activeClients.Dec()
}

// SetPeakClients records the highest worker count seen so far in the
// current run. Pass zero at run start to reset the gauge.
func (m *Metrics) SetPeakClients(n int64) {
	if m == nil {
		return
	}
	m.peakClients.Set(float64(n))
}

// RequestSucceeded records one echoed request and its latency.
func (m *Metrics) RequestSucceeded(protocol string, latencyMs float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(protocol, "success").Inc()
	m.latency.WithLabelValues(protocol).Observe(latencyMs)
}

// RequestFailed records a request whose echo never came back.
func (m *Metrics) RequestFailed(protocol string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(protocol, "failure").Inc()
}

// RunCompleted records a finished run and its headline throughput.
func (m *Metrics) RunCompleted(result model.RunResult) {
	if m == nil {
		return
	}
	m.runsTotal.Inc()
	m.throughput.WithLabelValues(
		result.Protocol, strconv.Itoa(result.ClientCount),
	).Set(result.ThroughputMBps)
}
