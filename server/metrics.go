package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics publishes the engine counters to prometheus. All methods are
// safe on a nil receiver, so the engine can run unmetered.
type Metrics struct {
	openConnections prometheus.Gauge
	acceptedTotal   prometheus.Counter
	packetsTotal    *prometheus.CounterVec
	echoedBytes     *prometheus.CounterVec
	openSessions    prometheus.Gauge
	sessionsTotal   prometheus.Counter
	evictedTotal    prometheus.Counter
	slowDisconnects prometheus.Counter
}

// NewMetrics creates the server collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		openConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "echo_server_tcp_open_connections",
			Help: "Currently open TCP connections",
		}),
		acceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "echo_server_tcp_accepted_total",
			Help: "Total accepted TCP connections",
		}),
		packetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "echo_server_packets_total",
			Help: "Total datagrams echoed",
		}, []string{"protocol"}),
		echoedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "echo_server_echoed_bytes_total",
			Help: "Total bytes echoed back to peers",
		}, []string{"protocol"}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "echo_server_quic_open_sessions",
			Help: "Live QUIC-lite sessions",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "echo_server_quic_sessions_total",
			Help: "Total QUIC-lite sessions ever created",
		}),
		evictedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "echo_server_quic_sessions_evicted_total",
			Help: "QUIC-lite sessions evicted for inactivity",
		}),
		slowDisconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "echo_server_slow_disconnects_total",
			Help: "TCP clients dropped for not draining their echoes",
		}),
	}
	reg.MustRegister(
		m.openConnections,
		m.acceptedTotal,
		m.packetsTotal,
		m.echoedBytes,
		m.openSessions,
		m.sessionsTotal,
		m.evictedTotal,
		m.slowDisconnects,
	)
	return m
}

// ConnectionOpened records an accepted TCP connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.acceptedTotal.Inc()
	m.openConnections.Inc()
}

// ConnectionClosed records a closed TCP connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.openConnections.Dec()
}

// UDPPacket records an echoed UDP datagram.
func (m *Metrics) UDPPacket() {
	if m == nil {
		return
	}
	m.packetsTotal.WithLabelValues("udp").Inc()
}

// QUICPacket records an echoed QUIC-lite datagram.
func (m *Metrics) QUICPacket() {
	if m == nil {
		return
	}
	m.packetsTotal.WithLabelValues("quic").Inc()
}

// EchoedBytes records n bytes echoed on the given protocol.
func (m *Metrics) EchoedBytes(protocol string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.echoedBytes.WithLabelValues(protocol).Add(float64(n))
}

// SetOpenSessions records the current QUIC-lite session count.
func (m *Metrics) SetOpenSessions(n int) {
	if m == nil {
		return
	}
	m.openSessions.Set(float64(n))
}

// SessionCreated records a QUIC-lite session seen for the first time.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsTotal.Inc()
}

// SessionsEvicted records n sessions removed by the sweep.
func (m *Metrics) SessionsEvicted(n int) {
	if m == nil {
		return
	}
	m.evictedTotal.Add(float64(n))
}

// SlowClientDisconnect records a client dropped at the pending-write cap.
func (m *Metrics) SlowClientDisconnect() {
	if m == nil {
		return
	}
	m.slowDisconnects.Inc()
}
