package server

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Algorysh/Networking-Tests/spec"
)

// counters are the engine tallies published outside the event loop. The
// loop is the only writer; the status handler and the Count accessors
// are the readers.
type counters struct {
	tcpConnections atomic.Int64
	tcpAccepted    atomic.Int64
	udpPackets     atomic.Int64
	quicPackets    atomic.Int64

	// quicConnections counts sessions ever created; quicSessions is the
	// live table size, which the sweep shrinks.
	quicConnections atomic.Int64
	quicSessions    atomic.Int64
}

// statusSnapshot is the body served by the status endpoint.
type statusSnapshot struct {
	TCPConnections  int64   `json:"tcp_connections"`
	TCPAccepted     int64   `json:"tcp_accepted"`
	UDPPackets      int64   `json:"udp_packets"`
	QUICPackets     int64   `json:"quic_packets"`
	QUICConnections int64   `json:"quic_connections"`
	QUICSessions    int64   `json:"quic_sessions"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

func (s *Server) snapshot() statusSnapshot {
	return statusSnapshot{
		TCPConnections:  s.counters.tcpConnections.Load(),
		TCPAccepted:     s.counters.tcpAccepted.Load(),
		UDPPackets:      s.counters.udpPackets.Load(),
		QUICPackets:     s.counters.quicPackets.Load(),
		QUICConnections: s.counters.quicConnections.Load(),
		QUICSessions:    s.counters.quicSessions.Load(),
		UptimeSeconds:   time.Since(s.started).Seconds(),
	}
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	data, err := s.deps.JSONMarshal(s.snapshot())
	if err != nil {
		w.WriteHeader(500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// RegisterHandlers registers handlers for the URLs used by the status
// sidecar. The following prefixes are registered:
//
// - /status
//
// The /status prefix serves a JSON snapshot of the engine counters, so
// a harness run can be correlated with what the server actually saw.
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc(spec.StatusPath, s.status)
}
