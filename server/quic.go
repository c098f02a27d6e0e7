package server

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Algorysh/Networking-Tests/spec"
)

// quicSession tracks one QUIC-lite connection id. Sessions are created
// on first sight and evicted by the sweep once idle.
type quicSession struct {
	id uint32

	// peer is where responses for this id are sent. Captured from the
	// first datagram and never updated, so a rebinding client keeps
	// being echoed to its original address.
	peer unix.Sockaddr

	// established is reserved for handshake logic that does not exist
	// yet; nothing sets or reads it.
	established bool

	lastActivity time.Time
}

func (s *Server) setupQUIC() error {
	fd, port, err := s.setupDatagram(s.QUICPort)
	if err != nil {
		return err
	}
	s.quicFD = fd
	s.QUICPort = port
	s.Logger.Infof("QUIC server listening on port %d", port)
	return nil
}

// parseQUICDatagram splits a datagram into connection id and payload.
// Datagrams too short to carry the id header collapse onto id zero with
// the whole datagram as payload.
func parseQUICDatagram(b []byte) (uint32, []byte) {
	if len(b) < spec.QUICHeaderSize {
		return 0, b
	}
	return binary.BigEndian.Uint32(b[:spec.QUICHeaderSize]), b[spec.QUICHeaderSize:]
}

// appendQUICResponse appends the echo response for connID to dst: the id
// in network byte order, the echo prefix, then as much of the payload
// as still fits a full response datagram.
func appendQUICResponse(dst []byte, connID uint32, payload []byte) []byte {
	if len(payload) > spec.MaxQUICEchoPayload {
		payload = payload[:spec.MaxQUICEchoPayload]
	}
	dst = binary.BigEndian.AppendUint32(dst, connID)
	dst = append(dst, spec.QUICEchoPrefix...)
	return append(dst, payload...)
}

// touchSession returns the session for id, creating it on first sight
// with from as its peer address. An existing session only gets a fresh
// activity stamp; its stored peer address is left alone.
func (s *Server) touchSession(id uint32, from unix.Sockaddr) *quicSession {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &quicSession{id: id, peer: from}
		s.sessions[id] = sess
		total := s.counters.quicConnections.Add(1)
		s.counters.quicSessions.Store(int64(len(s.sessions)))
		s.Metrics.SessionCreated()
		s.Metrics.SetOpenSessions(len(s.sessions))
		s.Logger.Debugf("QUIC session %d created, total sessions: %d", id, total)
	}
	sess.lastActivity = time.Now()
	return sess
}

// handleQUIC echoes QUIC-lite datagrams until the socket drains,
// touching the sender's session on every datagram. Responses go to the
// session's stored peer address, not to the datagram's source.
func (s *Server) handleQUIC() {
	for {
		n, from, err := s.deps.Recvfrom(s.quicFD, s.buf[:], 0)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			s.Logger.Warnf("QUIC recvfrom: %s", err.Error())
			return
		}
		if n <= 0 {
			continue
		}
		connID, payload := parseQUICDatagram(s.buf[:n])
		sess := s.touchSession(connID, from)
		resp := appendQUICResponse(s.out[:0], connID, payload)
		if err := s.deps.Sendto(s.quicFD, resp, 0, sess.peer); err != nil {
			s.Logger.Warnf("QUIC sendto: %s", err.Error())
			continue
		}
		s.Metrics.EchoedBytes("quic", len(resp))
		if packets := s.counters.quicPackets.Add(1); packets%1000 == 0 {
			s.Logger.Infof("QUIC packets processed: %d", packets)
		}
		s.Metrics.QUICPacket()
	}
}

// sweepSessions evicts sessions idle past the timeout. It runs from the
// event loop, so spacing depends on spec.SessionSweepInterval and on
// traffic actually waking the loop.
func (s *Server) sweepSessions() {
	s.Logger.Debugf("sweep: inspecting %d sessions", len(s.sessions))
	now := time.Now()
	var stale []uint32
	for id, sess := range s.sessions {
		if now.Sub(sess.lastActivity) > s.SessionIdleTimeout {
			stale = append(stale, id)
		}
	}
	s.Logger.Debugf("sweep: evicting %d idle sessions", len(stale))
	for _, id := range stale {
		delete(s.sessions, id)
	}
	if len(stale) > 0 {
		s.Metrics.SessionsEvicted(len(stale))
	}
	s.counters.quicSessions.Store(int64(len(s.sessions)))
	s.Metrics.SetOpenSessions(len(s.sessions))
}
