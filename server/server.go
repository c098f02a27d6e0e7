// Package server implements the multi-protocol echo server.
//
// One goroutine owns everything: three listening sockets (TCP, UDP and
// QUIC-lite), every accepted TCP connection, and the QUIC-lite session
// table. Readiness is multiplexed through a single poller, so the engine
// never blocks on any one peer. Listeners are level-triggered; accepted
// TCP connections are edge-triggered and drained to EAGAIN on every
// wakeup.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Algorysh/Networking-Tests/internal"
	"github.com/Algorysh/Networking-Tests/model"
	"github.com/Algorysh/Networking-Tests/poller"
	"github.com/Algorysh/Networking-Tests/spec"
)

// ErrListenerFailed is the error returned by Run when the poller reports
// an error or hangup condition on one of the listening sockets.
var ErrListenerFailed = errors.New("listener socket failed")

// readinessPoller is the slice of the poller API the engine consumes.
type readinessPoller interface {
	Add(fd int, ev poller.EventSet) error
	Modify(fd int, ev poller.EventSet) error
	Remove(fd int) error
	Wait(events []poller.Event, timeout int) (int, error)
	Close() error
}

type deps struct {
	Accept        func(fd int) (int, unix.Sockaddr, error)
	Bind          func(fd int, sa unix.Sockaddr) error
	Close         func(fd int) error
	Getsockname   func(fd int) (unix.Sockaddr, error)
	JSONMarshal   func(v interface{}) ([]byte, error)
	Listen        func(fd, backlog int) error
	PollerNew     func() (readinessPoller, error)
	Read          func(fd int, p []byte) (int, error)
	Recvfrom      func(fd int, p []byte, flags int) (int, unix.Sockaddr, error)
	Sendto        func(fd int, p []byte, flags int, to unix.Sockaddr) error
	SetNonblock   func(fd int, nonblocking bool) error
	SetsockoptInt func(fd, level, opt, value int) error
	Socket        func(domain, typ, proto int) (int, error)
	Write         func(fd int, p []byte) (int, error)
}

func newDeps() deps {
	return deps{
		Accept:      unix.Accept,
		Bind:        unix.Bind,
		Close:       unix.Close,
		Getsockname: unix.Getsockname,
		JSONMarshal: json.Marshal,
		Listen:      unix.Listen,
		PollerNew: func() (readinessPoller, error) {
			p, err := poller.New()
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		Read:          unix.Read,
		Recvfrom:      unix.Recvfrom,
		Sendto:        unix.Sendto,
		SetNonblock:   unix.SetNonblock,
		SetsockoptInt: unix.SetsockoptInt,
		Socket:        unix.Socket,
		Write:         unix.Write,
	}
}

// Server is the echo server engine. Configure the public fields before
// calling Listen; after that the engine owns them.
type Server struct {
	// TCPPort is the TCP echo port. Zero selects an ephemeral port and
	// Listen overwrites the field with the port actually bound. The
	// same applies to UDPPort and QUICPort.
	TCPPort int

	// UDPPort is the UDP echo port.
	UDPPort int

	// QUICPort is the QUIC-lite echo port.
	QUICPort int

	// Logger is the logger to use. This field is initialized by the
	// New constructor.
	Logger model.Logger

	// Metrics optionally publishes engine counters to prometheus. A nil
	// Metrics is valid and records nothing.
	Metrics *Metrics

	// SessionIdleTimeout is how long a QUIC-lite session may stay idle
	// before the sweep evicts it.
	SessionIdleTimeout time.Duration

	deps deps

	poller    readinessPoller
	tcpFD     int
	udpFD     int
	quicFD    int
	clients   map[int]*tcpClient
	sessions  map[uint32]*quicSession
	lastSweep time.Time
	started   time.Time

	// The engine goroutine is the only writer of the counters; the
	// status endpoint and CountSessions read them from outside.
	counters counters

	// buf receives; out is where QUIC-lite responses are assembled,
	// since their payload aliases buf.
	buf [spec.BufferSize]byte
	out [spec.BufferSize]byte
}

// New creates a new Server with default ports. Pass internal.NoLogger{}
// to silence it.
func New(logger model.Logger) *Server {
	if logger == nil {
		logger = internal.NoLogger{}
	}
	return &Server{
		TCPPort:            spec.DefaultTCPPort,
		UDPPort:            spec.DefaultUDPPort,
		QUICPort:           spec.DefaultQUICPort,
		Logger:             logger,
		SessionIdleTimeout: spec.DefaultSessionIdleTimeout,
		deps:               newDeps(),
		tcpFD:              -1,
		udpFD:              -1,
		quicFD:             -1,
		clients:            make(map[int]*tcpClient),
		sessions:           make(map[uint32]*quicSession),
	}
}

// Listen creates the poller and binds the three echo sockets. On failure
// everything opened so far is released, so a failed Listen leaves no
// descriptors behind.
func (s *Server) Listen() error {
	p, err := s.deps.PollerNew()
	if err != nil {
		return err
	}
	s.poller = p
	if err := s.setupTCP(); err != nil {
		s.Close()
		return err
	}
	if err := s.setupUDP(); err != nil {
		s.Close()
		return err
	}
	if err := s.setupQUIC(); err != nil {
		s.Close()
		return err
	}
	now := time.Now()
	s.lastSweep = now
	s.started = now
	return nil
}

// Run drives the readiness loop until ctx expires, the poller fails, or
// a listening socket reports an error condition. Call Listen first.
func (s *Server) Run(ctx context.Context) error {
	s.Logger.Info("Server started. Press Ctrl+C to stop.")
	// A finite poll timeout keeps the sweep and the ctx check alive
	// through idle stretches.
	const waitTimeout = 1000
	events := make([]poller.Event, spec.MaxEvents)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := s.poller.Wait(events, waitTimeout)
		if err != nil {
			s.Logger.Warnf("poll: %s", err.Error())
			return err
		}
		for i := 0; i < n; i++ {
			if err := s.dispatch(events[i]); err != nil {
				s.Logger.Warnf("dispatch: %s", err.Error())
				return err
			}
		}
		if time.Since(s.lastSweep) >= spec.SessionSweepInterval {
			s.sweepSessions()
			s.lastSweep = time.Now()
		}
	}
}

// dispatch routes one readiness event. An error or hangup condition on
// a listening socket is fatal and aborts the loop; on a client socket
// it just tears that client down.
func (s *Server) dispatch(ev poller.Event) error {
	if ev.Ready&poller.Closed != 0 {
		switch ev.FD {
		case s.tcpFD, s.udpFD, s.quicFD:
			return fmt.Errorf("%w: fd %d", ErrListenerFailed, ev.FD)
		}
	}
	switch ev.FD {
	case s.tcpFD:
		s.acceptClients()
	case s.udpFD:
		s.handleUDP()
	case s.quicFD:
		s.handleQUIC()
	default:
		client, ok := s.clients[ev.FD]
		if !ok {
			// Closed earlier in this batch.
			return nil
		}
		if ev.Ready&poller.Closed != 0 {
			s.closeClient(client)
			return nil
		}
		if ev.Ready&poller.Writable != 0 {
			if !s.flushPending(client) {
				return nil
			}
		}
		if ev.Ready&(poller.Readable|poller.PeerClosed) != 0 {
			s.handleTCPClient(client)
		}
	}
	return nil
}

// Close releases every descriptor the engine owns. Safe to call after a
// failed Listen.
func (s *Server) Close() error {
	for _, client := range s.clients {
		s.deps.Close(client.fd)
	}
	s.clients = make(map[int]*tcpClient)
	if s.tcpFD != -1 {
		s.deps.Close(s.tcpFD)
		s.tcpFD = -1
	}
	if s.udpFD != -1 {
		s.deps.Close(s.udpFD)
		s.udpFD = -1
	}
	if s.quicFD != -1 {
		s.deps.Close(s.quicFD)
		s.quicFD = -1
	}
	if s.poller != nil {
		err := s.poller.Close()
		s.poller = nil
		return err
	}
	return nil
}

// CountConnections returns the number of open TCP connections.
func (s *Server) CountConnections() int {
	return int(s.counters.tcpConnections.Load())
}

// CountSessions returns the number of live QUIC-lite sessions.
func (s *Server) CountSessions() int {
	return int(s.counters.quicSessions.Load())
}

// bindSocket creates a non-blocking INADDR_ANY socket of the given type
// and binds it to port. It returns the descriptor and the port actually
// bound, which differs from the argument when port is zero.
func (s *Server) bindSocket(typ, port int) (int, int, error) {
	fd, err := s.deps.Socket(unix.AF_INET, typ, 0)
	if err != nil {
		return -1, 0, err
	}
	if err := s.deps.SetNonblock(fd, true); err != nil {
		s.deps.Close(fd)
		return -1, 0, err
	}
	if err := s.deps.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		s.deps.Close(fd)
		return -1, 0, err
	}
	if err := s.deps.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		s.deps.Close(fd)
		return -1, 0, err
	}
	if port == 0 {
		sa, err := s.deps.Getsockname(fd)
		if err != nil {
			s.deps.Close(fd)
			return -1, 0, err
		}
		if sin, ok := sa.(*unix.SockaddrInet4); ok {
			port = sin.Port
		}
	}
	return fd, port, nil
}
