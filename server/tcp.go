package server

import (
	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/Algorysh/Networking-Tests/poller"
	"github.com/Algorysh/Networking-Tests/spec"
)

// clientInterest is the registration for accepted TCP connections:
// edge-triggered reads plus notification of the peer closing its end.
const clientInterest = poller.Readable | poller.EdgeTriggered | poller.PeerClosed

// tcpClient is the per-connection state. The pending queue holds echo
// bytes the socket would not take; headOff is how much of the queue's
// front chunk has already been written.
type tcpClient struct {
	fd           int
	pending      *queue.Queue
	pendingBytes int
	headOff      int
	writable     bool
}

func (s *Server) setupTCP() error {
	fd, port, err := s.bindSocket(unix.SOCK_STREAM, s.TCPPort)
	if err != nil {
		return err
	}
	if err := s.deps.Listen(fd, unix.SOMAXCONN); err != nil {
		s.deps.Close(fd)
		return err
	}
	if err := s.poller.Add(fd, poller.Readable); err != nil {
		s.deps.Close(fd)
		return err
	}
	s.tcpFD = fd
	s.TCPPort = port
	s.Logger.Infof("TCP server listening on port %d", port)
	return nil
}

// acceptClients drains the accept queue. Level-triggered registration
// means a partial drain just fires again, but taking everything in one
// go keeps up with connection bursts during ramp-up.
func (s *Server) acceptClients() {
	for {
		fd, _, err := s.deps.Accept(s.tcpFD)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			if err == unix.EMFILE || err == unix.ENFILE {
				s.Logger.Warn("Too many open files - rejecting connection")
				return
			}
			s.Logger.Warnf("accept: %s", err.Error())
			return
		}
		if err := s.deps.SetNonblock(fd, true); err != nil {
			s.Logger.Warnf("accept: set nonblock: %s", err.Error())
			s.deps.Close(fd)
			continue
		}
		if err := s.poller.Add(fd, clientInterest); err != nil {
			s.Logger.Warnf("accept: register client: %s", err.Error())
			s.deps.Close(fd)
			continue
		}
		s.clients[fd] = &tcpClient{fd: fd, pending: queue.New()}
		s.counters.tcpAccepted.Add(1)
		s.Metrics.ConnectionOpened()
		if n := s.counters.tcpConnections.Add(1); n%100 == 0 {
			s.Logger.Infof("TCP connections: %d", n)
		}
	}
}

// handleTCPClient reads until EAGAIN, echoing every chunk. The
// registration is edge-triggered, so stopping short of EAGAIN would
// strand unread bytes until the peer sends more.
func (s *Server) handleTCPClient(client *tcpClient) {
	for {
		n, err := s.deps.Read(client.fd, s.buf[:])
		if n > 0 {
			if !s.echo(client, s.buf[:n]) {
				return
			}
			continue
		}
		if err == nil {
			// Peer closed the connection.
			s.closeClient(client)
			return
		}
		if err == unix.EAGAIN {
			return
		}
		s.closeClient(client)
		return
	}
}

// echo writes data back to the client, queueing whatever the socket
// would not take. It reports whether the client is still open.
func (s *Server) echo(client *tcpClient, data []byte) bool {
	if client.pendingBytes > 0 {
		// Earlier bytes are still queued; keep FIFO order.
		return s.enqueue(client, data)
	}
	total := 0
	for total < len(data) {
		n, err := s.deps.Write(client.fd, data[total:])
		if n > 0 {
			total += n
			continue
		}
		if err == unix.EAGAIN {
			s.Metrics.EchoedBytes("tcp", total)
			return s.enqueue(client, data[total:])
		}
		if err != unix.EPIPE {
			s.Logger.Warnf("write: %s", err.Error())
		}
		s.closeClient(client)
		return false
	}
	s.Metrics.EchoedBytes("tcp", total)
	return true
}

// enqueue copies data onto the client's pending queue and arms write
// notification. A client whose queue outgrows spec.MaxPendingWrite is
// not draining and gets torn down instead.
func (s *Server) enqueue(client *tcpClient, data []byte) bool {
	if len(data) == 0 {
		return true
	}
	if client.pendingBytes+len(data) > spec.MaxPendingWrite {
		s.Logger.Warnf("disconnecting slow client: fd=%d pending=%d",
			client.fd, client.pendingBytes)
		s.Metrics.SlowClientDisconnect()
		s.closeClient(client)
		return false
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	client.pending.Add(chunk)
	client.pendingBytes += len(chunk)
	if !client.writable {
		if err := s.poller.Modify(client.fd, clientInterest|poller.Writable); err != nil {
			s.Logger.Warnf("arm write: %s", err.Error())
			s.closeClient(client)
			return false
		}
		client.writable = true
	}
	return true
}

// flushPending writes queued bytes until the queue drains or the socket
// pushes back. It reports whether the client is still open.
func (s *Server) flushPending(client *tcpClient) bool {
	for client.pending.Length() > 0 {
		full := client.pending.Peek().([]byte)
		n, err := s.deps.Write(client.fd, full[client.headOff:])
		if n > 0 {
			client.pendingBytes -= n
			client.headOff += n
			s.Metrics.EchoedBytes("tcp", n)
			if client.headOff == len(full) {
				client.pending.Remove()
				client.headOff = 0
			}
			continue
		}
		if err == unix.EAGAIN {
			return true
		}
		if err != unix.EPIPE && err != nil {
			s.Logger.Warnf("write: %s", err.Error())
		}
		s.closeClient(client)
		return false
	}
	if err := s.poller.Modify(client.fd, clientInterest); err != nil {
		s.Logger.Warnf("disarm write: %s", err.Error())
		s.closeClient(client)
		return false
	}
	client.writable = false
	return true
}

func (s *Server) closeClient(client *tcpClient) {
	s.poller.Remove(client.fd)
	s.deps.Close(client.fd)
	delete(s.clients, client.fd)
	s.counters.tcpConnections.Add(-1)
	s.Metrics.ConnectionClosed()
}
