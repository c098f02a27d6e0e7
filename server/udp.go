package server

import (
	"golang.org/x/sys/unix"

	"github.com/Algorysh/Networking-Tests/poller"
	"github.com/Algorysh/Networking-Tests/spec"
)

// setupDatagram binds a UDP socket with enlarged kernel buffers and
// registers it level-triggered. Both the plain UDP port and the
// QUIC-lite port go through here.
func (s *Server) setupDatagram(port int) (int, int, error) {
	fd, port, err := s.bindSocket(unix.SOCK_DGRAM, port)
	if err != nil {
		return -1, 0, err
	}
	// Defaults drop datagrams long before the echo path saturates.
	if err := s.deps.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, spec.SocketBufferSize); err != nil {
		s.deps.Close(fd)
		return -1, 0, err
	}
	if err := s.deps.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, spec.SocketBufferSize); err != nil {
		s.deps.Close(fd)
		return -1, 0, err
	}
	if err := s.poller.Add(fd, poller.Readable); err != nil {
		s.deps.Close(fd)
		return -1, 0, err
	}
	return fd, port, nil
}

func (s *Server) setupUDP() error {
	fd, port, err := s.setupDatagram(s.UDPPort)
	if err != nil {
		return err
	}
	s.udpFD = fd
	s.UDPPort = port
	s.Logger.Infof("UDP server listening on port %d", port)
	return nil
}

// handleUDP echoes datagrams back to their sender until the socket
// drains. A failed send is logged and skipped; the sender is likely
// gone and the next datagram matters more.
func (s *Server) handleUDP() {
	for {
		n, from, err := s.deps.Recvfrom(s.udpFD, s.buf[:], 0)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			s.Logger.Warnf("UDP recvfrom: %s", err.Error())
			return
		}
		if n <= 0 {
			continue
		}
		if err := s.deps.Sendto(s.udpFD, s.buf[:n], 0, from); err != nil {
			s.Logger.Warnf("UDP sendto: %s", err.Error())
			continue
		}
		s.Metrics.EchoedBytes("udp", n)
		if packets := s.counters.udpPackets.Add(1); packets%1000 == 0 {
			s.Logger.Infof("UDP packets processed: %d", packets)
		}
		s.Metrics.UDPPacket()
	}
}
