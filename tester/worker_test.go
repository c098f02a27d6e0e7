package tester

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/apex/log"
)

func TestTesterTCPWorker(t *testing.T) {
	t.Run("dial failure", func(t *testing.T) {
		tester := New(log.Log)
		tester.StartJitter = 0
		tester.deps.Dial = func(network, address string) (net.Conn, error) {
			return nil, errors.New("Mocked error")
		}
		state := &runState{}
		tester.tcpWorker(state, 0)
		if state.connections.Load() != 0 {
			t.Fatal("Expected no connections")
		}
		if state.attempts.Load() != 0 {
			t.Fatal("Expected no attempts")
		}
	})

	t.Run("server closes the connection", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer listener.Close()
		go func() {
			for {
				conn, err := listener.Accept()
				if err != nil {
					return
				}
				conn.Close()
			}
		}()
		tester := New(log.Log)
		tester.StartJitter = 0
		tester.ServerHost, tester.TCPPort = mustSplitHostPort(t, listener.Addr().String())
		state := &runState{}
		// The worker must give up on its own: nothing sets the stop flag.
		tester.tcpWorker(state, 0)
		if state.connections.Load() != 1 {
			t.Fatal("Expected a single connection")
		}
		if state.attempts.Load() < 1 {
			t.Fatal("Expected at least one attempt")
		}
		if len(state.latencies) != 0 {
			t.Fatal("Expected no samples")
		}
		if state.active.Load() != 0 {
			t.Fatal("The worker did not release the active count")
		}
	})

	t.Run("stop flag ends the worker", func(t *testing.T) {
		address, stop := startTCPEchoServer(t)
		defer stop()
		tester := newLocalTester(t, address, "")
		state := &runState{}
		done := make(chan struct{})
		go func() {
			tester.tcpWorker(state, 0)
			close(done)
		}()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			state.mu.Lock()
			samples := len(state.latencies)
			state.mu.Unlock()
			if samples >= 1 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		state.stop.Store(true)
		<-done
		if state.connections.Load() != 1 {
			t.Fatal("Expected a single connection")
		}
		if len(state.latencies) < 1 {
			t.Fatal("Expected at least one sample")
		}
		if state.attempts.Load() < int64(len(state.latencies)) {
			t.Fatal("More samples than attempts")
		}
		if state.totalBytes.Load() <= 0 {
			t.Fatal("Expected some bytes to be counted")
		}
		if state.active.Load() != 0 {
			t.Fatal("The worker did not release the active count")
		}
	})
}

func TestTesterUDPWorker(t *testing.T) {
	t.Run("dial failure", func(t *testing.T) {
		tester := New(log.Log)
		tester.StartJitter = 0
		tester.deps.Dial = func(network, address string) (net.Conn, error) {
			return nil, errors.New("Mocked error")
		}
		state := &runState{}
		tester.udpWorker(state, 0)
		if state.connections.Load() != 0 {
			t.Fatal("Expected no connections")
		}
		if state.attempts.Load() != 0 {
			t.Fatal("Expected no attempts")
		}
	})

	t.Run("missing echoes do not end the worker", func(t *testing.T) {
		if testing.Short() {
			t.Skip("skipping test in short mode")
		}
		// This server swallows every datagram, so each request times
		// out. A TCP worker would quit after the first failure.
		conn, err := net.ListenPacket("udp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		go func() {
			buffer := make([]byte, 2048)
			for {
				if _, _, err := conn.ReadFrom(buffer); err != nil {
					return
				}
			}
		}()
		tester := New(log.Log)
		tester.StartJitter = 0
		tester.ServerHost, tester.UDPPort = mustSplitHostPort(t, conn.LocalAddr().String())
		state := &runState{}
		done := make(chan struct{})
		go func() {
			tester.udpWorker(state, 0)
			close(done)
		}()
		deadline := time.Now().Add(10 * time.Second)
		for state.attempts.Load() < 2 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		state.stop.Store(true)
		<-done
		if state.attempts.Load() < 2 {
			t.Fatal("Expected the worker to keep sending")
		}
		if len(state.latencies) != 0 {
			t.Fatal("Expected no samples")
		}
		if state.active.Load() != 0 {
			t.Fatal("The worker did not release the active count")
		}
	})

	t.Run("stop flag ends the worker", func(t *testing.T) {
		address, stop := startUDPEchoServer(t)
		defer stop()
		tester := newLocalTester(t, "", address)
		state := &runState{}
		done := make(chan struct{})
		go func() {
			tester.udpWorker(state, 0)
			close(done)
		}()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			state.mu.Lock()
			samples := len(state.latencies)
			state.mu.Unlock()
			if samples >= 1 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		state.stop.Store(true)
		<-done
		if state.connections.Load() != 1 {
			t.Fatal("Expected a single connection")
		}
		if len(state.latencies) < 1 {
			t.Fatal("Expected at least one sample")
		}
		if state.totalBytes.Load() <= 0 {
			t.Fatal("Expected some bytes to be counted")
		}
	})
}
