package tester

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// startTCPEchoServer runs a minimal echo server the workers can talk
// to. The returned stop function closes the listener.
func startTCPEchoServer(t *testing.T) (string, func()) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				io.Copy(conn, conn)
			}(conn)
		}
	}()
	return listener.Addr().String(), func() { listener.Close() }
}

func startUDPEchoServer(t *testing.T) (string, func()) {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go func() {
		buffer := make([]byte, 2048)
		for {
			n, addr, err := conn.ReadFrom(buffer)
			if err != nil {
				return
			}
			conn.WriteTo(buffer[:n], addr)
		}
	}()
	return conn.LocalAddr().String(), func() { conn.Close() }
}

func mustSplitHostPort(t *testing.T, address string) (string, int) {
	t.Helper()
	host, portString, err := net.SplitHostPort(address)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portString)
	if err != nil {
		t.Fatal(err)
	}
	return host, port
}

// newLocalTester points a tester with short runs at local echo servers.
// Empty addresses leave the corresponding port at its default.
func newLocalTester(t *testing.T, tcpAddress, udpAddress string) *Tester {
	t.Helper()
	tester := New(log.Log)
	tester.TestDuration = 400 * time.Millisecond
	tester.RampDuration = 20 * time.Millisecond
	tester.PauseBetweenRuns = 10 * time.Millisecond
	tester.StartJitter = 0
	if tcpAddress != "" {
		tester.ServerHost, tester.TCPPort = mustSplitHostPort(t, tcpAddress)
	}
	if udpAddress != "" {
		tester.ServerHost, tester.UDPPort = mustSplitHostPort(t, udpAddress)
	}
	return tester
}

func TestTesterMonitor(t *testing.T) {
	tester := New(log.Log)
	tester.Metrics = NewMetrics(prometheus.NewRegistry())
	tester.deps.Sleep = func(d time.Duration) {
		time.Sleep(time.Millisecond)
	}
	state := &runState{}
	state.active.Store(7)
	done := make(chan struct{})
	go tester.monitor(state, done)
	time.Sleep(20 * time.Millisecond)
	state.active.Store(3)
	time.Sleep(20 * time.Millisecond)
	state.stop.Store(true)
	<-done
	if state.peak.Load() != 7 {
		t.Fatal("Expected the peak to remember the highest sample")
	}
	if v := testutil.ToFloat64(tester.Metrics.peakClients); v != 7 {
		t.Fatal("Expected the peak gauge to follow the sample")
	}
}

func TestTesterRunOne(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode")
	}

	t.Run("TCP common case", func(t *testing.T) {
		address, stop := startTCPEchoServer(t)
		defer stop()
		tester := newLocalTester(t, address, "")
		result := tester.runOne(context.Background(), "TCP", 2)
		if result.Protocol != "TCP" {
			t.Fatal("Unexpected protocol")
		}
		if result.ClientCount != 2 {
			t.Fatal("Unexpected client count")
		}
		if result.UUID == "" {
			t.Fatal("The UUID is empty")
		}
		if result.Timestamp == "" {
			t.Fatal("The timestamp is empty")
		}
		if result.TotalRequests < 2 {
			t.Fatal("Expected at least one request per worker")
		}
		if result.SuccessfulRequests < 2 {
			t.Fatal("Expected at least one sample per worker")
		}
		if result.SuccessfulRequests > result.TotalRequests {
			t.Fatal("More successes than attempts")
		}
		if result.SuccessRate <= 0 || result.SuccessRate > 100 {
			t.Fatal("Success rate out of range")
		}
		if result.ThroughputMBps <= 0 {
			t.Fatal("Expected nonzero throughput")
		}
		if result.ConnectionsPerSec <= 0 {
			t.Fatal("Expected a nonzero connection rate")
		}
		if result.PeakConcurrent < 1 {
			t.Fatal("Expected a nonzero concurrency peak")
		}
		for p := 1; p < 100; p++ {
			if result.Percentiles[p] < result.Percentiles[p-1] {
				t.Fatal("Percentiles are not monotonic")
			}
		}
	})

	t.Run("UDP common case", func(t *testing.T) {
		address, stop := startUDPEchoServer(t)
		defer stop()
		tester := newLocalTester(t, "", address)
		result := tester.runOne(context.Background(), "UDP", 2)
		if result.Protocol != "UDP" {
			t.Fatal("Unexpected protocol")
		}
		if result.SuccessfulRequests < 2 {
			t.Fatal("Expected at least one sample per worker")
		}
		if result.ThroughputMBps <= 0 {
			t.Fatal("Expected nonzero throughput")
		}
		if result.PeakConcurrent < 1 {
			t.Fatal("Expected a nonzero concurrency peak")
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		address, stop := startTCPEchoServer(t)
		defer stop()
		tester := newLocalTester(t, address, "")
		tester.TestDuration = time.Hour
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		start := time.Now()
		result := tester.runOne(ctx, "TCP", 1)
		if time.Since(start) > 5*time.Second {
			t.Fatal("The run did not stop early")
		}
		if result.Protocol != "TCP" || result.ClientCount != 1 {
			t.Fatal("The result is malformed")
		}
		if result.SuccessfulRequests > result.TotalRequests {
			t.Fatal("More successes than attempts")
		}
	})
}

func TestTesterTimestamp(t *testing.T) {
	stamp := timestamp(time.Date(2024, time.January, 29, 20, 23, 0, 0, time.UTC))
	if stamp != "2024-01-29 20:23:00.000" {
		t.Fatal("Unexpected timestamp shape")
	}
}
