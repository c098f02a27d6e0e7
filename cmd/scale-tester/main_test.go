package main

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/apex/log"

	"github.com/Algorysh/Networking-Tests/tester"
)

func startEchoServers(t *testing.T) (tcpPort, udpPort int, stop func()) {
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
	packetConn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		listener.Close()
		t.Fatal(err)
	}
	go func() {
		buffer := make([]byte, 2048)
		for {
			n, addr, err := packetConn.ReadFrom(buffer)
			if err != nil {
				return
			}
			packetConn.WriteTo(buffer[:n], addr)
		}
	}()
	tcpPort = mustPort(t, listener.Addr().String())
	udpPort = mustPort(t, packetConn.LocalAddr().String())
	return tcpPort, udpPort, func() {
		listener.Close()
		packetConn.Close()
	}
}

func mustPort(t *testing.T, address string) int {
	t.Helper()
	_, portString, err := net.SplitHostPort(address)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(portString)
	if err != nil {
		t.Fatal(err)
	}
	return port
}

func newTestHarness(t *testing.T, tcpPort, udpPort int) *tester.Tester {
	t.Helper()
	harness := tester.New(log.Log)
	harness.TCPPort = tcpPort
	harness.UDPPort = udpPort
	harness.ClientCounts = []int{2}
	harness.TestDuration = 300 * time.Millisecond
	harness.RampDuration = 20 * time.Millisecond
	harness.PauseBetweenRuns = 10 * time.Millisecond
	harness.StartJitter = 0
	harness.LogDir = t.TempDir()
	return harness
}

func TestRealmainSuccessful(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping this test in short mode")
	}
	tcpPort, udpPort, stop := startEchoServers(t)
	defer stop()
	harness := newTestHarness(t, tcpPort, udpPort)
	if err := realmain(context.Background(), harness, time.Minute); err != nil {
		t.Fatal(err)
	}
	if len(harness.Results()) != 2 {
		t.Fatal("Unexpected number of results")
	}
}

func TestRealmainTimeout(t *testing.T) {
	tcpPort, udpPort, stop := startEchoServers(t)
	defer stop()
	harness := newTestHarness(t, tcpPort, udpPort)
	err := realmain(context.Background(), harness, time.Nanosecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("Not the error we expected")
	}
}

func TestFmainSuccess(t *testing.T) {
	fmain(func(context.Context) error {
		return nil
	}, func(error, string, ...interface{}) {
		t.Fatal("should not be called")
	})
}

func TestFmainFailure(t *testing.T) {
	var called int32
	fmain(func(context.Context) error {
		return errors.New("Mocked error")
	}, func(error, string, ...interface{}) {
		atomic.AddInt32(&called, 1)
	})
	if called != 1 {
		t.Fatal("not called")
	}
}

func TestMainOnly(t *testing.T) {
	mfunc := defaultMain
	defer func() {
		defaultMain = mfunc
	}()
	defaultMain = func(context.Context) error { return nil }
	main()
}
