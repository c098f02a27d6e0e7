package tester

import (
	"bytes"
	"math/rand"
	"time"

	"github.com/Algorysh/Networking-Tests/spec"
)

// echoPayload is what every worker sends: a full buffer of 'A'.
var echoPayload = bytes.Repeat([]byte{'A'}, spec.BufferSize)

// startupJitter delays the worker by a random amount so a cohort does
// not arrive at the server in lockstep.
func (t *Tester) startupJitter(rng *rand.Rand) {
	if t.StartJitter <= 0 {
		return
	}
	ms := int(t.StartJitter / time.Millisecond)
	t.deps.Sleep(time.Duration(rng.Intn(ms+1)) * time.Millisecond)
}

func randomInterval(rng *rand.Rand, min, max time.Duration) time.Duration {
	span := int((max - min) / time.Millisecond)
	return min + time.Duration(rng.Intn(span+1))*time.Millisecond
}

// tcpWorker is one TCP client: connect once, then send a full buffer
// and wait for the echo, pausing a random think time between requests.
// Any send or receive failure ends the worker; its connection is gone.
func (t *Tester) tcpWorker(state *runState, id int) {
	// Each worker owns its generator; sharing one across goroutines
	// would race.
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	t.startupJitter(rng)

	conn, err := t.deps.Dial("tcp", t.tcpAddress())
	if err != nil {
		t.Logger.Debugf("tcp worker %d: %s", id, err.Error())
		return
	}
	defer conn.Close()
	state.connections.Add(1)
	state.active.Add(1)
	defer state.active.Add(-1)
	t.Metrics.WorkerStarted()
	defer t.Metrics.WorkerStopped()

	recv := make([]byte, spec.BufferSize)
	for !state.stop.Load() {
		start := time.Now()
		state.attempts.Add(1)
		if _, err := conn.Write(echoPayload); err != nil {
			t.Metrics.RequestFailed("tcp")
			break
		}
		n, err := conn.Read(recv)
		if err != nil || n <= 0 {
			t.Metrics.RequestFailed("tcp")
			break
		}
		latency := float64(time.Since(start).Microseconds()) / 1000.0
		state.addLatency(latency)
		state.totalBytes.Add(int64(len(echoPayload) + n))
		t.Metrics.RequestSucceeded("tcp", latency)
		t.deps.Sleep(randomInterval(rng, spec.TCPIntervalMin, spec.TCPIntervalMax))
	}
}

// udpWorker is one UDP client. Unlike TCP there is nothing to lose on
// failure: a lost datagram is just a request without a sample, and the
// worker keeps going until the run stops.
func (t *Tester) udpWorker(state *runState, id int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
	t.startupJitter(rng)

	conn, err := t.deps.Dial("udp", t.udpAddress())
	if err != nil {
		t.Logger.Debugf("udp worker %d: %s", id, err.Error())
		return
	}
	defer conn.Close()
	state.connections.Add(1)
	state.active.Add(1)
	defer state.active.Add(-1)
	t.Metrics.WorkerStarted()
	defer t.Metrics.WorkerStopped()

	recv := make([]byte, spec.BufferSize)
	for !state.stop.Load() {
		start := time.Now()
		state.attempts.Add(1)
		sent, err := conn.Write(echoPayload)
		if err != nil {
			t.Metrics.RequestFailed("udp")
		} else {
			conn.SetReadDeadline(time.Now().Add(spec.UDPReadTimeout))
			n, err := conn.Read(recv)
			if err == nil && n > 0 {
				latency := float64(time.Since(start).Microseconds()) / 1000.0
				state.addLatency(latency)
				state.totalBytes.Add(int64(sent + n))
				t.Metrics.RequestSucceeded("udp", latency)
			} else {
				t.Metrics.RequestFailed("udp")
			}
		}
		t.deps.Sleep(randomInterval(rng, spec.UDPIntervalMin, spec.UDPIntervalMax))
	}
}
