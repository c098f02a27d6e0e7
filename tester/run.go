package tester

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Algorysh/Networking-Tests/model"
	"github.com/Algorysh/Networking-Tests/spec"
)

// runState is the shared state of one cohort run. Workers bump the
// counters; the monitor tracks the peak; latencies collect under the
// mutex and are only read back after every worker has been joined.
type runState struct {
	connections atomic.Int64
	active      atomic.Int64
	peak        atomic.Int64
	totalBytes  atomic.Int64
	attempts    atomic.Int64
	stop        atomic.Bool

	mu        sync.Mutex
	latencies []float64
}

func (r *runState) addLatency(ms float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencies = append(r.latencies, ms)
}

// monitor samples the active-worker count until the stop flag is set,
// remembering the highest value seen. Sampling means a spike shorter
// than the interval can go unrecorded; the original did the same.
func (t *Tester) monitor(state *runState, done chan<- struct{}) {
	defer close(done)
	for !state.stop.Load() {
		current := state.active.Load()
		if current > state.peak.Load() {
			state.peak.Store(current)
			t.Metrics.SetPeakClients(current)
		}
		t.deps.Sleep(spec.MonitorInterval)
	}
}

// runOne drives a single (protocol, cohort size) run and aggregates it
// into a RunResult. The elapsed time used for throughput and connection
// rate spans from before the first launch to after the last join, so it
// includes the ramp.
func (t *Tester) runOne(ctx context.Context, protocol string, count int) model.RunResult {
	state := &runState{}
	t.Metrics.SetPeakClients(0)
	start := time.Now()

	monitorDone := make(chan struct{})
	go t.monitor(state, monitorDone)

	// Stagger the launches across the ramp window. The last worker is
	// followed by no delay; the measurement sleep below takes over.
	stagger := time.Millisecond
	if count > 0 {
		stagger = t.RampDuration / time.Duration(count)
		if stagger < time.Millisecond {
			stagger = time.Millisecond
		}
	}
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if protocol == "TCP" {
				t.tcpWorker(state, id)
			} else {
				t.udpWorker(state, id)
			}
		}(i)
		if i < count-1 {
			t.deps.Sleep(stagger)
		}
	}

	// Let the cohort run. Cancellation stops the run early but still
	// waits for every worker, so the result stays well formed.
	select {
	case <-ctx.Done():
	case <-time.After(t.TestDuration):
	}
	state.stop.Store(true)
	wg.Wait()
	<-monitorDone
	elapsed := time.Since(start)

	return t.buildResult(protocol, count, state, elapsed)
}

func (t *Tester) buildResult(protocol string, count int, state *runState, elapsed time.Duration) model.RunResult {
	latencies := state.latencies
	attempts := state.attempts.Load()
	successful := int64(len(latencies))
	successRate := 0.0
	if attempts > 0 {
		successRate = 100.0 * float64(successful) / float64(attempts)
	}
	seconds := elapsed.Seconds()
	megabytes := float64(state.totalBytes.Load()) / (1024.0 * 1024.0)
	result := model.RunResult{
		Protocol:           protocol,
		ClientCount:        count,
		Timestamp:          timestamp(time.Now()),
		ThroughputMBps:     megabytes / seconds,
		ConnectionsPerSec:  float64(state.connections.Load()) / seconds,
		PeakConcurrent:     state.peak.Load(),
		SuccessRate:        successRate,
		TotalRequests:      attempts,
		SuccessfulRequests: successful,
		Percentiles:        calculateAllPercentiles(latencies),
	}
	if id, err := t.deps.UUIDNewRandom(); err == nil {
		result.UUID = id.String()
	} else {
		t.Logger.Warnf("cannot generate run UUID: %s", err.Error())
	}
	return result
}

// timestamp renders local wall-clock time with millisecond precision,
// the same shape used in the results log since the first generation.
func timestamp(now time.Time) string {
	return now.Format("2006-01-02 15:04:05.000")
}
