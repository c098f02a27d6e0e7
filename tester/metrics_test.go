package tester

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Algorysh/Networking-Tests/model"
)

func TestTesterMetrics(t *testing.T) {
	t.Run("nil receiver is a no-op", func(t *testing.T) {
		var m *Metrics
		m.WorkerStarted()
		m.WorkerStopped()
		m.SetPeakClients(7)
		m.RequestSucceeded("tcp", 1.5)
		m.RequestFailed("udp")
		m.RunCompleted(model.RunResult{Protocol: "TCP", ClientCount: 10})
	})

	t.Run("collectors record", func(t *testing.T) {
		m := NewMetrics(prometheus.NewRegistry())
		m.WorkerStarted()
		m.WorkerStarted()
		m.WorkerStopped()
		if v := testutil.ToFloat64(m.activeClients); v != 1 {
			t.Fatal("Expected one active client")
		}
		m.SetPeakClients(2)
		if v := testutil.ToFloat64(m.peakClients); v != 2 {
			t.Fatal("Expected the peak gauge to be set")
		}
		m.RequestSucceeded("tcp", 12.5)
		m.RequestFailed("tcp")
		if v := testutil.ToFloat64(m.requestsTotal.WithLabelValues("tcp", "success")); v != 1 {
			t.Fatal("Expected one successful request")
		}
		if v := testutil.ToFloat64(m.requestsTotal.WithLabelValues("tcp", "failure")); v != 1 {
			t.Fatal("Expected one failed request")
		}
		if n := testutil.CollectAndCount(m.latency); n != 1 {
			t.Fatal("Expected one latency series")
		}
		m.RunCompleted(model.RunResult{
			Protocol:       "TCP",
			ClientCount:    10,
			ThroughputMBps: 3.5,
		})
		if v := testutil.ToFloat64(m.runsTotal); v != 1 {
			t.Fatal("Expected one completed run")
		}
		if v := testutil.ToFloat64(m.throughput.WithLabelValues("TCP", "10")); v != 3.5 {
			t.Fatal("Expected the throughput gauge to be set")
		}
	})
}
