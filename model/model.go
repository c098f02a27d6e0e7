// Package model contains the data model
package model

// RunResult is the record produced by one (protocol, client count) run of
// the scalability harness. One line of the results log and one entry of the
// JSON archive correspond to exactly one RunResult.
type RunResult struct {
	// UUID uniquely identifies this run inside the archive.
	UUID string `json:"uuid"`

	// Protocol is "TCP" or "UDP".
	Protocol string `json:"protocol"`

	// ClientCount is the size of the cohort driven during this run.
	ClientCount int `json:"client_count"`

	// Timestamp is the local wall-clock time at which the run's results
	// were computed, with millisecond precision.
	Timestamp string `json:"timestamp"`

	// ThroughputMBps is application payload moved per wall-clock second,
	// counting both directions, in mebibytes.
	ThroughputMBps float64 `json:"throughput_mbps"`

	// ConnectionsPerSec is connections established divided by the run's
	// wall-clock duration.
	ConnectionsPerSec float64 `json:"connections_per_sec"`

	// PeakConcurrent is the highest active-connection count observed by
	// the run monitor.
	PeakConcurrent int64 `json:"peak_concurrent"`

	// SuccessRate is SuccessfulRequests over TotalRequests as a
	// percentage, or zero when nothing was attempted.
	SuccessRate float64 `json:"success_rate"`

	// TotalRequests counts every request a worker attempted to send.
	TotalRequests int64 `json:"total_requests"`

	// SuccessfulRequests counts requests whose echo actually came back;
	// it equals the number of latency samples taken.
	SuccessfulRequests int64 `json:"successful_requests"`

	// Percentiles holds the latency distribution P1..P100 in milliseconds,
	// nearest-rank. All zeros when the run produced no samples.
	Percentiles [100]float64 `json:"percentiles"`
}

// ArchiveSchemaVersion is the version of the archive layout written at the
// end of a sweep. Bump it on any incompatible change to RunResult.
const ArchiveSchemaVersion = 1

// Archive is the JSON document saved to disk after a full sweep. It wraps
// every RunResult together with enough context to interpret them later.
type Archive struct {
	SchemaVersion int         `json:"schema_version"`
	Started       string      `json:"started"`
	Hostname      string      `json:"hostname"`
	Runs          []RunResult `json:"runs"`
}

// Logger defines the common interface that a logger should have. It is
// out of the box compatible with `log.Log` in `apex/log`.
//
// This interface is copied from github.com/m-lab/ndt7-client-go.
type Logger interface {
	// Debug emits a debug message.
	Debug(msg string)

	// Debugf formats and emits a debug message.
	Debugf(format string, v ...interface{})

	// Info emits an informational message.
	Info(msg string)

	// Infof format and emits an informational message.
	Infof(format string, v ...interface{})

	// Warn emits a warning message.
	Warn(msg string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...interface{})
}
