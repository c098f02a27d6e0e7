// Package tester implements the scalability test harness.
//
// The harness sweeps a sequence of cohort sizes against the echo server,
// once per protocol. Each run launches one goroutine per client plus a
// monitor that tracks the concurrency peak, lets the cohort run for a
// fixed duration, and then aggregates what the workers measured into a
// model.RunResult. Results are appended to a timestamped log as they
// arrive, and the whole sweep is archived as compressed JSON at the end.
package tester

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Algorysh/Networking-Tests/internal"
	"github.com/Algorysh/Networking-Tests/model"
	"github.com/Algorysh/Networking-Tests/spec"
)

// dependencies contains mockable dependencies to test the harness
type dependencies struct {
	// Dial allows to override calling [net.Dial].
	Dial func(network, address string) (net.Conn, error)

	// GzipNewWriterLevel allows to override calling [gzip.NewWriterLevel].
	GzipNewWriterLevel func(w io.Writer, level int) (*gzip.Writer, error)

	// JSONMarshal allows to override calling [json.Marshal].
	JSONMarshal func(v interface{}) ([]byte, error)

	// OSHostname allows to override calling [os.Hostname].
	OSHostname func() (string, error)

	// OSMkdirAll allows to override calling [os.MkdirAll].
	OSMkdirAll func(path string, perm os.FileMode) error

	// OSOpenFile allows to override calling [os.OpenFile].
	OSOpenFile func(name string, flag int, perm os.FileMode) (*os.File, error)

	// RunOne allows to override the method running a single cohort.
	RunOne func(ctx context.Context, protocol string, count int) model.RunResult

	// Savedata allows to override the method archiving the sweep.
	Savedata func(archive *model.Archive) error

	// Sleep allows to override calling [time.Sleep].
	Sleep func(d time.Duration)

	// UUIDNewRandom allows to override calling [uuid.NewRandom].
	UUIDNewRandom func() (uuid.UUID, error)
}

// Tester is the scalability harness. The zero value of this structure is
// invalid. Use New to correctly initialize the fields.
type Tester struct {
	// ServerHost is the host running the echo server. This field is
	// initialized by the New constructor to 127.0.0.1.
	ServerHost string

	// TCPPort is the server's TCP echo port. This field is initialized
	// by the New constructor.
	TCPPort int

	// UDPPort is the server's UDP echo port. This field is initialized
	// by the New constructor.
	UDPPort int

	// Protocols is the sweep order. This field is initialized by the
	// New constructor to TCP first, then UDP.
	Protocols []string

	// ClientCounts is the cohort size sequence swept per protocol. This
	// field is initialized by the New constructor.
	ClientCounts []int

	// TestDuration is how long each run measures once the cohort has
	// been launched.
	TestDuration time.Duration

	// RampDuration is the window across which each run staggers its
	// worker launches.
	RampDuration time.Duration

	// PauseBetweenRuns separates consecutive runs.
	PauseBetweenRuns time.Duration

	// StartJitter is the upper bound of the random delay each worker
	// sleeps before connecting.
	StartJitter time.Duration

	// LogDir is the directory receiving the results log. This field is
	// initialized by the New constructor to the working directory.
	LogDir string

	// DataDir is the directory where to archive the sweep as
	// compressed JSON. Leave empty to disable archiving.
	DataDir string

	// Logger is the logger to use. This field is initialized by the
	// New constructor.
	Logger model.Logger

	// Metrics optionally publishes harness counters to prometheus. A
	// nil Metrics is valid and records nothing.
	Metrics *Metrics

	// begin is when the sweep started.
	begin time.Time

	// deps contains the mockable dependencies.
	deps dependencies

	// logPath is the results log written by Run.
	logPath string

	// results accumulates one entry per completed run.
	results []model.RunResult
}

// New creates a new Tester instance. Pass internal.NoLogger{} to
// silence it.
func New(logger model.Logger) (tester *Tester) {
	if logger == nil {
		logger = internal.NoLogger{}
	}
	tester = &Tester{
		ServerHost:       "127.0.0.1",
		TCPPort:          spec.DefaultTCPPort,
		UDPPort:          spec.DefaultUDPPort,
		Protocols:        []string{"TCP", "UDP"},
		ClientCounts:     append([]int{}, spec.DefaultClientCounts...),
		TestDuration:     spec.DefaultTestDuration,
		RampDuration:     spec.DefaultRampDuration,
		PauseBetweenRuns: spec.DefaultPauseBetweenRuns,
		StartJitter:      spec.MaxStartJitter,
		LogDir:           ".",
		DataDir:          "",
		Logger:           logger,
		begin:            time.Now(),
		deps:             dependencies{}, // initialized below
		results:          []model.RunResult{},
	}
	tester.deps = dependencies{
		Dial:               net.Dial,
		GzipNewWriterLevel: gzip.NewWriterLevel,
		JSONMarshal:        json.Marshal,
		OSHostname:         os.Hostname,
		OSMkdirAll:         os.MkdirAll,
		OSOpenFile:         os.OpenFile,
		RunOne:             tester.runOne,
		Savedata:           tester.savedata,
		Sleep:              time.Sleep,
		UUIDNewRandom:      uuid.NewRandom,
	}
	return
}

// Run performs the full sweep: every cohort size in ClientCounts, once
// per protocol, with results logged as they arrive. A results log that
// cannot be opened costs the rows on disk, not the sweep. Run returns
// early if ctx expires between runs; the run in progress is always
// completed.
func (t *Tester) Run(ctx context.Context) error {
	// 1. open the results log and write its header
	var logfile io.Writer = io.Discard
	if filep, err := t.openResultsLog(); err != nil {
		t.Logger.Warnf("Can't open the results log: %s", err.Error())
	} else {
		defer filep.Close()
		t.Logger.Infof("Logging results to: %s", t.logPath)
		logfile = filep
	}
	t.writeLogHeader(logfile)

	if len(t.ClientCounts) > 0 {
		t.Logger.Infof("Starting scalability tests from %d to %d clients...",
			t.ClientCounts[0], t.ClientCounts[len(t.ClientCounts)-1])
	}

	// 2. sweep every protocol across every cohort size
	for _, protocol := range t.Protocols {
		t.Logger.Infof("=== %s Scalability Test ===", protocol)
		for _, count := range t.ClientCounts {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.Logger.Infof("Testing %s with %d clients...", protocol, count)
			result := t.deps.RunOne(ctx, protocol, count)
			t.results = append(t.results, result)
			t.logResult(logfile, result)
			t.Metrics.RunCompleted(result)
			t.pause(ctx)
		}
	}
	t.Logger.Infof("Scalability tests completed. Results logged to %s", t.logPath)

	// 3. archive the sweep
	if t.DataDir != "" {
		archive, err := t.buildArchive()
		if err != nil {
			return err
		}
		return t.deps.Savedata(archive)
	}
	return nil
}

// pause sleeps between runs so the server's sockets drain before the
// next cohort arrives. A canceled ctx cuts the pause short.
func (t *Tester) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(t.PauseBetweenRuns):
	}
}

// Results returns the runs completed so far. The slice is owned by the
// Tester; do not modify it while Run is in progress.
func (t *Tester) Results() []model.RunResult {
	return t.results
}

// LogPath returns the path of the results log, once Run created it.
func (t *Tester) LogPath() string {
	return t.logPath
}

func (t *Tester) tcpAddress() string {
	return net.JoinHostPort(t.ServerHost, strconv.Itoa(t.TCPPort))
}

func (t *Tester) udpAddress() string {
	return net.JoinHostPort(t.ServerHost, strconv.Itoa(t.UDPPort))
}
