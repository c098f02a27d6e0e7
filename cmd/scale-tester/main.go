// scale-tester is the command line scalability harness.
//
// Usage:
//
//	scale-tester [-server <host>] [-tcp-port <port>] [-udp-port <port>]
//	             [-protocol <protocol>] [-config <filepath>]
//	             [-log-dir <dirpath>] [-datadir <dirpath>]
//	             [-timeout <string>]
//
// The harness sweeps growing cohorts of echo clients against the
// server, measures throughput and latency, and appends one CSV row
// per run to a timestamped log file.
//
// The `-server <host>` flag specifies the host running the echo
// server. The default is 127.0.0.1.
//
// The `-protocol <protocol>` flag restricts the sweep to a single
// protocol. By default both TCP and UDP are swept, TCP first.
//
// The `-config <filepath>` flag names a YAML file tweaking the sweep:
// settings from the file override the command line.
//
// The `-log-dir <dirpath>` flag specifies the directory where to write
// the results log. By default is the current working directory.
//
// The `-datadir <dirpath>` flag enables archiving the whole sweep as
// compressed JSON under the given directory.
//
// The `-timeout <string>` flag specifies the time after which the
// whole sweep is interrupted. The `<string>` is a string suitable to
// be passed to time.ParseDuration, e.g., "45m". The default is a large
// enough value that should be suitable for common conditions.
//
// Additionally, passing any unrecognized flag, such as `-help`, will
// cause scale-tester to print a brief help message.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"time"

	"github.com/apex/log"
	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Algorysh/Networking-Tests/spec"
	"github.com/Algorysh/Networking-Tests/tester"
)

const defaultTimeout = 45 * time.Minute

var (
	flagServer = flag.String("server", "127.0.0.1", "echo server hostname")
	flagTCPPort = flag.Int(
		"tcp-port", spec.DefaultTCPPort, "the server's TCP echo port",
	)
	flagUDPPort = flag.Int(
		"udp-port", spec.DefaultUDPPort, "the server's UDP echo port",
	)
	flagConfig = flag.String("config", "", "optional YAML configuration file")
	flagLogDir = flag.String(
		"log-dir", ".", "directory where to write the results log",
	)
	flagDatadir = flag.String(
		"datadir", "", "optional directory where to archive the sweep",
	)
	flagTimeout = flag.Duration(
		"timeout", defaultTimeout, "time after which the sweep is aborted")
	flagProtocol = flagx.Enum{
		Options: []string{"all", "tcp", "udp"},
		Value:   "all",
	}
)

func init() {
	flag.Var(
		&flagProtocol,
		"protocol",
		`Protocol to sweep: "all" (the default), "tcp", or "udp"`,
	)
}

func realmain(ctx context.Context, harness *tester.Tester, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := harness.Run(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(harness.Results())
	rtx.PanicOnError(err, "json.Marshal should not fail")
	fmt.Printf("%s\n", string(data))
	return nil
}

func init() {
	log.SetLevel(log.DebugLevel) // needs to run exactly once
}

func internalmain(ctx context.Context) error {
	flag.Parse()
	var config *tester.Config
	if *flagConfig != "" {
		var err error
		config, err = tester.LoadConfig(*flagConfig)
		if err != nil {
			return err
		}
	}
	promServer := prometheusx.MustServeMetrics()
	defer promServer.Close()
	metrics := tester.NewMetrics(prometheus.DefaultRegisterer)
	tester := tester.New(log.Log)
	tester.Metrics = metrics
	tester.ServerHost = *flagServer
	tester.TCPPort = *flagTCPPort
	tester.UDPPort = *flagUDPPort
	tester.LogDir = *flagLogDir
	tester.DataDir = *flagDatadir
	switch flagProtocol.Value {
	case "tcp":
		tester.Protocols = []string{"TCP"}
	case "udp":
		tester.Protocols = []string{"UDP"}
	}
	if config != nil {
		if err := config.Apply(tester); err != nil {
			return err
		}
	}
	return realmain(ctx, tester, *flagTimeout)
}

func fmain(f func(context.Context) error, e func(error, string, ...interface{})) {
	if err := f(context.Background()); err != nil {
		e(err, "Scalability sweep failed")
	}
}

var defaultMain = internalmain // testability

func main() {
	fmain(defaultMain, rtx.Must)
}
