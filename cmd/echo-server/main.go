// echo-server is the multi-protocol echo server.
//
// Usage:
//
//	echo-server [-tcp-port <port>]
//	            [-udp-port <port>]
//	            [-quic-port <port>]
//	            [-session-idle-timeout <duration>]
//	            [-status-listen-address <endpoint>]
//	            [-prometheusx.listen-address <endpoint>]
//
// The server echoes whatever it receives over TCP, over UDP, and over
// a QUIC-style framed datagram protocol, and keeps serving until it
// is interrupted with SIGINT or SIGTERM.
//
// By default the server listens on port 8080 for TCP, on port 8081
// for UDP, and on port 8082 for QUIC-style datagrams.
//
// The `-session-idle-timeout <duration>` flag controls how long an
// idle QUIC-style session is retained before the sweeper evicts it.
//
// The `-status-listen-address <endpoint>` flag sets the TCP endpoint
// where the server exposes its JSON status page.
//
// The `-prometheusx.listen-address <endpoint>` flag controls the TCP
// endpoint where the server will expose Prometheus metrics.
//
// The server will emit access logs for the status page on the standard
// output using the usual format. The server will emit error logging on
// the standard error using github.com/apex/log's JSON format.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/gorilla/handlers"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Algorysh/Networking-Tests/server"
	"github.com/Algorysh/Networking-Tests/spec"
)

var (
	flagTCPPort = flag.Int(
		"tcp-port", spec.DefaultTCPPort, "TCP echo port",
	)
	flagUDPPort = flag.Int(
		"udp-port", spec.DefaultUDPPort, "UDP echo port",
	)
	flagQUICPort = flag.Int(
		"quic-port", spec.DefaultQUICPort, "QUIC-style echo port",
	)
	flagSessionIdleTimeout = flag.Duration(
		"session-idle-timeout", spec.DefaultSessionIdleTimeout,
		"idle time after which a QUIC-style session is evicted",
	)
	flagStatusListenAddress = flag.String(
		"status-listen-address", spec.DefaultStatusAddr,
		"status page listening endpoint",
	)
)

func main() {
	log.Log = &log.Logger{
		Handler: json.New(os.Stderr),
		Level:   log.DebugLevel,
	}
	flag.Parse()
	promServer := prometheusx.MustServeMetrics()
	defer promServer.Close()
	srv := server.New(log.Log)
	srv.TCPPort = *flagTCPPort
	srv.UDPPort = *flagUDPPort
	srv.QUICPort = *flagQUICPort
	srv.SessionIdleTimeout = *flagSessionIdleTimeout
	srv.Metrics = server.NewMetrics(prometheus.DefaultRegisterer)
	rtx.Must(srv.Listen(), "Can't bind the echo sockets")
	defer srv.Close()
	mux := http.NewServeMux()
	srv.RegisterHandlers(mux)
	rootHandler := handlers.LoggingHandler(os.Stdout, mux)
	go func() {
		rtx.Must(http.ListenAndServe(
			*flagStatusListenAddress, rootHandler), "Can't start status server")
	}()
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rtx.Must(srv.Run(ctx), "The event loop failed")
	log.Info("Shutting down server...")
}
