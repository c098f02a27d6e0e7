// Package spec contains constants
package spec

import "time"

const (
	// DefaultTCPPort is the TCP echo port. The first generation of this
	// tool listened on 35002; the ports moved to the 808x range when the
	// QUIC-lite listener was added so the three protocols sit side by side.
	DefaultTCPPort = 8080

	// DefaultUDPPort is the UDP echo port (35001 in the first generation).
	DefaultUDPPort = 8081

	// DefaultQUICPort is the QUIC-lite echo port.
	DefaultQUICPort = 8082

	// BufferSize is the I/O unit shared by both programs: the server reads
	// into buffers of this size, and the harness sends payloads of exactly
	// this size. Datagrams larger than this are truncated by the receive.
	BufferSize = 1024

	// QUICHeaderSize is the length of the connection-id prefix carried by
	// every QUIC-lite datagram.
	QUICHeaderSize = 4

	// QUICEchoPrefix is inserted between the connection id and the echoed
	// payload in every QUIC-lite response. No trailing NUL.
	QUICEchoPrefix = "QUIC Echo: "

	// MaxQUICEchoPayload is how much of the request payload fits in a
	// response once the id and prefix are accounted for.
	MaxQUICEchoPayload = BufferSize - QUICHeaderSize - len(QUICEchoPrefix)

	// SocketBufferSize is applied as SO_RCVBUF and SO_SNDBUF on the
	// datagram sockets. UDP under load drops packets long before TCP
	// degrades, and the kernel default buffers are the first thing to go.
	SocketBufferSize = 1 << 20

	// MaxPendingWrite bounds the unflushed echo bytes queued for a single
	// TCP session whose peer stopped reading. A session that exceeds this
	// is torn down rather than allowed to grow without bound.
	MaxPendingWrite = 1 << 20

	// MaxEvents is how many readiness events the server collects per
	// poll wakeup.
	MaxEvents = 1024
)

const (
	// StatusPath serves a JSON snapshot of the server counters.
	StatusPath = "/status"

	// DefaultStatusAddr is where the status endpoint listens. The echo
	// ports occupy 8080-8082, so the sidecar HTTP listener takes the
	// next one up.
	DefaultStatusAddr = ":8083"
)

const (
	// DefaultTestDuration is how long each (protocol, client count) run
	// measures after all workers have been launched.
	DefaultTestDuration = 15 * time.Second

	// DefaultRampDuration is the window across which a run's workers are
	// staggered. The per-worker launch delay is ramp/count, floored at 1ms,
	// so the whole cohort is launched within the window.
	DefaultRampDuration = 5 * time.Second

	// DefaultPauseBetweenRuns separates consecutive runs so the server's
	// sockets drain before the next cohort arrives.
	DefaultPauseBetweenRuns = 2 * time.Second

	// MonitorInterval is how often the run monitor samples the active
	// connection count to track the concurrency peak.
	MonitorInterval = 100 * time.Millisecond

	// UDPReadTimeout bounds a harness worker's wait for an echo that may
	// never arrive. Without it a single lost datagram would park the
	// worker until the end of the run.
	UDPReadTimeout = time.Second

	// MaxStartJitter is the upper bound of the random delay each worker
	// sleeps before connecting, so cohorts do not arrive in lockstep.
	MaxStartJitter = 500 * time.Millisecond
)

// Worker think-time bounds, per protocol. The intervals differ so the two
// sweeps exercise the server at different request rates.
const (
	TCPIntervalMin = 20 * time.Millisecond
	TCPIntervalMax = 150 * time.Millisecond
	UDPIntervalMin = 10 * time.Millisecond
	UDPIntervalMax = 100 * time.Millisecond
)

const (
	// DefaultSessionIdleTimeout is how long a QUIC-lite session may sit
	// without traffic before the sweep evicts it.
	DefaultSessionIdleTimeout = 60 * time.Second

	// SessionSweepInterval is the minimum spacing between eviction passes
	// over the session table. The sweep runs lazily from the event loop,
	// so the actual spacing depends on traffic.
	SessionSweepInterval = 14 * time.Second
)

// DefaultClientCounts is the cohort sizes swept by the harness, in order.
// The ceiling of 5000 keeps a full sweep inside common file-descriptor
// limits on an untuned host.
var DefaultClientCounts = []int{10, 20, 50, 100, 200, 500, 1000, 2000, 5000}
