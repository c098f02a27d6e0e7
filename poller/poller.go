// Package poller wraps the platform readiness notification facility. On
// Linux it is implemented with epoll(7); on other platforms New fails and
// the caller is expected to bail out.
//
// A Poller watches a set of file descriptors. Wait blocks until at least
// one of them is ready and reports which ones, and for what. Interest is
// expressed per descriptor as an EventSet when the descriptor is added,
// and may be changed later with Modify.
package poller

// EventSet is a bitmask of readiness conditions. The same type expresses
// both the interest registered for a descriptor and the conditions
// reported back by Wait.
type EventSet uint32

const (
	// Readable indicates that reading will not block.
	Readable EventSet = 1 << iota

	// Writable indicates that writing will not block.
	Writable

	// PeerClosed indicates that the peer shut down its writing end.
	// It is only reported if it was part of the registered interest.
	PeerClosed

	// Closed indicates an error or hangup condition on the descriptor.
	// It is always reported and cannot be registered for.
	Closed

	// EdgeTriggered requests edge-triggered notification for the
	// descriptor. It is never reported back by Wait.
	EdgeTriggered
)

// Event is a single readiness notification returned by Wait.
type Event struct {
	// FD is the file descriptor that became ready.
	FD int

	// Ready describes what the descriptor is ready for.
	Ready EventSet
}
