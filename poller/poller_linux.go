//go:build linux

package poller

import (
	"golang.org/x/sys/unix"
)

// Poller is an epoll(7) based readiness notifier.
type Poller struct {
	epfd int
	raw  []unix.EpollEvent
}

// New creates a new Poller. The returned Poller owns an epoll instance
// that is released by Close.
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Poller{epfd: epfd}, nil
}

func toEpoll(ev EventSet) uint32 {
	var bits uint32
	if ev&Readable != 0 {
		bits |= unix.EPOLLIN
	}
	if ev&Writable != 0 {
		bits |= unix.EPOLLOUT
	}
	if ev&PeerClosed != 0 {
		bits |= unix.EPOLLRDHUP
	}
	if ev&EdgeTriggered != 0 {
		bits |= uint32(unix.EPOLLET)
	}
	return bits
}

func fromEpoll(bits uint32) EventSet {
	var ev EventSet
	if bits&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		ev |= Readable
	}
	if bits&unix.EPOLLOUT != 0 {
		ev |= Writable
	}
	if bits&unix.EPOLLRDHUP != 0 {
		ev |= PeerClosed
	}
	if bits&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		ev |= Closed
	}
	return ev
}

// Add registers fd with the given interest.
func (p *Poller) Add(fd int, ev EventSet) error {
	event := &unix.EpollEvent{
		Events: toEpoll(ev),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, event)
}

// Modify changes the interest registered for fd.
func (p *Poller) Modify(fd int, ev EventSet) error {
	event := &unix.EpollEvent{
		Events: toEpoll(ev),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, event)
}

// Remove deregisters fd. The descriptor itself is left open.
func (p *Poller) Remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Wait blocks until at least one registered descriptor is ready or the
// timeout expires, and fills events with what it learned. A negative
// timeout blocks forever. Wait retries transparently when interrupted
// by a signal, so callers never observe EINTR. Not safe for concurrent
// use; the kernel buffer is reused across calls.
func (p *Poller) Wait(events []Event, timeout int) (int, error) {
	if len(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	raw := p.raw[:len(events)]
	for {
		n, err := unix.EpollWait(p.epfd, raw, timeout)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		for i := 0; i < n; i++ {
			events[i] = Event{
				FD:    int(raw[i].Fd),
				Ready: fromEpoll(raw[i].Events),
			}
		}
		return n, nil
	}
}

// Close releases the epoll instance.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
