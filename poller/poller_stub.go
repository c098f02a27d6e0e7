//go:build !linux

package poller

import "errors"

// Poller is a placeholder on platforms without epoll support.
type Poller struct{}

// ErrNotSupported is returned by New on platforms without epoll support.
var ErrNotSupported = errors.New("poller: this platform is not supported")

// New always fails on this platform.
func New() (*Poller, error) {
	return nil, ErrNotSupported
}

// Add always fails on this platform.
func (p *Poller) Add(fd int, ev EventSet) error { return ErrNotSupported }

// Modify always fails on this platform.
func (p *Poller) Modify(fd int, ev EventSet) error { return ErrNotSupported }

// Remove always fails on this platform.
func (p *Poller) Remove(fd int) error { return ErrNotSupported }

// Wait always fails on this platform.
func (p *Poller) Wait(events []Event, timeout int) (int, error) {
	return 0, ErrNotSupported
}

// Close always fails on this platform.
func (p *Poller) Close() error { return ErrNotSupported }
