//go:build !linux
// +build !linux

package node

// Poller is only implemented on top of epoll.
type Poller struct{}

func NewPoller(maxEvents int) (*Poller, error) {
	return nil, ErrUnsupportedPlatform
}

func (p *Poller) Register(fd int, token Token, interest Interest) error {
	return ErrUnsupportedPlatform
}

func (p *Poller) Reregister(fd int, token Token, interest Interest) error {
	return ErrUnsupportedPlatform
}

func (p *Poller) Deregister(fd int) error {
	return ErrUnsupportedPlatform
}

func (p *Poller) Wait(events []Event, msec int) ([]Event, error) {
	return events[:0], ErrUnsupportedPlatform
}

func (p *Poller) Wake() error {
	return ErrUnsupportedPlatform
}

func (p *Poller) Close() error {
	return nil
}
