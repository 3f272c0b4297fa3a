//go:build linux
// +build linux

package node

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/fzft/go-echo/log"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// https://copyconstruct.medium.com/the-method-to-epolls-madness-d9d2d6378642

const (
	readEvents  = unix.EPOLLPRI | unix.EPOLLIN | unix.EPOLLRDHUP
	writeEvents = unix.EPOLLOUT
)

type pipeSignal uint64

const (
	SignalStop pipeSignal = 1
)

type registration struct {
	token    Token
	interest Interest
}

// Poller is a level triggered wrapper around epoll. It keeps track of the fds that are
// registered so that double registration and updates of unknown fds are reported
// instead of being left to the kernel.
type Poller struct {
	epollFd  int
	efd      int // wake-up eventfd
	epollSet map[int]registration
	events   []unix.EpollEvent

	mu     sync.Mutex // guards efd against Close while Wake writes to it
	closed bool
}

func NewPoller(maxEvents int) (*Poller, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		log.Logger.Error("Failed to create epoll", zap.Error(err))
		return nil, os.NewSyscallError("epoll_create1", err)
	}

	efd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		log.Logger.Error("Failed to create eventfd", zap.Error(err))
		unix.Close(epfd)
		return nil, os.NewSyscallError("eventfd", err)
	}

	p := &Poller{
		epollFd:  epfd,
		efd:      efd,
		epollSet: make(map[int]registration),
		events:   make([]unix.EpollEvent, maxEvents),
	}

	// the eventfd is kept out of epollSet so Register can never clash with it
	if err := p.ctl(unix.EPOLL_CTL_ADD, efd, WakeToken, Readable); err != nil {
		log.Logger.Error("Failed to add eventfd to epoll", zap.Error(err))
		unix.Close(efd)
		unix.Close(epfd)
		return nil, err
	}

	return p, nil
}

// Register associates fd with token and interest.
func (p *Poller) Register(fd int, token Token, interest Interest) error {
	if _, ok := p.epollSet[fd]; ok {
		return fmt.Errorf("register fd %d: %w", fd, ErrAlreadyRegistered)
	}
	if err := p.ctl(unix.EPOLL_CTL_ADD, fd, token, interest); err != nil {
		return err
	}
	p.epollSet[fd] = registration{token: token, interest: interest}
	return nil
}

// Reregister replaces the token and interest of an already registered fd.
func (p *Poller) Reregister(fd int, token Token, interest Interest) error {
	reg, ok := p.epollSet[fd]
	if !ok {
		return fmt.Errorf("reregister fd %d: %w", fd, ErrNotRegistered)
	}
	if reg.token == token && reg.interest == interest {
		return nil
	}
	if err := p.ctl(unix.EPOLL_CTL_MOD, fd, token, interest); err != nil {
		return err
	}
	p.epollSet[fd] = registration{token: token, interest: interest}
	return nil
}

// Deregister removes fd from epoll. Unknown fds are ignored.
func (p *Poller) Deregister(fd int) error {
	if _, ok := p.epollSet[fd]; !ok {
		return nil
	}
	delete(p.epollSet, fd)
	return os.NewSyscallError("epoll_ctl del", unix.EpollCtl(p.epollFd, unix.EPOLL_CTL_DEL, fd, nil))
}

// Interest reports the current registration of fd.
func (p *Poller) Interest(fd int) (Interest, bool) {
	reg, ok := p.epollSet[fd]
	return reg.interest, ok
}

// Wait blocks until at least one registered fd is ready or msec elapses (msec < 0 blocks
// forever) and appends the ready events to events[:0].
func (p *Poller) Wait(events []Event, msec int) ([]Event, error) {
	events = events[:0]

	// level triggered: whatever is not drained is reported again on the next call
	n, err := unix.EpollWait(p.epollFd, p.events, msec)
	if err != nil {
		if err == unix.EINTR {
			return events, nil
		}
		return events, os.NewSyscallError("epoll_wait", err)
	}

	for i := 0; i < n; i++ {
		ev := &p.events[i]
		token := eventToken(ev)
		if token == WakeToken {
			p.drainWake()
			events = append(events, Event{Token: WakeToken, Readable: true})
			continue
		}
		events = append(events, Event{
			Token:    token,
			Readable: ev.Events&(readEvents|unix.EPOLLHUP|unix.EPOLLERR) != 0,
			Writable: ev.Events&(writeEvents|unix.EPOLLERR) != 0,
		})
	}
	return events, nil
}

// Wake interrupts a blocked Wait. It is the only method that may be called from another
// goroutine.
func (p *Poller) Wake() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPollerClosed
	}
	return p.sendSignal(SignalStop)
}

// sendSignal sends a signal to the event fd
func (p *Poller) sendSignal(sig pipeSignal) error {
	_, err := unix.Write(p.efd, (*(*[8]byte)(unsafe.Pointer(&sig)))[:])
	if err != nil {
		log.Logger.Error("Failed to write to event fd", zap.Error(err))
		return os.NewSyscallError("write eventfd", err)
	}
	return nil
}

func (p *Poller) drainWake() {
	var buf uint64
	if _, err := unix.Read(p.efd, (*(*[8]byte)(unsafe.Pointer(&buf)))[:]); err != nil && err != unix.EAGAIN {
		log.Logger.Error("Failed to read from event fd", zap.Error(err))
	}
}

// Close releases the eventfd and the epoll instance. Registered fds are not closed.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs MultiError
	if err := CloseFd(p.efd); err != nil {
		errs = append(errs, fmt.Errorf("close eventfd: %w", err))
	}
	if err := CloseFd(p.epollFd); err != nil {
		errs = append(errs, fmt.Errorf("close epoll: %w", err))
	}
	p.epollSet = make(map[int]registration)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (p *Poller) ctl(op int, fd int, token Token, interest Interest) error {
	ev := unix.EpollEvent{Events: epollEvents(interest)}
	setToken(&ev, token)

	name := "epoll_ctl add"
	if op == unix.EPOLL_CTL_MOD {
		name = "epoll_ctl mod"
	}
	return os.NewSyscallError(name, unix.EpollCtl(p.epollFd, op, fd, &ev))
}

func epollEvents(interest Interest) uint32 {
	var events uint32
	if interest.IsReadable() {
		events |= readEvents
	}
	if interest.IsWritable() {
		events |= writeEvents
	}
	return events
}

// The 64 bit epoll user data is exposed by x/sys as the Fd and Pad fields.
func setToken(ev *unix.EpollEvent, token Token) {
	ev.Fd = int32(uint32(token))
	ev.Pad = int32(uint32(token >> 32))
}

func eventToken(ev *unix.EpollEvent) Token {
	return Token(uint32(ev.Fd)) | Token(uint32(ev.Pad))<<32
}
