package node

import (
	"net"
	"os"
	"sync/atomic"
)

const (
	DefaultAddr = "127.0.0.1:9999"
	// DefaultMaxEvents is the number of readiness events fetched per wait.
	DefaultMaxEvents = 1024
)

type Config struct {
	Addr      string // tcp address to bind, port 0 picks a free one
	MaxEvents int    // epoll batch size
}

func DefaultConfig() Config {
	return Config{
		Addr:      DefaultAddr,
		MaxEvents: DefaultMaxEvents,
	}
}

// Stats are connection counters that may be read from any goroutine.
type Stats struct {
	Accepted int64
	Closed   int64
	Active   int64
}

// Server is a single threaded echo server. Everything except Stop and Stats must be used
// from the goroutine that calls Run.
type Server struct {
	cfg       Config
	addr      net.Addr
	lnFile    *os.File // keeps the listener fd alive
	lnFd      int
	poll      *Poller
	handler   Handler
	conns     map[Token]*Conn
	nextToken Token

	accepted int64
	closed   int64
}

func NewServer(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	return &Server{
		cfg:       cfg,
		lnFd:      -1,
		handler:   EchoHandler{},
		conns:     make(map[Token]*Conn),
		nextToken: ListenerToken + 1,
	}
}

// SetHandler replaces the EchoHandler. It must be called before Run.
func (s *Server) SetHandler(handler Handler) {
	s.handler = handler
}

// Addr returns the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stop makes Run return. It may be called from any goroutine once Listen has returned.
func (s *Server) Stop() error {
	if s.poll == nil {
		return ErrServerNotListening
	}
	return s.poll.Wake()
}

func (s *Server) Stats() Stats {
	accepted := atomic.LoadInt64(&s.accepted)
	closed := atomic.LoadInt64(&s.closed)
	return Stats{
		Accepted: accepted,
		Closed:   closed,
		Active:   accepted - closed,
	}
}

func (s *Server) incrAccepted() {
	atomic.AddInt64(&s.accepted, 1)
}

func (s *Server) incrClosed() {
	atomic.AddInt64(&s.closed, 1)
}
