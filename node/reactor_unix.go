//go:build linux
// +build linux

package node

import (
	"fmt"
	"net"

	"github.com/fzft/go-echo/log"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Listen binds the listening socket, creates the poller and registers the listener for
// read readiness.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		log.Logger.Error("listen error", zap.String("addr", s.cfg.Addr), zap.Error(err))
		return err
	}
	// the duplicated fd below keeps the socket open
	defer ln.Close()

	f, err := ln.(*net.TCPListener).File()
	if err != nil {
		log.Logger.Error("Failed to get listener fd", zap.Error(err))
		return err
	}

	lnFd := int(f.Fd())
	if err := unix.SetNonblock(lnFd, true); err != nil {
		f.Close()
		return fmt.Errorf("set nonblock error for listener fd %d: %w", lnFd, err)
	}

	poll, err := NewPoller(s.cfg.MaxEvents)
	if err != nil {
		f.Close()
		return err
	}

	if err := poll.Register(lnFd, ListenerToken, Readable); err != nil {
		log.Logger.Error("Failed to add listener to epoll", zap.Error(err))
		poll.Close()
		f.Close()
		return err
	}

	s.addr = ln.Addr()
	s.lnFile = f
	s.lnFd = lnFd
	s.poll = poll
	return nil
}

// Run serves connections on the calling goroutine until Stop is called or the listener or
// the poller fail. It returns nil after Stop.
func (s *Server) Run() error {
	if s.poll == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	defer s.closeGracefully()

	log.Logger.Info("listening on", zap.String("addr", s.addr.String()))
	err := s.loop()
	if err == ErrSignalStopped {
		log.Logger.Info("shutting down server")
		return nil
	}
	return err
}

func (s *Server) loop() error {
	events := make([]Event, 0, s.cfg.MaxEvents)

	for {
		var err error
		// the only blocking call of the loop
		events, err = s.poll.Wait(events, -1)
		if err != nil {
			log.Logger.Error("epoll wait error", zap.Error(err))
			return err
		}

		for _, ev := range events {
			switch ev.Token {
			case WakeToken:
				return ErrSignalStopped
			case ListenerToken:
				if err := s.accept(); err != nil {
					return err
				}
			default:
				s.dispatch(ev)
			}
		}
	}
}

// accept takes every pending connection off the listener.
func (s *Server) accept() error {
	for {
		connFd, sa, err := unix.Accept4(s.lnFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			switch {
			case isWouldBlock(err):
				return nil
			case isInterrupted(err), err == unix.ECONNABORTED:
				continue
			}
			log.Logger.Error("accept error", zap.Error(err))
			return fmt.Errorf("accept error: %w", err)
		}

		token := s.nextToken
		c := NewConn(token, newFdSocket(connFd), sockaddrString(sa))
		if err := s.poll.Register(connFd, token, c.Interest()); err != nil {
			unix.Close(connFd)
			log.Logger.Error("register read error", zap.Error(err))
			return fmt.Errorf("register read error for fd %d: %w", connFd, err)
		}
		s.nextToken++
		s.conns[token] = c
		s.incrAccepted()

		log.Logger.Info("accepted connection", zap.Uint64("token", uint64(token)), zap.String("peer", c.Peer()))
	}
}

// dispatch runs the handler for a client event and brings the poller registration in line
// with the connection's interest. Failures only affect that connection.
func (s *Server) dispatch(ev Event) {
	c, ok := s.conns[ev.Token]
	if !ok {
		// already removed earlier in this batch
		return
	}

	closed, err := s.handler.Handle(c, ev)
	if err != nil {
		log.Logger.Warn("connection error", zap.Uint64("token", uint64(c.Token())), zap.Error(err))
		s.closeConn(c)
		return
	}
	if closed {
		log.Logger.Info("connection closed", zap.Uint64("token", uint64(c.Token())), zap.String("peer", c.Peer()))
		s.closeConn(c)
		return
	}

	if err := s.poll.Reregister(c.Fd(), c.Token(), c.Interest()); err != nil {
		log.Logger.Warn("reregister error", zap.Uint64("token", uint64(c.Token())), zap.Error(err))
		s.closeConn(c)
	}
}

func (s *Server) closeConn(c *Conn) {
	if err := s.poll.Deregister(c.Fd()); err != nil {
		log.Logger.Debug("Failed to deregister connection", zap.Uint64("token", uint64(c.Token())), zap.Error(err))
	}
	if err := c.Close(); err != nil {
		log.Logger.Debug("Failed to close connection", zap.Uint64("token", uint64(c.Token())), zap.Error(err))
	}
	delete(s.conns, c.Token())
	s.incrClosed()
}

// closeGracefully order: connections, listener, poller
func (s *Server) closeGracefully() {
	for _, c := range s.conns {
		s.closeConn(c)
	}

	if err := s.poll.Deregister(s.lnFd); err != nil {
		log.Logger.Debug("Failed to delete listener from epoll", zap.Error(err))
	}
	if err := s.lnFile.Close(); err != nil {
		log.Logger.Debug("Failed to close listener", zap.Error(err))
	}

	if err := s.poll.Close(); err != nil {
		log.Logger.Info("Failed to close epoll", zap.Error(err))
	}
}
