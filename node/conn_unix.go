//go:build linux
// +build linux

package node

import (
	"os"

	"golang.org/x/sys/unix"
)

// fdSocket is a Socket over a raw non-blocking file descriptor.
type fdSocket struct {
	fd int
}

func newFdSocket(fd int) *fdSocket {
	return &fdSocket{fd: fd}
}

func (s *fdSocket) Read(p []byte) (int, error) {
	n, err := unix.Read(s.fd, p)
	if err != nil {
		// unix.Read reports -1 on failure
		return 0, err
	}
	return n, nil
}

func (s *fdSocket) Write(p []byte) (int, error) {
	n, err := unix.Write(s.fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *fdSocket) Close() error {
	return os.NewSyscallError("close", unix.Close(s.fd))
}

func (s *fdSocket) Fd() int {
	return s.fd
}
