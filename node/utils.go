package node

import (
	"errors"
	"syscall"
)

// isWouldBlock reports whether err means the non-blocking operation has to wait for the next
// readiness notification. EWOULDBLOCK is the same errno on linux.
func isWouldBlock(err error) bool {
	return errors.Is(err, syscall.EAGAIN)
}

func isInterrupted(err error) bool {
	return errors.Is(err, syscall.EINTR)
}
