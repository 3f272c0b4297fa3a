//go:build linux
// +build linux

package node

import (
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsWouldBlock(t *testing.T) {
	assert.True(t, isWouldBlock(syscall.EAGAIN))
	assert.True(t, isWouldBlock(syscall.EWOULDBLOCK))
	assert.True(t, isWouldBlock(os.NewSyscallError("read", syscall.EAGAIN)))
	assert.True(t, isWouldBlock(fmt.Errorf("write to connection 3: %w", syscall.EWOULDBLOCK)))
	assert.False(t, isWouldBlock(syscall.EINTR))
	assert.False(t, isWouldBlock(syscall.ECONNRESET))
	assert.False(t, isWouldBlock(nil))
}

func TestIsInterrupted(t *testing.T) {
	assert.True(t, isInterrupted(syscall.EINTR))
	assert.True(t, isInterrupted(os.NewSyscallError("epoll_wait", syscall.EINTR)))
	assert.False(t, isInterrupted(syscall.EAGAIN))
}
