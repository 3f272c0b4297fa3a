package node

import (
	"errors"
	"strings"
)

type MultiError []error

func (m MultiError) Error() string {
	var b strings.Builder
	b.WriteString("multiple errors:")
	for _, err := range m {
		b.WriteString("\n- " + err.Error())
	}
	return b.String()
}

var (
	ErrSignalStopped       = errors.New("signal stopped")
	ErrAlreadyRegistered   = errors.New("fd already registered")
	ErrNotRegistered       = errors.New("fd not registered")
	ErrServerNotListening  = errors.New("server is not listening")
	ErrPollerClosed        = errors.New("poller closed")
	ErrUnsupportedPlatform = errors.New("epoll is only available on linux")
)
