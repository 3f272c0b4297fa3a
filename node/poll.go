package node

import (
	"math"
	"strings"
)

// Token correlates a readiness event with the socket it was registered for.
type Token uint64

const (
	// ListenerToken is reserved for the listening socket.
	ListenerToken Token = 0
	// WakeToken is reserved for the poller's wake-up eventfd.
	WakeToken Token = math.MaxUint64
)

// Interest is the set of readiness directions a socket is registered for.
type Interest uint8

const (
	Readable Interest = 1 << iota
	Writable
)

func (i Interest) IsReadable() bool { return i&Readable != 0 }

func (i Interest) IsWritable() bool { return i&Writable != 0 }

func (i Interest) String() string {
	var parts []string
	if i.IsReadable() {
		parts = append(parts, "READABLE")
	}
	if i.IsWritable() {
		parts = append(parts, "WRITABLE")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Event is one readiness notification returned by Poller.Wait.
// Readable and Writable are not mutually exclusive.
type Event struct {
	Token    Token
	Readable bool
	Writable bool
}
