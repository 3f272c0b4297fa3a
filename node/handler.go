package node

import "fmt"

const (
	// ChunkSize is how much the pending buffer grows whenever a read fills it.
	ChunkSize = 1024
	// ResizeThreshold is the largest pending buffer capacity kept after a full flush.
	ResizeThreshold = 1024 * 32
)

// Handler turns a readiness event into I/O on a connection. It reports closed when the
// connection has to be torn down; a returned error is fatal for that connection only.
type Handler interface {
	Handle(c *Conn, ev Event) (closed bool, err error)
}

// EchoHandler writes back every byte it reads.
type EchoHandler struct{}

func (h EchoHandler) Handle(c *Conn, ev Event) (bool, error) {
	if ev.Readable && !c.closing {
		eof, err := h.read(c)
		if err != nil {
			return false, err
		}
		if eof {
			if c.Len() == 0 {
				return true, nil
			}
			// the peer only shut down its write side, it still reads what it already sent
			c.closing = true
			c.interest = Writable
		}
	}

	// a draining connection only registers for writes, hang-ups still have to reach the write path
	if (ev.Writable || c.closing) && c.interest.IsWritable() {
		if err := h.write(c); err != nil {
			return false, err
		}
	}

	return c.closing && c.Len() == 0, nil
}

// read drains the socket into the pending buffer until it would block. It reports eof
// when the peer closed its write side.
func (h EchoHandler) read(c *Conn) (eof bool, err error) {
	for {
		if len(c.buf) == c.limit {
			c.grow()
		}

		n, err := c.sock.Read(c.buf[len(c.buf):c.limit])
		switch {
		case n > 0:
			c.buf = c.buf[:len(c.buf)+n]
		case err == nil:
			return true, nil
		case isWouldBlock(err):
			if c.Len() > 0 {
				c.interest = Writable
			}
			return false, nil
		case isInterrupted(err):
		default:
			return false, fmt.Errorf("read from connection %d: %w", c.token, err)
		}
	}
}

// write flushes the pending buffer. Interest goes back to Readable only once nothing is
// left; on would-block it stays Writable so the remainder goes out on the next event.
func (h EchoHandler) write(c *Conn) error {
	for c.Len() > 0 {
		n, err := c.sock.Write(c.Pending())
		switch {
		case n > 0:
			c.next(n)
		case err == nil:
			// nothing was accepted, treat the buffer as flushed
			c.reset()
		case isWouldBlock(err):
			return nil
		case isInterrupted(err):
		default:
			return fmt.Errorf("write to connection %d: %w", c.token, err)
		}
	}

	c.reset()
	c.interest = Readable
	return nil
}
