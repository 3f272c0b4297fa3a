package node

// Socket is the non-blocking byte stream owned by a Conn. Read and Write must return
// a would-block error instead of blocking.
type Socket interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	Fd() int
}

// Conn is the per-client state driven by a Handler.
type Conn struct {
	token    Token
	sock     Socket
	peer     string
	buf      []byte // bytes received and not yet echoed, buf[sent:] is still unwritten
	sent     int
	limit    int // reads go into buf[len(buf):limit]
	interest Interest
	closing  bool // peer shut down its write side, only the backlog is left to send
}

func NewConn(token Token, sock Socket, peer string) *Conn {
	return &Conn{
		token:    token,
		sock:     sock,
		peer:     peer,
		interest: Readable,
	}
}

func (c *Conn) Token() Token { return c.token }

func (c *Conn) Fd() int { return c.sock.Fd() }

// Peer returns the remote address the connection was accepted from.
func (c *Conn) Peer() string { return c.peer }

// Interest is the next operation the handler expects to perform.
func (c *Conn) Interest() Interest { return c.interest }

// Closing reports whether the peer half-closed and the connection is draining its backlog.
func (c *Conn) Closing() bool { return c.closing }

// Pending returns the bytes that still have to be written back.
func (c *Conn) Pending() []byte { return c.buf[c.sent:] }

// Len returns the number of bytes still to be written back.
func (c *Conn) Len() int { return len(c.buf) - c.sent }

// Cap returns the capacity of the pending buffer.
func (c *Conn) Cap() int { return cap(c.buf) }

func (c *Conn) Close() error {
	c.reset()
	return c.sock.Close()
}

var zeroChunk [ChunkSize]byte

// grow extends the read window by one chunk. append keeps reallocation amortized.
func (c *Conn) grow() {
	n := len(c.buf)
	c.buf = append(c.buf[:c.limit], zeroChunk[:]...)[:n]
	c.limit += ChunkSize
}

// next marks n pending bytes as written.
func (c *Conn) next(n int) {
	c.sent += n
	if c.sent >= len(c.buf) {
		c.reset()
	}
}

// reset empties the pending buffer, dropping oversized backing arrays.
func (c *Conn) reset() {
	c.sent = 0
	c.limit = 0
	if cap(c.buf) > ResizeThreshold {
		c.buf = nil
		return
	}
	c.buf = c.buf[:0]
}
