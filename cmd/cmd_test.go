//go:build linux
// +build linux

package cmd

import (
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/fzft/go-echo/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEchoServer(t *testing.T) (string, int) {
	t.Helper()
	s := node.NewServer(node.Config{Addr: "127.0.0.1:0"})
	require.NoError(t, s.Listen())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run()
	}()
	t.Cleanup(func() {
		require.NoError(t, s.Stop())
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})

	addr := s.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestCliEcho(t *testing.T) {
	host, port := startEchoServer(t)
	var out bytes.Buffer
	cli := NewEchoCli(host, port, &out)

	require.NoError(t, cli.connect(true))
	defer cli.close()

	reply, err := cli.echo([]byte("hello echo\n"))
	require.NoError(t, err)
	assert.Equal(t, "hello echo\n", string(reply))

	cli.sendLine("second line")
	assert.True(t, strings.HasPrefix(out.String(), "second line ("), out.String())
}

func TestCliPipe(t *testing.T) {
	host, port := startEchoServer(t)
	var out bytes.Buffer
	cli := NewEchoCli(host, port, &out)

	require.NoError(t, cli.connect(true))
	defer cli.close()

	input := strings.Repeat("piped through the echo server\n", 500)
	require.NoError(t, cli.pipe(strings.NewReader(input)))
	assert.Equal(t, input, out.String())
}

// stallingWriter blocks on its first write, like a terminal or pipe that is slow to drain.
type stallingWriter struct {
	buf     bytes.Buffer
	stall   time.Duration
	stalled bool
}

func (w *stallingWriter) Write(p []byte) (int, error) {
	if !w.stalled {
		w.stalled = true
		time.Sleep(w.stall)
	}
	return w.buf.Write(p)
}

func TestCliPipeSlowOutput(t *testing.T) {
	host, port := startEchoServer(t)
	out := &stallingWriter{stall: 300 * time.Millisecond}
	cli := NewEchoCli(host, port, out)

	require.NoError(t, cli.connect(true))
	defer cli.close()

	input := bytes.Repeat([]byte("0123456789abcdef"), 1<<20)
	require.NoError(t, cli.pipe(bytes.NewReader(input)))
	assert.Equal(t, len(input), out.buf.Len())
	assert.True(t, bytes.Equal(input, out.buf.Bytes()))
}

func TestCliNotConnected(t *testing.T) {
	cli := NewEchoCli("127.0.0.1", 1, &bytes.Buffer{})

	_, err := cli.echo([]byte("x"))
	assert.Equal(t, errNotConnected, err)
	assert.Equal(t, errNotConnected, cli.pipe(strings.NewReader("x")))
}

func TestBench(t *testing.T) {
	host, port := startEchoServer(t)

	cfg := DefaultBenchCfg()
	cfg.Host = host
	cfg.Port = port
	cfg.Clients = 20
	cfg.Requests = 2005
	cfg.DataSize = 3000
	cfg.Pipeline = 4

	result, err := Bench(cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(2005), result.Requests)
	assert.Equal(t, int64(2005*3000), result.Bytes)
	assert.Zero(t, result.Mismatches)
	assert.Zero(t, result.Errors)

	var report bytes.Buffer
	result.Report(&report, cfg)
	assert.Contains(t, report.String(), "2005 requests completed")
}

func TestBenchUnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := DefaultBenchCfg()
	cfg.Port = port
	cfg.Clients = 3
	cfg.Requests = 3

	result, err := Bench(cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Errors)
	assert.Zero(t, result.Requests)
}
