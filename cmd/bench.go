package cmd

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"github.com/fzft/go-echo/log"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// BenchMaxInFlight bounds pipeline * data size so a client never writes more than the
// socket buffers can hold while it is not reading.
const BenchMaxInFlight = 256 * 1024

var errEchoMismatch = errors.New("echo mismatch")

type BenchCfg struct {
	Host     string
	Port     int
	Clients  int           // parallel connections
	Requests int           // total payloads over all clients
	DataSize int           // bytes per payload
	Pipeline int           // payloads in flight per connection
	Timeout  time.Duration // per request deadline
}

func DefaultBenchCfg() BenchCfg {
	return BenchCfg{
		Host:     EchoCliDefaultHost,
		Port:     EchoCliDefaultPort,
		Clients:  50,
		Requests: 100000,
		DataSize: 64,
		Pipeline: 1,
		Timeout:  EchoCliDefaultTimeout,
	}
}

func (cfg BenchCfg) validate() error {
	switch {
	case cfg.Clients <= 0:
		return fmt.Errorf("clients must be positive, got %d", cfg.Clients)
	case cfg.Requests < cfg.Clients:
		return fmt.Errorf("requests (%d) must be at least the number of clients (%d)", cfg.Requests, cfg.Clients)
	case cfg.DataSize <= 0:
		return fmt.Errorf("data size must be positive, got %d", cfg.DataSize)
	case cfg.Pipeline <= 0:
		return fmt.Errorf("pipeline must be positive, got %d", cfg.Pipeline)
	case cfg.Pipeline*cfg.DataSize > BenchMaxInFlight:
		return fmt.Errorf("pipeline * data size exceeds %d bytes", BenchMaxInFlight)
	}
	return nil
}

type BenchResult struct {
	Requests   int64 // payloads echoed back intact
	Bytes      int64 // bytes echoed back intact
	Mismatches int64
	Errors     int64 // clients that stopped on an I/O error
	Elapsed    time.Duration
}

func (r BenchResult) RequestsPerSec() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Requests) / r.Elapsed.Seconds()
}

func (r BenchResult) Report(w io.Writer, cfg BenchCfg) {
	fmt.Fprintf(w, "====== ECHO ======\n")
	fmt.Fprintf(w, "  %d requests completed in %.2f seconds\n", r.Requests, r.Elapsed.Seconds())
	fmt.Fprintf(w, "  %d parallel clients\n", cfg.Clients)
	fmt.Fprintf(w, "  %d bytes payload\n", cfg.DataSize)
	fmt.Fprintf(w, "  %d requests in flight per client\n", cfg.Pipeline)
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "  %.2f requests per second\n", r.RequestsPerSec())
	fmt.Fprintf(w, "  %.2f MB/s echoed\n", float64(r.Bytes)/r.Elapsed.Seconds()/(1<<20))
	if r.Mismatches > 0 || r.Errors > 0 {
		fmt.Fprintf(w, "  %d mismatched payloads, %d failed clients\n", r.Mismatches, r.Errors)
	}
}

// Bench runs cfg.Clients connections on an ants pool, each sending its share of
// cfg.Requests and verifying every echoed payload.
func Bench(cfg BenchCfg) (BenchResult, error) {
	if err := cfg.validate(); err != nil {
		return BenchResult{}, err
	}

	pool, err := ants.NewPool(cfg.Clients, ants.WithPanicHandler(func(p interface{}) {
		log.Logger.Error("bench client panicked", zap.Any("panic", p))
	}))
	if err != nil {
		return BenchResult{}, err
	}
	defer pool.Release()

	var (
		result BenchResult
		wg     sync.WaitGroup
		addr   = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	)

	start := time.Now()
	for i := 0; i < cfg.Clients; i++ {
		id := i
		requests := cfg.Requests / cfg.Clients
		if id < cfg.Requests%cfg.Clients {
			requests++
		}

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			c := &benchClient{id: id, cfg: cfg, result: &result}
			if err := c.run(addr, requests); err != nil {
				atomic.AddInt64(&result.Errors, 1)
				log.Logger.Warn("bench client failed", zap.Int("client", id), zap.Error(err))
			}
		})
		if err != nil {
			wg.Done()
			atomic.AddInt64(&result.Errors, 1)
		}
	}
	wg.Wait()
	result.Elapsed = time.Since(start)

	return result, nil
}

type benchClient struct {
	id     int
	cfg    BenchCfg
	result *BenchResult
}

// run keeps up to cfg.Pipeline payloads in flight. The server answers in order, so the
// oldest entry of the queue is always the next expected echo.
func (c *benchClient) run(addr string, requests int) error {
	conn, err := net.DialTimeout("tcp", addr, c.cfg.Timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	inflight := queue.New()
	reply := make([]byte, c.cfg.DataSize)
	sent := 0

	for done := 0; done < requests; done++ {
		if err := conn.SetDeadline(time.Now().Add(c.cfg.Timeout)); err != nil {
			return err
		}

		for sent < requests && inflight.Length() < c.cfg.Pipeline {
			payload := benchPayload(c.id, sent, c.cfg.DataSize)
			if _, err := conn.Write(payload); err != nil {
				return err
			}
			inflight.Add(payload)
			sent++
		}

		expected := inflight.Remove().([]byte)
		if _, err := io.ReadFull(conn, reply); err != nil {
			return err
		}
		if !bytes.Equal(expected, reply) {
			atomic.AddInt64(&c.result.Mismatches, 1)
			return fmt.Errorf("request %d: %w", done, errEchoMismatch)
		}
		atomic.AddInt64(&c.result.Requests, 1)
		atomic.AddInt64(&c.result.Bytes, int64(len(reply)))
	}
	return nil
}

// benchPayload is unique per client and request so cross delivery shows up as a mismatch.
func benchPayload(client, seq, size int) []byte {
	header := fmt.Sprintf("c%d:r%d;", client, seq)
	payload := make([]byte, size)
	n := copy(payload, header)
	for i := n; i < size; i++ {
		payload[i] = byte('a' + (client+seq+i)%26)
	}
	return payload
}

// BenchMain runs the load generator with the arguments following "bench" and returns the
// exit code.
func BenchMain(args []string) int {
	cfg := DefaultBenchCfg()

	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "h", cfg.Host, "Server hostname")
	fs.IntVar(&cfg.Port, "p", cfg.Port, "Server port")
	fs.IntVar(&cfg.Clients, "c", cfg.Clients, "Number of parallel connections")
	fs.IntVar(&cfg.Requests, "n", cfg.Requests, "Total number of requests")
	fs.IntVar(&cfg.DataSize, "d", cfg.DataSize, "Data size of each payload in bytes")
	fs.IntVar(&cfg.Pipeline, "P", cfg.Pipeline, "Pipeline <numreq> requests per connection")
	fs.DurationVar(&cfg.Timeout, "t", cfg.Timeout, "Per request timeout")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	result, err := Bench(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	result.Report(os.Stdout, cfg)
	if result.Mismatches > 0 || result.Errors > 0 {
		return 1
	}
	return 0
}
