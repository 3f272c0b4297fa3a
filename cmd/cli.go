package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fzft/go-echo/deps/linenoise"
	"github.com/fzft/go-echo/log"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"go.uber.org/zap"
)

var (
	EchoVersion = "1.0.0"

	EchoCliDefaultHost    = "127.0.0.1"
	EchoCliDefaultPort    = 9999
	EchoCliDefaultTimeout = 5 * time.Second
	EchoCliHisFileEnv     = "ECHOCLI_HISTFILE"
	EchoCliHisFileDefault = ".echocli_history"
)

var errNotConnected = errors.New("not connected")

type CliConnInfo struct {
	hostIp   string
	hostPort int
}

func (ci *CliConnInfo) addr() string {
	return net.JoinHostPort(ci.hostIp, strconv.Itoa(ci.hostPort))
}

type EchoCliCfg struct {
	connInfo    *CliConnInfo
	interactive bool
	timeout     time.Duration
	prompt      string
}

type EchoCli struct {
	config *EchoCliCfg
	conn   net.Conn
	out    io.Writer
}

func NewEchoCli(host string, port int, out io.Writer) *EchoCli {
	return &EchoCli{
		config: &EchoCliCfg{
			connInfo: &CliConnInfo{hostIp: host, hostPort: port},
			timeout:  EchoCliDefaultTimeout,
		},
		out: out,
	}
}

// Version formats EchoVersion with the git build metadata when it is known.
func Version(gitSHA1, gitDirty string) string {
	version := EchoVersion
	// Add git commit and working tree status when available
	if sha1Int, err := strconv.ParseInt(gitSHA1, 16, 64); err == nil && sha1Int != 0 {
		version = fmt.Sprintf("%s (git:%s", version, gitSHA1)
		if dirtyInt, err := strconv.ParseInt(gitDirty, 10, 64); err == nil && dirtyInt != 0 {
			version = fmt.Sprintf("%s-dirty", version)
		}
		version = fmt.Sprintf("%s)", version)
	}
	return version
}

// CliMain runs the echo client with the arguments following "cli" and returns the exit code.
func CliMain(args []string) int {
	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	host := fs.String("h", EchoCliDefaultHost, "Server hostname")
	port := fs.Int("p", EchoCliDefaultPort, "Server port")
	timeout := fs.Duration("t", EchoCliDefaultTimeout, "Connect and I/O timeout")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cli := NewEchoCli(*host, *port, os.Stdout)
	cli.config.timeout = *timeout
	if err := cli.Run(os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// Run starts the REPL when stdin is a terminal and pipes in to the server otherwise.
func (cli *EchoCli) Run(in *os.File) error {
	if isatty.IsTerminal(in.Fd()) || isatty.IsCygwinTerminal(in.Fd()) {
		cli.config.interactive = true
		cli.refreshPrompt()
		cli.connect(false)
		return cli.repl()
	}

	if err := cli.connect(true); err != nil {
		return err
	}
	defer cli.close()
	return cli.pipe(in)
}

// connect dials the configured server, replacing any previous connection.
func (cli *EchoCli) connect(quiet bool) error {
	cli.close()

	conn, err := net.DialTimeout("tcp", cli.config.connInfo.addr(), cli.config.timeout)
	if err != nil {
		if !quiet {
			fmt.Fprintf(cli.out, "Could not connect to echo server at %s: %v\n", cli.config.connInfo.addr(), err)
		}
		return err
	}
	cli.conn = conn
	log.Logger.Debug("connected", zap.String("addr", conn.RemoteAddr().String()))
	return nil
}

func (cli *EchoCli) close() {
	if cli.conn != nil {
		cli.conn.Close()
		cli.conn = nil
	}
}

// echo sends payload and waits until the same number of bytes came back.
func (cli *EchoCli) echo(payload []byte) ([]byte, error) {
	if cli.conn == nil {
		return nil, errNotConnected
	}
	if err := cli.conn.SetDeadline(time.Now().Add(cli.config.timeout)); err != nil {
		return nil, err
	}
	if _, err := cli.conn.Write(payload); err != nil {
		return nil, err
	}
	reply := make([]byte, len(payload))
	if _, err := io.ReadFull(cli.conn, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// pipe streams in to the server, half-closes and copies everything echoed back to out.
func (cli *EchoCli) pipe(in io.Reader) error {
	if cli.conn == nil {
		return errNotConnected
	}

	writeErr := make(chan error, 1)
	go func() {
		_, err := io.Copy(cli.conn, in)
		if cw, ok := cli.conn.(interface{ CloseWrite() error }); ok {
			if cerr := cw.CloseWrite(); err == nil {
				err = cerr
			}
		}
		writeErr <- err
	}()

	if _, err := io.Copy(cli.out, cli.conn); err != nil {
		return err
	}
	return <-writeErr
}

func (cli *EchoCli) repl() error {
	var historyFile string

	line := linenoise.New()
	defer line.Close()

	historyFile = getDotfilePath(EchoCliHisFileEnv, EchoCliHisFileDefault)
	if historyFile != "" {
		if err := line.HistoryLoad(historyFile); err != nil && !os.IsNotExist(err) {
			log.Logger.Debug("history load failed", zap.String("file", historyFile), zap.Error(err))
		}
	}

	for {
		prompt := cli.config.prompt
		if cli.conn == nil {
			prompt = "not connected> "
		}
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}

		line.AppendHistory(input)
		if historyFile != "" {
			line.HistorySave(historyFile)
		}

		argv := strings.Fields(input)
		if len(argv) == 0 {
			continue
		}

		switch cmd := lookupCliCommand(argv[0]); {
		case cmd == nil:
			cli.sendLine(input)
		case cmd.name == "quit" || cmd.name == "exit":
			return nil
		case len(argv)-1 != cmd.numArgs:
			fmt.Fprintf(cli.out, "(error) wrong number of arguments for '%s', usage: %s\n", cmd.name, cmd.usage())
		case cmd.name == "help":
			cliOutputHelp(cli.out)
		case cmd.name == "clear":
			line.ClearScreen(cli.out)
		case cmd.name == "connect":
			port, err := strconv.Atoi(argv[2])
			if err != nil {
				fmt.Fprintf(cli.out, "Invalid port number\n")
				continue
			}
			cli.config.connInfo.hostIp = argv[1]
			cli.config.connInfo.hostPort = port
			cli.refreshPrompt()
			cli.connect(false)
		}
	}
}

// sendLine echoes one line typed at the prompt, reconnecting once if the server went away.
func (cli *EchoCli) sendLine(input string) {
	if cli.conn == nil && cli.connect(false) != nil {
		return
	}

	start := time.Now()
	reply, err := cli.echo([]byte(input + "\n"))
	if err != nil {
		fmt.Fprintf(cli.out, "(error) %v\n", err)
		cli.close()
		return
	}
	fmt.Fprintf(cli.out, "%s (%.2fms)\n", strings.TrimSuffix(string(reply), "\n"), float64(time.Since(start).Microseconds())/1000)
}

func (cli *EchoCli) refreshPrompt() {
	cli.config.prompt = cli.config.connInfo.addr() + "> "
}

func getDotfilePath(envOverride, dotFilename string) string {
	var dotPath string

	path := os.Getenv(envOverride)
	if path != "" {
		if path == "/dev/null" {
			return ""
		}
		dotPath = path
	} else {
		home := os.Getenv("HOME")
		if home != "" {
			dotPath = fmt.Sprintf("%s/%s", home, dotFilename)
		}
	}
	return dotPath
}
