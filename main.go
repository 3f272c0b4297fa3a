package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fzft/go-echo/cmd"
	"github.com/fzft/go-echo/log"
	"github.com/fzft/go-echo/node"
	"go.uber.org/zap"
)

const EchoAddrEnv = "ECHO_ADDR"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "cli":
			os.Exit(cmd.CliMain(os.Args[2:]))
		case "bench":
			os.Exit(cmd.BenchMain(os.Args[2:]))
		case "version", "-v", "--version":
			fmt.Printf("go-echo %s\n", EchoVersion())
			return
		}
	}
	os.Exit(serverMain(os.Args[1:]))
}

func serverMain(args []string) int {
	cfg := node.DefaultConfig()
	if addr := os.Getenv(EchoAddrEnv); addr != "" {
		cfg.Addr = addr
	}

	fs := flag.NewFlagSet("go-echo", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "address to listen on (env "+EchoAddrEnv+")")
	fs.IntVar(&cfg.MaxEvents, "max-events", cfg.MaxEvents, "readiness events fetched per epoll wait")
	logLevel := fs.String("log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if err := log.InitLogger(*logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", *logLevel, err)
		return 2
	}
	defer log.Logger.Sync()

	s := node.NewServer(cfg)
	if err := s.Listen(); err != nil {
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-sigCh
		log.Logger.Info("signal received", zap.String("signal", sig.String()))
		if err := s.Stop(); err != nil {
			log.Logger.Error("stop error", zap.Error(err))
		}
	}()

	log.Logger.Info("go-echo starting", zap.String("version", EchoVersion()), zap.String("build", EchoBuildIdRaw()))
	if err := s.Run(); err != nil {
		log.Logger.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}
