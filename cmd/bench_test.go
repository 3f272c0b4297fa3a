package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBenchCfgValidate(t *testing.T) {
	valid := DefaultBenchCfg()
	assert.NoError(t, valid.validate())

	cases := map[string]func(*BenchCfg){
		"no clients":        func(c *BenchCfg) { c.Clients = 0 },
		"too few requests":  func(c *BenchCfg) { c.Requests = c.Clients - 1 },
		"empty payload":     func(c *BenchCfg) { c.DataSize = 0 },
		"no pipeline":       func(c *BenchCfg) { c.Pipeline = 0 },
		"too much inflight": func(c *BenchCfg) { c.Pipeline = 64; c.DataSize = BenchMaxInFlight },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultBenchCfg()
			mutate(&cfg)
			assert.Error(t, cfg.validate())

			_, err := Bench(cfg)
			assert.Error(t, err)
		})
	}
}

func TestBenchPayloadIsUnique(t *testing.T) {
	a := benchPayload(1, 2, 32)
	b := benchPayload(2, 1, 32)
	c := benchPayload(1, 2, 32)

	assert.Len(t, a, 32)
	assert.False(t, bytes.Equal(a, b))
	assert.Equal(t, a, c)
	assert.Equal(t, []byte("c1:r2;"), a[:6])

	// the header is cut when the payload is smaller
	assert.Equal(t, []byte("c1:"), benchPayload(1, 2, 3))
}

func TestVersion(t *testing.T) {
	assert.Equal(t, EchoVersion, Version("unknown", "unknown"))
	assert.Equal(t, EchoVersion+" (git:abc123)", Version("abc123", "0"))
	assert.Equal(t, EchoVersion+" (git:abc123-dirty)", Version("abc123", "1"))
}

func TestGetDotfilePath(t *testing.T) {
	t.Setenv(EchoCliHisFileEnv, "")
	t.Setenv("HOME", "/home/echo")
	assert.Equal(t, "/home/echo/"+EchoCliHisFileDefault, getDotfilePath(EchoCliHisFileEnv, EchoCliHisFileDefault))

	t.Setenv(EchoCliHisFileEnv, "/tmp/history")
	assert.Equal(t, "/tmp/history", getDotfilePath(EchoCliHisFileEnv, EchoCliHisFileDefault))

	t.Setenv(EchoCliHisFileEnv, os.DevNull)
	assert.Equal(t, "", getDotfilePath(EchoCliHisFileEnv, EchoCliHisFileDefault))
}

func TestLookupCliCommand(t *testing.T) {
	assert.Nil(t, lookupCliCommand("hello"))
	assert.Equal(t, "connect", lookupCliCommand("CONNECT").name)
	assert.Equal(t, "connect <host> <port>", lookupCliCommand("connect").usage())

	var help bytes.Buffer
	cliOutputHelp(&help)
	assert.Contains(t, help.String(), "connect <host> <port>")
}
