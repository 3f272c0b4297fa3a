package cmd

import (
	"fmt"
	"io"
	"strings"
)

// cliCommand is a command handled by the client itself instead of being echoed.
type cliCommand struct {
	name    string
	params  string
	summary string
	numArgs int
}

func (c *cliCommand) usage() string {
	if c.params == "" {
		return c.name
	}
	return c.name + " " + c.params
}

var cliCommands = []*cliCommand{
	{name: "connect", params: "<host> <port>", summary: "Connect to another echo server", numArgs: 2},
	{name: "clear", summary: "Clear the screen"},
	{name: "help", summary: "Show this help"},
	{name: "quit", summary: "Leave the client"},
	{name: "exit", summary: "Leave the client"},
}

func lookupCliCommand(name string) *cliCommand {
	for _, c := range cliCommands {
		if strings.EqualFold(c.name, name) {
			return c
		}
	}
	return nil
}

func cliOutputHelp(w io.Writer) {
	fmt.Fprintf(w, "echo-cli %s\nAny other line is sent to the server and printed when it comes back.\n\n", EchoVersion)
	for _, c := range cliCommands {
		fmt.Fprintf(w, "  %-24s %s\n", c.usage(), c.summary)
	}
}
