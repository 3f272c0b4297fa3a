package main

import "github.com/fzft/go-echo/cmd"

// set with -ldflags "-X main.gitSHA1=..."
var (
	gitSHA1   string = "unknown"
	gitDirty  string = "unknown"
	buildID   string = "unknown"
	buildDate string = "unknown"
)

func EchoGitSHA1() string {
	return gitSHA1
}

func EchoGitDirty() string {
	return gitDirty
}

func EchoBuildIdRaw() string {
	return buildID + buildDate + gitSHA1 + gitDirty
}

func EchoVersion() string {
	return cmd.Version(EchoGitSHA1(), EchoGitDirty())
}
