package main

import (
	"fmt"
	"os"

	"github.com/eleven-am/todoapi/internal/cli"
	"github.com/eleven-am/todoapi/pkg/todoapi"
)

// set by -ldflags at release time
var (
	commit    string
	buildDate string
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func Execute() error {
	todoapi.SetBuildInfo(commit, buildDate)

	cmd := cli.NewRootCommand()
	return cmd.Execute()
}
