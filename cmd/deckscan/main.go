// Command deckscan is the command line client: offline scans, evaluation
// against expected lists and corpus maintenance.
package main

import (
	"os"

	"github.com/turtacn/deckscan/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
