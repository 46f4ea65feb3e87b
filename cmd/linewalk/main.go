// Package main provides the linewalk CLI entrypoint.
//
// Usage:
//
//	linewalk <command> [subcommand] [options]
//
// Exit codes:
//   - 0: success (traversal completed, scenarios passed, replay deterministic)
//   - 1: failure (configuration rejected, scenario failed, replay diverged)
//   - 2: command error (bad flags, missing files, unreadable database)
package main

import (
	"fmt"
	"os"

	"github.com/roach88/linewalk/internal/cli"
	"github.com/roach88/linewalk/internal/ir"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	root := cli.NewRootCommand()
	root.Version = fmt.Sprintf("%s (commit: %s)", ir.EngineVersion, commit)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
