package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cjrutherford/qd-messages/cmd"
)

// Set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Version, cmd.Commit, cmd.Date = version, commit, date

	if err := cmd.Run(); err != nil {
		// The log file may not exist yet, and the TUI has released the
		// terminal by now.
		slog.Error("exiting", "error", err)
		fmt.Fprintf(os.Stderr, "qdmessages: %v\n", err)
		os.Exit(1)
	}
}
