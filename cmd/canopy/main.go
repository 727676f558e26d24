package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/canopy/cmd/canopy/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Set version information on root command
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Execute root command
	// Errors are printed directly by the printer package with color formatting
	if err := commands.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
