// Command catmig migrates the legacy product catalog into the redesigned
// store. Workers coordinate through Redis chunk leases, so any number of
// catmig run processes can share one migration.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "log/slog"

	"github.com/spf13/cobra"

	"github.com/dropsight/catmig"
)

const (
	exitFailure = 1
	// Conventional 128+signal exit codes, so orchestrators can tell a
	// graceful shutdown from a crash.
	exitInterrupt = 130
	exitTerminate = 143
)

// termSignal records which shutdown signal canceled the run context.
var termSignal os.Signal

var rootCmd = &cobra.Command{
	Use:     "catmig",
	Short:   "Legacy catalog migration worker",
	Version: catmig.Version,
	PersistentPreRun: func(*cobra.Command, []string) {
		catmig.ConfigureLogging()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		switch termSignal {
		case syscall.SIGINT:
			return exitInterrupt
		case syscall.SIGTERM:
			return exitTerminate
		}
	}
	return exitFailure
}

// signalContext returns a context canceled on SIGINT/SIGTERM, remembering
// which signal fired. A second signal kills the process immediately.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-ch
		termSignal = s
		log.Warn("shutdown signal received, finishing current chunk", "signal", s.String())
		cancel()
		s = <-ch
		fmt.Fprintln(os.Stderr, "second signal, aborting")
		if s == syscall.SIGTERM {
			os.Exit(exitTerminate)
		}
		os.Exit(exitInterrupt)
	}()
	return ctx, cancel
}
