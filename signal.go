package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// forcedExitCode is the status used when a second signal interrupts a drain.
const forcedExitCode = 130

// shutdownContext returns a context that is canceled on the first SIGINT or
// SIGTERM. A second signal exits the process immediately, for when an upload
// or a consent wait hangs during the drain.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return watchSignals(parent, logger, sigCh, func() { signal.Stop(sigCh) }, os.Exit)
}

// watchSignals implements shutdownContext over an arbitrary signal source.
// stop is called once the watcher goroutine returns.
func watchSignals(
	parent context.Context,
	logger *slog.Logger,
	sigCh <-chan os.Signal,
	stop func(),
	exit func(int),
) context.Context {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		defer stop()

		var sig os.Signal

		select {
		case sig = <-sigCh:
		case <-ctx.Done():
			return
		}

		logger.Info("shutting down, press Ctrl-C again to force",
			slog.String("signal", sig.String()),
		)
		cancel()

		select {
		case sig = <-sigCh:
		case <-parent.Done():
			return
		}

		logger.Warn("second signal received, exiting without draining",
			slog.String("signal", sig.String()),
		)
		exit(forcedExitCode)
	}()

	return ctx
}
