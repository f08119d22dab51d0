// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/holomush/modhost/internal/command"
	"github.com/holomush/modhost/internal/eventbus"
	"github.com/holomush/modhost/internal/extension"
	"github.com/holomush/modhost/internal/logging"
	"github.com/holomush/modhost/internal/observability"
)

// serviceName is stamped on every log record.
const serviceName = "modhost"

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load extensions and start the operator console",
		Long: `Load every extension in the modules directory, then read commands
from standard input until EOF, "quit" or a shutdown signal. Prefix a line
with "?" to list completions instead of running it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithDeps(cmd.Context(), cmd, nil)
		},
	}
}

// runWithDeps boots the host with injectable dependencies.
// If deps is nil, default implementations are used.
func runWithDeps(ctx context.Context, cmd *cobra.Command, deps *HostDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := deps.ConfigLoader(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.SetDefault(serviceName, version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel), cmd.ErrOrStderr())

	manager, err := newManager(cfg, logger, deps.RuntimeFactory())
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := manager.Close(); closeErr != nil {
			slog.Warn("error closing extension contexts", "error", closeErr)
		}
	}()

	if err := extension.RegisterBuiltins(manager); err != nil {
		return fmt.Errorf("failed to register built-in commands: %w", err)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start observability server if configured
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer := deps.ObservabilityServerFactory(cfg.MetricsAddr, manager.Ready,
			extension.RegisterMetrics,
			eventbus.RegisterMetrics,
			command.RegisterMetrics,
		)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				slog.Warn("error stopping observability server", "error", err)
			}
		}()
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		obsServer.SetExtensionStatus(func() []observability.ExtensionState {
			return extensionStates(manager.Records())
		})
		metrics = obsServer.Metrics()
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	started := time.Now()
	summary, err := manager.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load extensions: %w", err)
	}
	if metrics != nil {
		metrics.LoadDuration.Set(time.Since(started).Seconds())
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Loaded %d of %d extensions (%d failed, %d rejected)\n",
		summary.PostEnabled, summary.Discovered, summary.Failed, summary.Rejected)
	_, _ = fmt.Fprintln(out, `Type "help" for commands, "?<text>" to complete, "quit" to stop.`)

	con := &console{
		router:  manager.Router(),
		sender:  newConsoleSender(out, manager.Permissions()),
		metrics: metrics,
	}
	if err := con.run(ctx, deps.Input); err != nil {
		return fmt.Errorf("console input failed: %w", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// extensionStates converts registry records into the /extensions report.
func extensionStates(records []extension.Record) []observability.ExtensionState {
	states := make([]observability.ExtensionState, 0, len(records))
	for _, rec := range records {
		st := observability.ExtensionState{
			Name:    rec.Descriptor.Name,
			Version: rec.Descriptor.Version,
			Runtime: rec.Descriptor.Runtime,
			State:   rec.State.String(),
		}
		if rec.Err != nil {
			st.Error = rec.Err.Error()
		}
		states = append(states, st)
	}
	return states
}

// monitorServerErrors watches a server's error channel and cancels ctx on
// the first error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
