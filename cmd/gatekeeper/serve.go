// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/observability"
	"github.com/holomush/gatekeeper/internal/platform"
	"github.com/holomush/gatekeeper/internal/proxy"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	console bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd(gopts *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gatekeeper runtime",
		Long: `Run the gatekeeper runtime with its metrics and health endpoints.

SIGHUP reloads the configuration and message files. SIGINT and SIGTERM
shut down gracefully. With --console, lines read from standard input run
as console commands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), gopts, opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.console, "console", false, "read console commands from standard input")
	return cmd
}

func runServe(ctx context.Context, gopts *globalOptions, opts *serveOptions, cmd *cobra.Command) error {
	cfg, err := gopts.load(cmd.Flags())
	if err != nil {
		return err
	}

	var rtOpts runtimeOptions
	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, version)
		rtOpts.registry = obsServer.Registry()
		rtOpts.metrics = obsServer.Metrics()
	}

	rt, err := buildRuntime(ctx, gopts, cmd.Flags(), cfg, rtOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			slog.Warn("error releasing resources", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if obsServer != nil {
		for name, check := range rt.checks() {
			obsServer.AddCheck(name, check)
		}
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	if opts.console {
		go runConsole(ctx, rt.gk, cmd.InOrStdin(), platform.NewWriterTarget(cmd.OutOrStdout()))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	cmd.Println("Gatekeeper started")
	slog.Info("gatekeeper ready", "limbo", cfg.Limbo, "pass_through", cfg.PassThrough)

	waitForShutdown(ctx, sigChan, rt.gk)

	slog.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
	slog.Info("shutdown complete")
	return nil
}

// waitForShutdown blocks until a termination signal arrives or ctx ends.
// SIGHUP reloads in place.
func waitForShutdown(ctx context.Context, sigChan <-chan os.Signal, gk *proxy.Gatekeeper) {
	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				reload(ctx, gk)
				continue
			}
			slog.Info("received shutdown signal", "signal", sig)
			return
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down")
			return
		}
	}
}

// reload re-reads configuration and messages. A failed reload keeps the
// previous state and is only logged.
func reload(ctx context.Context, gk *proxy.Gatekeeper) {
	if err := gk.ReloadConfiguration(ctx); err != nil {
		errutil.LogErrorContext(ctx, slog.Default(), slog.LevelError, "configuration reload failed", err)
	}
	if err := gk.ReloadMessages(ctx); err != nil {
		errutil.LogErrorContext(ctx, slog.Default(), slog.LevelError, "messages reload failed", err)
	}
}

// runConsole executes each non-blank line of r as a console command until
// r is exhausted or ctx ends.
func runConsole(ctx context.Context, gk *proxy.Gatekeeper, r io.Reader, target platform.Target) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := gk.Console(ctx, target, line); err != nil {
			slog.Debug("console command failed", "line", line, "code", errutil.Code(err))
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("console input closed", "error", oops.Wrap(err))
	}
}

// monitorServerErrors cancels ctx when the server reports an error. It
// returns when the channel closes or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
