// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/gatekeeper/internal/access"
	"github.com/holomush/gatekeeper/internal/logging"
	"github.com/holomush/gatekeeper/internal/ratelimit"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

var tracer = otel.Tracer("gatekeeper/command")

// Permission decides whether a sender may run staff commands.
type Permission func(ctx context.Context, sender access.Sender) bool

// ConsoleOnly grants staff commands to the console alone.
func ConsoleOnly(_ context.Context, sender access.Sender) bool {
	return sender.Console
}

// Dispatcher parses command lines and runs registered handlers.
type Dispatcher struct {
	registry   *Registry
	limiter    *ratelimit.Limiter
	permission Permission
	logger     *slog.Logger
	metrics    *metrics
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLimiter throttles players per sender. The console is never throttled.
func WithLimiter(l *ratelimit.Limiter) DispatcherOption {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithPermission replaces ConsoleOnly as the staff check.
func WithPermission(p Permission) DispatcherOption {
	return func(d *Dispatcher) { d.permission = p }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithRegistry registers execution metrics with reg.
func WithRegistry(reg prometheus.Registerer) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = newMetrics(reg) }
}

// NewDispatcher creates a Dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, oops.Code("COMMAND_INVALID_DEPENDENCY").Errorf("registry is required")
	}
	d := &Dispatcher{
		registry:   registry,
		permission: ConsoleOnly,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Registry returns the command registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs input on behalf of exec.Sender. A failure is explained to
// the sender through exec.Reply and returned.
func (d *Dispatcher) Dispatch(ctx context.Context, input string, exec *Execution) (err error) {
	start := time.Now()
	if exec.Name != "" {
		ctx = logging.WithPlayer(ctx, exec.Name)
	}

	parsed, err := Parse(input)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "command.execute",
		trace.WithAttributes(
			attribute.String("command.name", parsed.Name),
			attribute.Bool("command.console", exec.Sender.Console),
		),
	)
	status, metricName := StatusSuccess, "unknown"
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			key, repl := Describe(err)
			exec.Reply(key, repl...)
		}
		span.End()
		d.metrics.record(metricName, status, time.Since(start))
	}()

	// Throttling comes first so unknown names cost a token too.
	if d.limiter != nil && !exec.Sender.Console {
		if ok, retryAfter := d.limiter.Allow(exec.Caller()); !ok {
			span.SetAttributes(attribute.Bool("command.throttled", true))
			status = StatusThrottled
			return ErrThrottled(retryAfter)
		}
	}

	entry, ok := d.registry.Get(parsed.Name)
	if !ok {
		status = StatusNotFound
		return ErrUnknownCommand(parsed.Name)
	}
	// Aliases aggregate under the canonical name.
	metricName = entry.Name
	if entry.PlayerOnly && exec.Sender.Console {
		status = StatusPermissionDenied
		return ErrConsoleUnsupported(entry.Name)
	}
	if entry.Staff && !d.permission(ctx, exec.Sender) {
		status = StatusPermissionDenied
		return ErrPermissionDenied(entry.Name)
	}

	exec.Args = parsed.Args
	exec.InvokedAs = parsed.Name
	if err = entry.Handler(ctx, exec); err != nil {
		status = StatusError
		errutil.LogErrorContext(ctx, d.logger, slog.LevelDebug, "command failed", err)
	}
	return err
}
