// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/holomush/gatekeeper/internal/event"
	"github.com/holomush/gatekeeper/internal/platform"
	"github.com/holomush/gatekeeper/internal/routing"
	"github.com/holomush/gatekeeper/internal/session"
	"github.com/holomush/gatekeeper/internal/user"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

var tracer = otel.Tracer("gatekeeper/auth")

// Authorization results reported by the authorizations metric.
const (
	ResultRouted   = "routed"
	ResultNoServer = "no_server"
	ResultFailed   = "failed"
)

// Messages renders player-facing text.
type Messages interface {
	Get(key string, replacements ...string) string
}

// LobbyChooser picks the server an authorized player is sent to.
type LobbyChooser interface {
	ChooseLobby(ctx context.Context, u *user.User) (string, error)
}

// Engine performs the transition from unauthorized to authorized.
type Engine struct {
	tracker *session.Tracker
	bus     *event.Bus
	proxy   platform.Proxy
	lobby   LobbyChooser
	msgs    Messages
	logger  *slog.Logger

	authorizations *prometheus.CounterVec
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithEngineRegistry registers authorization metrics with reg.
func WithEngineRegistry(reg prometheus.Registerer) EngineOption {
	return func(e *Engine) {
		e.authorizations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_authorizations_total",
			Help: "Authorization attempts by result",
		}, []string{"result"})
		reg.MustRegister(e.authorizations)
	}
}

// NewEngine creates an Engine. All dependencies are required.
func NewEngine(tracker *session.Tracker, bus *event.Bus, proxy platform.Proxy, lobby LobbyChooser, msgs Messages, opts ...EngineOption) (*Engine, error) {
	switch {
	case tracker == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("tracker is required")
	case bus == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("event bus is required")
	case proxy == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("proxy is required")
	case lobby == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("lobby chooser is required")
	case msgs == nil:
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("messages are required")
	}
	e := &Engine{
		tracker: tracker,
		bus:     bus,
		proxy:   proxy,
		lobby:   lobby,
		msgs:    msgs,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// IsAuthorized reports whether id has authenticated on this connection.
func (e *Engine) IsAuthorized(id uuid.UUID) bool {
	return e.tracker.IsAuthorized(id)
}

// Authorize marks the connection authorized and sends the player to a lobby.
//
// Steps run in order: stop tracking, clear the title prompt, publish
// Authenticated, route. If no lobby is available the player is kicked and
// stays logically authorized; nil is returned. Any other failure restores
// tracking, unless the connection went away meanwhile, and is returned.
func (e *Engine) Authorize(ctx context.Context, id uuid.UUID, u *user.User, target platform.Target) error {
	ctx, span := tracer.Start(ctx, "auth.authorize")
	defer span.End()
	span.SetAttributes(attribute.String("auth.uuid", id.String()))

	err := e.authorize(ctx, id, u, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (e *Engine) authorize(ctx context.Context, id uuid.UUID, u *user.User, target platform.Target) error {
	if u == nil {
		return oops.Code("AUTH_INVALID_ARGUMENT").With("uuid", id.String()).Errorf("user is required")
	}
	hold, wasTracked := e.tracker.Suspend(id)
	abort := func(err error, step string) error {
		if wasTracked && !e.tracker.Resume(hold) {
			e.logger.DebugContext(ctx, "connection left during authorization", "uuid", id.String())
		}
		e.count(ResultFailed)
		return oops.Code("AUTH_AUTHORIZE_FAILED").
			With("uuid", id.String()).
			With("step", step).
			Wrap(err)
	}

	if target != nil {
		target.ClearTitle()
	}

	if err := e.bus.Publish(ctx, event.Authenticated{Meta: event.NewMeta(), User: u, Target: target}); err != nil {
		return abort(err, "publish")
	}

	server, err := e.lobby.ChooseLobby(ctx, u)
	if err != nil {
		if !errutil.HasCode(err, routing.CodeNoDestination) {
			return abort(err, "route")
		}
		errutil.LogErrorContext(ctx, e.logger, slog.LevelWarn, "no lobby available for authorized player", err)
		e.tracker.Release(hold)
		e.proxy.Kick(ctx, id, e.msgs.Get(routing.ReasonNoServer))
		e.count(ResultNoServer)
		return nil
	}

	if err := e.proxy.Connect(ctx, id, server); err != nil {
		return abort(err, "connect")
	}

	e.tracker.Release(hold)
	e.logger.InfoContext(ctx, "player authorized", "uuid", id.String(), "name", u.LastNickname, "server", server)
	e.count(ResultRouted)
	return nil
}

func (e *Engine) count(result string) {
	if e.authorizations != nil {
		e.authorizations.WithLabelValues(result).Inc()
	}
}
