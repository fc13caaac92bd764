// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package proxy is the connection lifecycle a platform adapter drives:
// pre-login negotiation, profile substitution, session tracking, initial
// routing, chat and command gating, and runtime reloads.
package proxy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/access"
	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/command"
	"github.com/holomush/gatekeeper/internal/command/handlers"
	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/crypto"
	"github.com/holomush/gatekeeper/internal/event"
	"github.com/holomush/gatekeeper/internal/logging"
	"github.com/holomush/gatekeeper/internal/messages"
	"github.com/holomush/gatekeeper/internal/observability"
	"github.com/holomush/gatekeeper/internal/platform"
	"github.com/holomush/gatekeeper/internal/ratelimit"
	"github.com/holomush/gatekeeper/internal/routing"
	"github.com/holomush/gatekeeper/internal/session"
	"github.com/holomush/gatekeeper/internal/user"
)

// PreLoginCaller keys the identity resolver throttle for pre-login lookups.
// All connection attempts share one budget, as the remote service limits
// the proxy as a whole.
const PreLoginCaller = "pre-login"

// Reload targets reported by the reloads metric.
const (
	ReloadConfiguration = "configuration"
	ReloadMessages      = "messages"
)

// Deps are the collaborators a Gatekeeper is built from.
type Deps struct {
	Config    *config.Holder
	Messages  *messages.Catalog
	Proxy     platform.Proxy
	Scheduler platform.Scheduler
	Users     user.Store
	Crypto    *crypto.Registry
	Resolver  auth.Resolver

	// Optional.
	Bus        *event.Bus
	Registry   prometheus.Registerer
	Metrics    *observability.Metrics
	Logger     *logging.Logger
	Permission command.Permission
}

func (d Deps) validate() error {
	switch {
	case d.Config == nil:
		return oops.Code("PROXY_INVALID_DEPENDENCY").Errorf("configuration is required")
	case d.Messages == nil:
		return oops.Code("PROXY_INVALID_DEPENDENCY").Errorf("messages are required")
	case d.Proxy == nil:
		return oops.Code("PROXY_INVALID_DEPENDENCY").Errorf("proxy is required")
	case d.Scheduler == nil:
		return oops.Code("PROXY_INVALID_DEPENDENCY").Errorf("scheduler is required")
	case d.Users == nil:
		return oops.Code("PROXY_INVALID_DEPENDENCY").Errorf("user store is required")
	case d.Crypto == nil:
		return oops.Code("PROXY_INVALID_DEPENDENCY").Errorf("crypto registry is required")
	case d.Resolver == nil:
		return oops.Code("PROXY_INVALID_DEPENDENCY").Errorf("resolver is required")
	}
	return nil
}

// Validator checks a configuration against the servers proxy knows and the
// hash providers in reg.
func Validator(p platform.Proxy, reg *crypto.Registry) config.Validator {
	return func(cfg *config.Config) error {
		return cfg.Validate(p.Servers(), reg.Tags())
	}
}

// Gatekeeper wires the authentication components together behind the
// hooks a proxy platform calls.
type Gatekeeper struct {
	deps     Deps
	logger   *slog.Logger
	tracker  *session.Tracker
	prompter *auth.Prompter
	engine   *auth.Engine
	router   *routing.Router
	gate     *access.Gate
	player   *auth.Service
	staff    *auth.StaffService
	limiter  *ratelimit.Limiter
	commands *command.Dispatcher
	services *command.Services
}

// New builds a Gatekeeper and applies the active configuration.
func New(deps Deps) (*Gatekeeper, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Bus == nil {
		deps.Bus = event.NewBus()
	}
	if deps.Permission == nil {
		deps.Permission = command.ConsoleOnly
	}
	logger := slog.Default()
	if deps.Logger != nil {
		logger = deps.Logger.Logger
	}
	cfg := deps.Config.Get()

	g := &Gatekeeper{deps: deps, logger: logger}
	g.prompter = auth.NewPrompter(deps.Users, deps.Messages, cfg.UseTitles, logger)

	trackerOpts := []session.Option{session.WithPromptDelay(cfg.PromptDelay), session.WithLogger(logger)}
	routerOpts := []routing.Option{routing.WithLogger(logger)}
	engineOpts := []auth.EngineOption{auth.WithEngineLogger(logger)}
	var gateOpts []access.GateOption
	dispatcherOpts := []command.DispatcherOption{command.WithLogger(logger), command.WithPermission(deps.Permission)}
	if deps.Registry != nil {
		trackerOpts = append(trackerOpts, session.WithRegistry(deps.Registry))
		routerOpts = append(routerOpts, routing.WithRegistry(deps.Registry))
		engineOpts = append(engineOpts, auth.WithEngineRegistry(deps.Registry))
		gateOpts = append(gateOpts, access.WithRegistry(deps.Registry))
		dispatcherOpts = append(dispatcherOpts, command.WithRegistry(deps.Registry))
	}

	var err error
	if g.tracker, err = session.NewTracker(deps.Scheduler, g.prompter, trackerOpts...); err != nil {
		return nil, err
	}
	if g.router, err = routing.NewRouter(deps.Proxy, routerOpts...); err != nil {
		return nil, err
	}
	if g.engine, err = auth.NewEngine(g.tracker, deps.Bus, deps.Proxy, g.router, deps.Messages, engineOpts...); err != nil {
		return nil, err
	}
	g.gate = access.NewGate(g.tracker, cfg.AllowedCommands, gateOpts...)

	authDeps := auth.Deps{
		Users:    deps.Users,
		Crypto:   deps.Crypto,
		Engine:   g.engine,
		Resolver: deps.Resolver,
		Bus:      deps.Bus,
		Proxy:    deps.Proxy,
		Msgs:     deps.Messages,
		Logger:   logger,
		Registry: deps.Registry,
	}
	if g.player, err = auth.NewService(authDeps); err != nil {
		return nil, err
	}
	if g.staff, err = auth.NewStaffService(authDeps); err != nil {
		return nil, err
	}

	g.limiter = ratelimit.New(ratelimit.Config{
		Name:  "commands",
		Burst: cfg.Commands.Burst,
		Rate:  cfg.Commands.Rate,
	})
	registry := command.NewRegistry()
	handlers.RegisterAll(registry)
	dispatcherOpts = append(dispatcherOpts, command.WithLimiter(g.limiter))
	if g.commands, err = command.NewDispatcher(registry, dispatcherOpts...); err != nil {
		g.limiter.Close()
		return nil, err
	}
	g.services = &command.Services{Player: g.player, Staff: g.staff, Reloader: g, Msgs: deps.Messages}

	if err := g.apply(cfg); err != nil {
		g.limiter.Close()
		return nil, err
	}
	return g, nil
}

// Close stops background work.
func (g *Gatekeeper) Close() {
	g.limiter.Close()
}

// Bus returns the domain event bus.
func (g *Gatekeeper) Bus() *event.Bus {
	return g.deps.Bus
}

// Tracker returns the session tracker.
func (g *Gatekeeper) Tracker() *session.Tracker {
	return g.tracker
}

// Router returns the server router.
func (g *Gatekeeper) Router() *routing.Router {
	return g.router
}

// Staff returns the account administration service.
func (g *Gatekeeper) Staff() *auth.StaffService {
	return g.staff
}

// Player returns the self-service account API.
func (g *Gatekeeper) Player() *auth.Service {
	return g.player
}

// IsAuthorized reports whether id has authenticated on its connection.
func (g *Gatekeeper) IsAuthorized(id uuid.UUID) bool {
	return g.engine.IsAuthorized(id)
}

// apply pushes cfg into every component that reads configuration.
func (g *Gatekeeper) apply(cfg *config.Config) error {
	if err := g.router.Configure(cfg.Limbo, cfg.PassThrough); err != nil {
		return err
	}
	if err := g.deps.Crypto.SetDefault(cfg.DefaultCryptoProvider); err != nil {
		return err
	}
	if g.deps.Logger != nil {
		if err := g.deps.Logger.SetLevel(cfg.LogLevel); err != nil {
			return err
		}
	}
	g.gate.SetAllowedCommands(cfg.AllowedCommands)
	g.prompter.SetUseTitles(cfg.UseTitles)
	g.player.SetMinPasswordLength(cfg.MinPasswordLength)
	return nil
}

// ReloadConfiguration re-reads the configuration file. An invalid file
// leaves the previous configuration active.
func (g *Gatekeeper) ReloadConfiguration(ctx context.Context) error {
	cfg, err := g.deps.Config.Reload()
	if err == nil {
		err = g.apply(cfg)
	}
	g.recordReload(ReloadConfiguration, err)
	if err != nil {
		return err
	}
	g.logger.InfoContext(ctx, "configuration reloaded", "path", g.deps.Config.Path())
	return nil
}

// ReloadMessages re-reads the message file and re-prompts every pending
// player with the new text.
func (g *Gatekeeper) ReloadMessages(ctx context.Context) error {
	err := g.deps.Messages.Reload()
	g.recordReload(ReloadMessages, err)
	if err != nil {
		return err
	}
	g.tracker.NotifyAllPending(ctx)
	g.logger.InfoContext(ctx, "messages reloaded", "messages", g.deps.Messages.Len())
	return nil
}

func (g *Gatekeeper) recordReload(target string, err error) {
	if g.deps.Metrics != nil {
		g.deps.Metrics.RecordReload(target, err)
	}
}

func (g *Gatekeeper) playersOnline(delta float64) {
	if g.deps.Metrics != nil {
		g.deps.Metrics.PlayersOnline.Add(delta)
	}
}

// lookup returns the user named name, or nil when there is none.
func (g *Gatekeeper) lookup(ctx context.Context, name string) (*user.User, error) {
	u, err := g.deps.Users.GetByName(ctx, name)
	if errors.Is(err, user.ErrNotFound) {
		return nil, nil
	}
	return u, err
}
