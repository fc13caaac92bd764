// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package proxy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/holomush/gatekeeper/internal/access"
	"github.com/holomush/gatekeeper/internal/command"
	"github.com/holomush/gatekeeper/internal/event"
	"github.com/holomush/gatekeeper/internal/logging"
	"github.com/holomush/gatekeeper/internal/platform"
	"github.com/holomush/gatekeeper/internal/premium"
	"github.com/holomush/gatekeeper/internal/routing"
	"github.com/holomush/gatekeeper/internal/user"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

var tracer = otel.Tracer("gatekeeper/proxy")

// PreLoginResult is the negotiation outcome plus the rendered deny message.
type PreLoginResult struct {
	routing.Negotiation
	// Message is the localized reason, set only for Deny.
	Message string
}

// PreLogin decides whether a connection presenting name may proceed and in
// which handshake mode. Unknown names are resolved against the premium
// identity service and an account is created for them.
func (g *Gatekeeper) PreLogin(ctx context.Context, name string) PreLoginResult {
	ctx = logging.WithPlayer(ctx, name)
	ctx, span := tracer.Start(ctx, "proxy.pre_login")
	defer span.End()

	n, err := g.preLogin(ctx, name)
	if err != nil {
		span.RecordError(err)
		errutil.LogErrorContext(ctx, g.logger, slog.LevelError, "pre-login failed", err)
		n = routing.Negotiation{Verdict: routing.Deny, Reason: routing.ReasonError}
	}
	span.SetAttributes(attribute.String("proxy.verdict", n.Verdict.String()))

	res := PreLoginResult{Negotiation: n}
	if n.Verdict == routing.Deny {
		res.Message = g.deps.Messages.Get(n.Reason, flatten(n.Placeholders)...)
		g.logger.InfoContext(ctx, "connection denied", "reason", n.Reason)
	}
	return res
}

func (g *Gatekeeper) preLogin(ctx context.Context, name string) (routing.Negotiation, error) {
	if err := user.ValidateName(name); err != nil {
		return routing.Decide(routing.Lookup{Name: name}, false), nil
	}

	stored, err := g.lookup(ctx, name)
	if err != nil {
		return routing.Negotiation{}, oops.With("name", name).Wrap(err)
	}

	l := routing.Lookup{Name: name, Stored: stored}
	if stored == nil {
		l.Identity, l.ResolveErr = g.deps.Resolver.Resolve(ctx, PreLoginCaller, name)
		if l.Identity != nil {
			// A premium player who changed their name keeps their account.
			renamed, err := g.renamePremium(ctx, name, l.Identity)
			if err != nil {
				return routing.Negotiation{}, err
			}
			if renamed != nil {
				l.Stored = renamed
			}
		}
	}

	cfg := g.deps.Config.Get()
	n := routing.Decide(l, cfg.AutoRegisterPremium)
	if n.Verdict == routing.Deny || l.Stored != nil {
		return n, nil
	}

	u := user.New(user.OfflineUUID(name), nil, nil, name)
	if n.Verdict == routing.Allow {
		premiumID := l.Identity.UUID
		u = user.New(premiumID, &premiumID, nil, name)
	}
	if err := g.deps.Users.Save(ctx, u); err != nil {
		return routing.Negotiation{}, oops.With("name", name).Wrap(err)
	}
	g.logger.InfoContext(ctx, "account created", "uuid", u.UUID.String(), "premium", u.IsPremium())
	return n, nil
}

// renamePremium moves the account bound to identity to name. It returns nil
// when no account is bound to identity.
func (g *Gatekeeper) renamePremium(ctx context.Context, name string, identity *premium.Identity) (*user.User, error) {
	u, err := g.deps.Users.GetByPremiumUUID(ctx, identity.UUID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.With("name", name).Wrap(err)
	}
	old := u.LastNickname
	u.LastNickname = name
	if err := g.deps.Users.Save(ctx, u); err != nil {
		return nil, oops.With("name", name).With("old_name", old).Wrap(err)
	}
	g.logger.InfoContext(ctx, "premium account renamed", "uuid", u.UUID.String(), "old_name", old)
	return u, nil
}

// ResolveProfile returns the identity the platform must assign to a
// connection presenting name.
func (g *Gatekeeper) ResolveProfile(ctx context.Context, name string) (uuid.UUID, error) {
	u, err := g.deps.Users.GetByName(ctx, name)
	if err != nil {
		return uuid.Nil, oops.With("name", name).Wrap(err)
	}
	return u.UUID, nil
}

// PostLogin runs once the connection is established. Premium players are
// verified by the handshake and are authorized immediately; everyone else
// is tracked and prompted.
func (g *Gatekeeper) PostLogin(ctx context.Context, id uuid.UUID, target platform.Target) error {
	u, err := g.deps.Users.GetByUUID(ctx, id)
	if err != nil {
		g.deps.Proxy.Kick(ctx, id, g.deps.Messages.Get(routing.ReasonError))
		return oops.With("uuid", id.String()).Wrap(err)
	}
	ctx = logging.WithPlayer(ctx, u.LastNickname)
	g.playersOnline(1)

	u.Touch()
	if err := g.deps.Users.Save(ctx, u); err != nil {
		errutil.LogErrorContext(ctx, g.logger, slog.LevelWarn, "last seen update failed", err)
	}

	if u.IsPremium() {
		err := g.deps.Bus.Publish(ctx, event.Authenticated{Meta: event.NewMeta(), User: u, Target: target})
		if err != nil {
			errutil.LogErrorContext(ctx, g.logger, slog.LevelWarn, "authenticated handler failed", err)
		}
		return nil
	}
	g.tracker.StartTracking(id, target)
	return nil
}

// Disconnect forgets the connection's session state.
func (g *Gatekeeper) Disconnect(ctx context.Context, id uuid.UUID) {
	g.tracker.StopTracking(id)
	g.playersOnline(-1)

	u, err := g.deps.Users.GetByUUID(ctx, id)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			errutil.LogErrorContext(ctx, g.logger, slog.LevelWarn, "disconnect lookup failed", err)
		}
		return
	}
	u.Touch()
	if err := g.deps.Users.Save(ctx, u); err != nil {
		errutil.LogErrorContext(ctx, g.logger, slog.LevelWarn, "last seen update failed", err)
	}
}

// ChooseInitialServer picks the first backend for a new connection: limbo
// while unauthorized, a lobby otherwise. When no server is available the
// player is kicked and the error is returned.
func (g *Gatekeeper) ChooseInitialServer(ctx context.Context, id uuid.UUID) (string, error) {
	u, err := g.deps.Users.GetByUUID(ctx, id)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return "", oops.With("uuid", id.String()).Wrap(err)
	}

	var server string
	if g.tracker.IsAuthorized(id) {
		server, err = g.router.ChooseLobby(ctx, u)
	} else {
		server, err = g.router.ChooseLimbo(ctx, u)
	}
	if err != nil {
		if errutil.HasCode(err, routing.CodeNoDestination) {
			g.deps.Proxy.Kick(ctx, id, g.deps.Messages.Get(routing.ReasonNoServer))
		}
		return "", err
	}
	return server, nil
}

// OnChat reports whether a chat line from sender may be delivered.
func (g *Gatekeeper) OnChat(sender access.Sender) bool {
	return g.gate.AllowChat(sender)
}

// CommandOutcome is what the platform should do with a command line.
type CommandOutcome int

const (
	// CommandForward passes the line on to the backend server.
	CommandForward CommandOutcome = iota
	// CommandHandled means gatekeeper ran the command; drop the line.
	CommandHandled
	// CommandBlocked means the sender may not run it yet; drop the line.
	CommandBlocked
)

func (o CommandOutcome) String() string {
	switch o {
	case CommandHandled:
		return "handled"
	case CommandBlocked:
		return "blocked"
	default:
		return "forward"
	}
}

// OnCommand gates a command line and runs it when it is one of ours. name
// is the sender's display name, empty for the console.
func (g *Gatekeeper) OnCommand(ctx context.Context, sender access.Sender, name string, target platform.Target, line string) CommandOutcome {
	if !g.gate.AllowCommand(sender, line) {
		if target != nil {
			target.SendMessage(g.deps.Messages.Get("error-not-authorized"))
		}
		return CommandBlocked
	}

	parsed, err := command.Parse(line)
	if err != nil {
		return CommandForward
	}
	if _, ok := g.commands.Registry().Get(parsed.Name); !ok {
		return CommandForward
	}

	exec := &command.Execution{Sender: sender, Name: name, Target: target, Services: g.services}
	// Failures are already explained to the sender.
	_ = g.commands.Dispatch(ctx, line, exec)
	return CommandHandled
}

// Console runs line as the proxy console. Replies go to target; the error
// is returned for callers that report an exit status.
func (g *Gatekeeper) Console(ctx context.Context, target platform.Target, line string) error {
	exec := &command.Execution{Sender: access.Console(), Target: target, Services: g.services}
	return g.commands.Dispatch(ctx, line, exec)
}

func flatten(m map[string]string) []string {
	out := make([]string, 0, 2*len(m))
	for k, v := range m {
		out = append(out, k, v)
	}
	return out
}
