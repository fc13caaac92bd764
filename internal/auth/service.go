// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/crypto"
	"github.com/holomush/gatekeeper/internal/event"
	"github.com/holomush/gatekeeper/internal/platform"
	"github.com/holomush/gatekeeper/internal/premium"
	"github.com/holomush/gatekeeper/internal/user"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

// DefaultMinPasswordLength is the shortest accepted password.
const DefaultMinPasswordLength = 4

// Resolver looks up trusted identities.
type Resolver interface {
	Resolve(ctx context.Context, caller, name string) (*premium.Identity, error)
}

// Deps are the collaborators shared by Service and StaffService.
type Deps struct {
	Users    user.Store
	Crypto   *crypto.Registry
	Engine   *Engine
	Resolver Resolver
	Bus      *event.Bus
	Proxy    platform.Proxy
	Msgs     Messages
	Logger   *slog.Logger
	Registry prometheus.Registerer
}

func (d Deps) validate() error {
	switch {
	case d.Users == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("user store is required")
	case d.Crypto == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("crypto registry is required")
	case d.Resolver == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("resolver is required")
	case d.Bus == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("event bus is required")
	case d.Proxy == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("proxy is required")
	case d.Msgs == nil:
		return oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("messages are required")
	}
	return nil
}

// Service implements the self-service player operations. Every method acts
// on the connection identified by id.
type Service struct {
	Deps
	minPassword atomic.Int64
	attempts    *prometheus.CounterVec
}

// NewService creates a Service. deps.Engine is required.
func NewService(deps Deps) (*Service, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Engine == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("engine is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Service{Deps: deps}
	s.minPassword.Store(DefaultMinPasswordLength)
	if deps.Registry != nil {
		s.attempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_auth_attempts_total",
			Help: "Player authentication operations by action and result",
		}, []string{"action", "result"})
		deps.Registry.MustRegister(s.attempts)
	}
	return s, nil
}

// SetMinPasswordLength changes the password length policy.
func (s *Service) SetMinPasswordLength(n int) {
	if n > 0 {
		s.minPassword.Store(int64(n))
	}
}

// MinPasswordLength returns the password length policy.
func (s *Service) MinPasswordLength() int {
	return int(s.minPassword.Load())
}

// Login verifies password and authorizes the connection. A wrong password
// leaves the session untouched. Hashes made by a provider other than the
// default are upgraded on success.
func (s *Service) Login(ctx context.Context, id uuid.UUID, target platform.Target, password string) (err error) {
	defer func() { s.record("login", err) }()

	if s.Engine.IsAuthorized(id) {
		return oops.Code(CodeAlreadyAuthorized).With("uuid", id.String()).Errorf("already authorized")
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !u.IsRegistered() {
		return oops.Code(CodeNotRegistered).With("uuid", id.String()).Errorf("not registered")
	}

	if err := s.verify(u, password); err != nil {
		return err
	}

	if s.Crypto.NeedsUpgrade(u.Password()) {
		s.upgrade(ctx, u, password)
	}

	u.Touch()
	if err := s.Users.Save(ctx, u); err != nil {
		errutil.LogErrorContext(ctx, s.Logger, slog.LevelWarn, "failed to record login", err)
	}
	return s.Engine.Authorize(ctx, id, u, target)
}

// Register sets the first password and authorizes the connection.
func (s *Service) Register(ctx context.Context, id uuid.UUID, target platform.Target, password, repeat string) (err error) {
	defer func() { s.record("register", err) }()

	if s.Engine.IsAuthorized(id) {
		return oops.Code(CodeAlreadyAuthorized).With("uuid", id.String()).Errorf("already authorized")
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if u.IsRegistered() {
		return oops.Code(CodeAlreadyRegistered).With("uuid", id.String()).Errorf("already registered")
	}
	if password != repeat {
		return oops.Code(CodePasswordMismatch).Errorf("passwords do not match")
	}
	if err := s.checkLength(password); err != nil {
		return err
	}

	hash, err := s.Crypto.CreateDefaultHash(password)
	if err != nil {
		return oops.Code("AUTH_REGISTER_FAILED").With("uuid", id.String()).Wrap(err)
	}
	u.SetPassword(hash)
	u.Touch()
	if err := s.Users.Save(ctx, u); err != nil {
		return oops.Code("AUTH_REGISTER_FAILED").With("uuid", id.String()).Wrap(err)
	}

	s.Logger.InfoContext(ctx, "player registered", "uuid", id.String(), "name", u.LastNickname)
	return s.Engine.Authorize(ctx, id, u, target)
}

// ChangePassword replaces the password of an authorized player.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, target platform.Target, oldPassword, newPassword string) (err error) {
	defer func() { s.record("change_password", err) }()

	if !s.Engine.IsAuthorized(id) {
		return oops.Code(CodeNotAuthorized).With("uuid", id.String()).Errorf("not authorized")
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !u.IsRegistered() {
		return oops.Code(CodeNotRegistered).With("uuid", id.String()).Errorf("not registered")
	}
	if err := s.verify(u, oldPassword); err != nil {
		return err
	}
	if err := s.checkLength(newPassword); err != nil {
		return err
	}

	oldHash := u.Password()
	hash, err := s.Crypto.CreateDefaultHash(newPassword)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("uuid", id.String()).Wrap(err)
	}
	u.SetPassword(hash)
	if err := s.Users.Save(ctx, u); err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("uuid", id.String()).Wrap(err)
	}

	return s.Bus.Publish(ctx, event.PasswordChanged{
		Meta:    event.NewMeta(),
		User:    u,
		Target:  target,
		OldHash: oldHash,
	})
}

// EnablePremium binds the player's account to the trusted identity of its
// name after confirming the password, then disconnects the player so the
// next connection is verified in trusted mode.
func (s *Service) EnablePremium(ctx context.Context, id uuid.UUID, target platform.Target, password string) (err error) {
	defer func() { s.record("enable_premium", err) }()

	if !s.Engine.IsAuthorized(id) {
		return oops.Code(CodeNotAuthorized).With("uuid", id.String()).Errorf("not authorized")
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if u.IsPremium() {
		return oops.Code(CodeAlreadyPremium).With("uuid", id.String()).Errorf("already premium")
	}
	if u.IsRegistered() {
		if err := s.verify(u, password); err != nil {
			return err
		}
	}

	if err := bindPremium(ctx, s.Deps, id.String(), u); err != nil {
		return err
	}
	if err := s.Users.Save(ctx, u); err != nil {
		return oops.Code("AUTH_PREMIUM_FAILED").With("uuid", id.String()).Wrap(err)
	}
	if err := s.Bus.Publish(ctx, event.PremiumLoginSwitch{Meta: event.NewMeta(), User: u, Target: target, Enabled: true}); err != nil {
		return err
	}

	s.Proxy.Kick(ctx, id, s.Msgs.Get("kick-premium-info-enabled"))
	return nil
}

// DisablePremium unbinds the player's account from its trusted identity and
// disconnects the player. The account keeps its password, if any.
func (s *Service) DisablePremium(ctx context.Context, id uuid.UUID, target platform.Target) (err error) {
	defer func() { s.record("disable_premium", err) }()

	if !s.Engine.IsAuthorized(id) {
		return oops.Code(CodeNotAuthorized).With("uuid", id.String()).Errorf("not authorized")
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !u.IsPremium() {
		return oops.Code(CodeNotPremium).With("uuid", id.String()).Errorf("not premium")
	}

	u.PremiumUUID = nil
	if err := s.Users.Save(ctx, u); err != nil {
		return oops.Code("AUTH_PREMIUM_FAILED").With("uuid", id.String()).Wrap(err)
	}
	if err := s.Bus.Publish(ctx, event.PremiumLoginSwitch{Meta: event.NewMeta(), User: u, Target: target}); err != nil {
		return err
	}

	s.Proxy.Kick(ctx, id, s.Msgs.Get("kick-premium-info-disabled"))
	return nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.Users.GetByUUID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).With("uuid", id.String()).Wrap(err)
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").With("uuid", id.String()).Wrap(err)
	}
	return u, nil
}

// verify returns CodeInvalidCredentials on a wrong password. A stored hash
// in an unknown format surfaces as crypto.CodeUnsupportedFormat.
func (s *Service) verify(u *user.User, password string) error {
	ok, err := s.Crypto.Verify(password, u.Password())
	if err != nil {
		return oops.With("uuid", u.UUID.String()).Wrap(err)
	}
	if !ok {
		return oops.Code(CodeInvalidCredentials).With("uuid", u.UUID.String()).Errorf("wrong password")
	}
	return nil
}

func (s *Service) upgrade(ctx context.Context, u *user.User, password string) {
	from, _ := s.Crypto.Identify(u.Password())
	hash, err := s.Crypto.CreateDefaultHash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.Logger, slog.LevelWarn, "password rehash failed", err)
		return
	}
	u.SetPassword(hash)
	s.Logger.InfoContext(ctx, "password hash upgraded",
		"uuid", u.UUID.String(), "from", from, "to", s.Crypto.Default())
}

func (s *Service) checkLength(password string) error {
	minLen := s.MinPasswordLength()
	if len(password) < minLen {
		return oops.Code(CodePasswordTooShort).With("min", minLen).Errorf("password too short")
	}
	return nil
}

func (s *Service) record(action string, err error) {
	if s.attempts == nil {
		return
	}
	result := "success"
	if err != nil {
		result = errutil.Code(err)
		if result == "" {
			result = "error"
		}
	}
	s.attempts.WithLabelValues(action, result).Inc()
}

// bindPremium resolves u's name and records the trusted identity on u.
// A name without one fails with CodeNotPaid and leaves u unchanged.
func bindPremium(ctx context.Context, d Deps, caller string, u *user.User) error {
	identity, err := d.Resolver.Resolve(ctx, caller, u.LastNickname)
	if err != nil {
		return oops.With("name", u.LastNickname).Wrap(err)
	}
	if identity == nil {
		return oops.Code(CodeNotPaid).With("name", u.LastNickname).Errorf("name has no premium account")
	}

	owner, err := d.Users.GetByPremiumUUID(ctx, identity.UUID)
	switch {
	case err == nil && owner.UUID != u.UUID:
		return oops.Code(CodePremiumTaken).
			With("name", u.LastNickname).
			With("owner", owner.LastNickname).
			Errorf("premium account already bound to %s", owner.LastNickname)
	case err != nil && !errors.Is(err, user.ErrNotFound):
		return oops.Code("AUTH_LOOKUP_FAILED").With("premium_uuid", identity.UUID.String()).Wrap(err)
	}

	premiumID := identity.UUID
	u.PremiumUUID = &premiumID
	return nil
}
