// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/gatekeeper/internal/event"
	"github.com/holomush/gatekeeper/internal/user"
)

// StaffService implements account administration. Operations that modify an
// account require its owner to be offline.
type StaffService struct {
	Deps
}

// NewStaffService creates a StaffService. deps.Engine is not used.
func NewStaffService(deps Deps) (*StaffService, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &StaffService{Deps: deps}, nil
}

// UserInfo returns the account for name.
func (s *StaffService) UserInfo(ctx context.Context, name string) (*user.User, error) {
	return s.byName(ctx, name)
}

// Register creates a registered account for name. The account identity is
// the name's trusted identity when it has one, otherwise the offline
// identity the platform would assign.
func (s *StaffService) Register(ctx context.Context, caller, name, password string) error {
	if err := user.ValidateName(name); err != nil {
		return err
	}
	if _, err := s.Users.GetByName(ctx, name); err == nil {
		return oops.Code(CodeNameTaken).With("name", name).Errorf("name %s is already in use", name)
	} else if !errors.Is(err, user.ErrNotFound) {
		return oops.Code("AUTH_LOOKUP_FAILED").With("name", name).Wrap(err)
	}

	identity, err := s.Resolver.Resolve(ctx, caller, name)
	if err != nil {
		return oops.With("name", name).Wrap(err)
	}
	id := user.OfflineUUID(name)
	if identity != nil {
		id = identity.UUID
	}

	hash, err := s.Crypto.CreateDefaultHash(password)
	if err != nil {
		return oops.Code("AUTH_REGISTER_FAILED").With("name", name).Wrap(err)
	}
	u := user.New(id, nil, &hash, name)
	if err := s.Users.Save(ctx, u); err != nil {
		return oops.Code("AUTH_REGISTER_FAILED").With("name", name).Wrap(err)
	}
	s.Logger.InfoContext(ctx, "staff registered user", "caller", caller, "name", name, "uuid", id.String())
	return nil
}

// Unregister clears the account's password.
func (s *StaffService) Unregister(ctx context.Context, name string) error {
	u, err := s.offlineUser(ctx, name)
	if err != nil {
		return err
	}
	u.SetPassword("")
	return s.save(ctx, u)
}

// Delete removes the account.
func (s *StaffService) Delete(ctx context.Context, name string) error {
	u, err := s.offlineUser(ctx, name)
	if err != nil {
		return err
	}
	if err := s.Users.Delete(ctx, u); err != nil {
		return oops.Code("AUTH_DELETE_FAILED").With("name", name).Wrap(err)
	}
	s.Logger.InfoContext(ctx, "staff deleted user", "name", name, "uuid", u.UUID.String())
	return nil
}

// EnablePremium binds the account to its name's trusted identity. A name
// without one fails with CodeNotPaid and the account is unchanged.
func (s *StaffService) EnablePremium(ctx context.Context, caller, name string) error {
	u, err := s.offlineUser(ctx, name)
	if err != nil {
		return err
	}
	if err := bindPremium(ctx, s.Deps, caller, u); err != nil {
		return err
	}
	if err := s.save(ctx, u); err != nil {
		return err
	}
	return s.Bus.Publish(ctx, event.PremiumLoginSwitch{Meta: event.NewMeta(), User: u, Enabled: true})
}

// Cracked unbinds the account from its trusted identity.
func (s *StaffService) Cracked(ctx context.Context, name string) error {
	u, err := s.offlineUser(ctx, name)
	if err != nil {
		return err
	}
	wasPremium := u.IsPremium()
	u.PremiumUUID = nil
	if err := s.save(ctx, u); err != nil {
		return err
	}
	if !wasPremium {
		return nil
	}
	return s.Bus.Publish(ctx, event.PremiumLoginSwitch{Meta: event.NewMeta(), User: u})
}

// Migrate renames the account. A trusted identity belongs to the old name,
// so it is dropped.
func (s *StaffService) Migrate(ctx context.Context, name, newName string) error {
	if err := user.ValidateName(newName); err != nil {
		return err
	}
	u, err := s.byName(ctx, name)
	if err != nil {
		return err
	}
	existing, err := s.Users.GetByName(ctx, newName)
	switch {
	case err == nil && existing.UUID != u.UUID:
		return oops.Code(CodeNameTaken).With("name", newName).Errorf("name %s is already in use", newName)
	case err != nil && !errors.Is(err, user.ErrNotFound):
		return oops.Code("AUTH_LOOKUP_FAILED").With("name", newName).Wrap(err)
	}
	if err := s.requireOffline(u); err != nil {
		return err
	}

	wasPremium := u.IsPremium()
	u.LastNickname = newName
	u.PremiumUUID = nil
	if err := s.save(ctx, u); err != nil {
		return err
	}
	s.Logger.InfoContext(ctx, "staff migrated user", "from", name, "to", newName, "uuid", u.UUID.String())
	if !wasPremium {
		return nil
	}
	return s.Bus.Publish(ctx, event.PremiumLoginSwitch{Meta: event.NewMeta(), User: u})
}

func (s *StaffService) byName(ctx context.Context, name string) (*user.User, error) {
	u, err := s.Users.GetByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).With("name", name).Wrap(err)
		}
		return nil, oops.Code("AUTH_LOOKUP_FAILED").With("name", name).Wrap(err)
	}
	return u, nil
}

func (s *StaffService) offlineUser(ctx context.Context, name string) (*user.User, error) {
	u, err := s.byName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.requireOffline(u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *StaffService) requireOffline(u *user.User) error {
	if s.Proxy.IsOnline(u.UUID) {
		return oops.Code(CodeUserOnline).With("name", u.LastNickname).Errorf("%s is online", u.LastNickname)
	}
	return nil
}

func (s *StaffService) save(ctx context.Context, u *user.User) error {
	if err := s.Users.Save(ctx, u); err != nil {
		return oops.Code("AUTH_SAVE_FAILED").With("name", u.LastNickname).Wrap(err)
	}
	return nil
}
