// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handlers

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/holomush/gatekeeper/internal/access"
	"github.com/holomush/gatekeeper/internal/command"
	"github.com/holomush/gatekeeper/internal/platform"
	"github.com/holomush/gatekeeper/internal/platform/platformtest"
	"github.com/holomush/gatekeeper/internal/user"
)

type mockPlayerService struct {
	mock.Mock
}

func (m *mockPlayerService) Login(ctx context.Context, id uuid.UUID, target platform.Target, password string) error {
	return m.Called(ctx, id, target, password).Error(0)
}

func (m *mockPlayerService) Register(ctx context.Context, id uuid.UUID, target platform.Target, password, repeat string) error {
	return m.Called(ctx, id, target, password, repeat).Error(0)
}

func (m *mockPlayerService) ChangePassword(ctx context.Context, id uuid.UUID, target platform.Target, oldPassword, newPassword string) error {
	return m.Called(ctx, id, target, oldPassword, newPassword).Error(0)
}

func (m *mockPlayerService) EnablePremium(ctx context.Context, id uuid.UUID, target platform.Target, password string) error {
	return m.Called(ctx, id, target, password).Error(0)
}

func (m *mockPlayerService) DisablePremium(ctx context.Context, id uuid.UUID, target platform.Target) error {
	return m.Called(ctx, id, target).Error(0)
}

type mockStaffService struct {
	mock.Mock
}

func (m *mockStaffService) UserInfo(ctx context.Context, name string) (*user.User, error) {
	args := m.Called(ctx, name)
	u, _ := args.Get(0).(*user.User)
	return u, args.Error(1)
}

func (m *mockStaffService) Register(ctx context.Context, caller, name, password string) error {
	return m.Called(ctx, caller, name, password).Error(0)
}

func (m *mockStaffService) Unregister(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockStaffService) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockStaffService) EnablePremium(ctx context.Context, caller, name string) error {
	return m.Called(ctx, caller, name).Error(0)
}

func (m *mockStaffService) Cracked(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockStaffService) Migrate(ctx context.Context, name, newName string) error {
	return m.Called(ctx, name, newName).Error(0)
}

type mockReloader struct {
	mock.Mock
}

func (m *mockReloader) ReloadConfiguration(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockReloader) ReloadMessages(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// keyMessages renders "key k=v ..." so tests can assert on keys.
type keyMessages struct{}

func (keyMessages) Get(key string, replacements ...string) string {
	parts := []string{key}
	for i := 0; i+1 < len(replacements); i += 2 {
		parts = append(parts, replacements[i]+"="+replacements[i+1])
	}
	return strings.Join(parts, " ")
}

type fixture struct {
	player     *mockPlayerService
	staff      *mockStaffService
	reloader   *mockReloader
	dispatcher *command.Dispatcher
	services   *command.Services
}

func newFixture() *fixture {
	f := &fixture{
		player:   &mockPlayerService{},
		staff:    &mockStaffService{},
		reloader: &mockReloader{},
	}
	f.services = &command.Services{Player: f.player, Staff: f.staff, Reloader: f.reloader, Msgs: keyMessages{}}
	reg := command.NewRegistry()
	RegisterAll(reg)
	d, err := command.NewDispatcher(reg)
	if err != nil {
		panic(err)
	}
	f.dispatcher = d
	return f
}

func (f *fixture) run(sender access.Sender, input string) (*platformtest.Target, error) {
	target := platformtest.NewTarget()
	exec := &command.Execution{Sender: sender, Target: target, Services: f.services}
	if !sender.Console {
		exec.Name = "Alice"
	}
	return target, f.dispatcher.Dispatch(context.Background(), input, exec)
}
