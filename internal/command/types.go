// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package command parses, registers and dispatches the gatekeeper chat
// commands. Handlers live in the handlers subpackage.
package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/holomush/gatekeeper/internal/access"
	"github.com/holomush/gatekeeper/internal/platform"
	"github.com/holomush/gatekeeper/internal/user"
)

// ConsoleCaller names the console in staff audit logs and rate limit keys.
const ConsoleCaller = "console"

// Handler executes a command.
type Handler func(ctx context.Context, exec *Execution) error

// Entry is a registered command.
type Entry struct {
	Name    string   // canonical lowercase name
	Aliases []string // alternative names, also lowercase
	Handler Handler
	Usage   string // shown on invalid syntax, e.g. "login <password>"
	Help    string // one line
	// PlayerOnly commands act on the sender's own connection.
	PlayerOnly bool
	// Staff commands require the permission check to pass.
	Staff bool
}

// Execution is the context of one command invocation.
type Execution struct {
	Sender access.Sender
	// Name is the sender's player name, empty for the console.
	Name string
	// Target receives replies. May be nil.
	Target    platform.Target
	Args      string
	InvokedAs string
	Services  *Services
}

// Reply renders a message key to the sender.
func (e *Execution) Reply(key string, replacements ...string) {
	if e.Target == nil || e.Services == nil || e.Services.Msgs == nil {
		return
	}
	e.Target.SendMessage(e.Services.Msgs.Get(key, replacements...))
}

// Caller identifies the sender for staff audit logs and rate limiting.
func (e *Execution) Caller() string {
	if e.Sender.Console {
		return ConsoleCaller
	}
	return e.Sender.ID.String()
}

// Messages renders message keys.
type Messages interface {
	Get(key string, replacements ...string) string
}

// PlayerService is the self-service account API.
type PlayerService interface {
	Login(ctx context.Context, id uuid.UUID, target platform.Target, password string) error
	Register(ctx context.Context, id uuid.UUID, target platform.Target, password, repeat string) error
	ChangePassword(ctx context.Context, id uuid.UUID, target platform.Target, oldPassword, newPassword string) error
	EnablePremium(ctx context.Context, id uuid.UUID, target platform.Target, password string) error
	DisablePremium(ctx context.Context, id uuid.UUID, target platform.Target) error
}

// StaffService is the account administration API.
type StaffService interface {
	UserInfo(ctx context.Context, name string) (*user.User, error)
	Register(ctx context.Context, caller, name, password string) error
	Unregister(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	EnablePremium(ctx context.Context, caller, name string) error
	Cracked(ctx context.Context, name string) error
	Migrate(ctx context.Context, name, newName string) error
}

// Reloader re-reads configuration and messages from disk.
type Reloader interface {
	ReloadConfiguration(ctx context.Context) error
	ReloadMessages(ctx context.Context) error
}

// Services are the collaborators handlers call into.
type Services struct {
	Player   PlayerService
	Staff    StaffService
	Reloader Reloader
	Msgs     Messages
}
