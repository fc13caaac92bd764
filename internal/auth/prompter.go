// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/holomush/gatekeeper/internal/platform"
	"github.com/holomush/gatekeeper/internal/session"
	"github.com/holomush/gatekeeper/internal/user"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

// TitleStay is how long a title prompt stays on screen.
const TitleStay = 15 * time.Second

// Prompter tells a pending player how to authenticate: registered players
// are asked to log in, everyone else to register.
type Prompter struct {
	users     user.Store
	msgs      Messages
	useTitles atomic.Bool
	logger    *slog.Logger
}

// NewPrompter creates a Prompter.
func NewPrompter(users user.Store, msgs Messages, useTitles bool, logger *slog.Logger) *Prompter {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Prompter{users: users, msgs: msgs, logger: logger}
	p.useTitles.Store(useTitles)
	return p
}

// SetUseTitles toggles title prompts.
func (p *Prompter) SetUseTitles(enabled bool) {
	p.useTitles.Store(enabled)
}

// Prompt implements session.Prompter.
func (p *Prompter) Prompt(ctx context.Context, id uuid.UUID, target platform.Target) {
	if target == nil {
		return
	}

	registered := false
	u, err := p.users.GetByUUID(ctx, id)
	switch {
	case err == nil:
		registered = u.IsRegistered()
	case !errors.Is(err, user.ErrNotFound):
		errutil.LogErrorContext(ctx, p.logger, slog.LevelWarn, "prompt user lookup failed", err)
	}

	chat, title := "prompt-register", "title-register"
	if registered {
		chat, title = "prompt-login", "title-login"
	}

	target.SendMessage(p.msgs.Get(chat))
	if p.useTitles.Load() {
		target.ShowTitle(p.msgs.Get(title), TitleStay)
	}
}

var _ session.Prompter = (*Prompter)(nil)
