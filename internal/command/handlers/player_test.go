// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holomush/gatekeeper/internal/access"
	"github.com/holomush/gatekeeper/internal/auth"
	"github.com/holomush/gatekeeper/internal/command"
	"github.com/holomush/gatekeeper/pkg/errutil"
)

func TestLoginHandler(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.player.On("Login", mock.Anything, id, mock.Anything, "hunter22").Return(nil).Once()

	target, err := f.run(access.Player(id), "/l hunter22")
	require.NoError(t, err)
	assert.Equal(t, []string{"info-logging-in", "info-logged-in"}, target.Messages())
	f.player.AssertExpectations(t)
}

func TestLoginHandler_WrongPassword(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.player.On("Login", mock.Anything, id, mock.Anything, "nope").
		Return(oops.Code(auth.CodeInvalidCredentials).Errorf("wrong password")).Once()

	target, err := f.run(access.Player(id), "login nope")
	errutil.AssertErrorCode(t, err, auth.CodeInvalidCredentials)
	assert.Equal(t, []string{"info-logging-in", "error-password-wrong"}, target.Messages())
}

func TestPlayerHandlers_Syntax(t *testing.T) {
	tests := []struct {
		input string
		usage string
	}{
		{"login", LoginUsage},
		{"login a b", LoginUsage},
		{"register onlyone", RegisterUsage},
		{"passwd old", ChangePasswordUsage},
		{"premium", PremiumUsage},
		{"cracked now", CrackedUsage},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f := newFixture()
			target, err := f.run(access.Player(uuid.New()), tt.input)
			errutil.AssertErrorCode(t, err, command.CodeInvalidArgs)
			assert.Equal(t, []string{"error-invalid-syntax syntax=" + tt.usage}, target.Messages())
			f.player.AssertNotCalled(t, "Login")
		})
	}
}

func TestRegisterHandler(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.player.On("Register", mock.Anything, id, mock.Anything, "a", "b").
		Return(oops.Code(auth.CodePasswordMismatch).Errorf("mismatch")).Once()
	f.player.On("Register", mock.Anything, id, mock.Anything, "secret1", "secret1").Return(nil).Once()

	target, err := f.run(access.Player(id), "reg a b")
	require.Error(t, err)
	assert.Equal(t, []string{"info-registering", "error-password-not-match"}, target.Messages())

	target, err = f.run(access.Player(id), "register secret1 secret1")
	require.NoError(t, err)
	assert.Equal(t, []string{"info-registering", "info-registered"}, target.Messages())
	f.player.AssertExpectations(t)
}

func TestChangePasswordHandler(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.player.On("ChangePassword", mock.Anything, id, mock.Anything, "old", "newpass").Return(nil).Once()

	target, err := f.run(access.Player(id), "changepass old newpass")
	require.NoError(t, err)
	assert.Equal(t, []string{"info-editing", "info-edited"}, target.Messages())
}

func TestPremiumAndCrackedHandlers(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.player.On("EnablePremium", mock.Anything, id, mock.Anything, "pw").Return(nil).Once()
	f.player.On("DisablePremium", mock.Anything, id, mock.Anything).
		Return(oops.Code(auth.CodeNotPremium).Errorf("not premium")).Once()

	target, err := f.run(access.Player(id), "autologin pw")
	require.NoError(t, err)
	assert.Equal(t, []string{"info-enabling"}, target.Messages())

	target, err = f.run(access.Player(id), "manuallogin")
	errutil.AssertErrorCode(t, err, auth.CodeNotPremium)
	assert.Equal(t, []string{"info-editing", "error-not-premium"}, target.Messages())
	f.player.AssertExpectations(t)
}

func TestPlayerHandlers_NotOnConsole(t *testing.T) {
	f := newFixture()
	target, err := f.run(access.Console(), "login pw")
	errutil.AssertErrorCode(t, err, command.CodeConsoleUnsupported)
	assert.Equal(t, []string{"error-not-available-on-console"}, target.Messages())
}
