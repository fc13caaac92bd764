// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handlers

import (
	"context"

	"github.com/holomush/gatekeeper/internal/command"
)

// Usage strings shown on invalid syntax.
const (
	LoginUsage          = "login <password>"
	RegisterUsage       = "register <password> <passwordRepeat>"
	ChangePasswordUsage = "changepassword <oldPassword> <newPassword>"
	PremiumUsage        = "premium <password>"
	CrackedUsage        = "cracked"
)

// LoginHandler authenticates a registered player.
func LoginHandler(ctx context.Context, exec *command.Execution) error {
	args, err := command.ExactArgs(exec, LoginUsage, 1)
	if err != nil {
		return err
	}
	exec.Reply("info-logging-in")
	if err := exec.Services.Player.Login(ctx, exec.Sender.ID, exec.Target, args[0]); err != nil {
		return err
	}
	exec.Reply("info-logged-in")
	return nil
}

// RegisterHandler sets the first password of a new player.
func RegisterHandler(ctx context.Context, exec *command.Execution) error {
	args, err := command.ExactArgs(exec, RegisterUsage, 2)
	if err != nil {
		return err
	}
	exec.Reply("info-registering")
	if err := exec.Services.Player.Register(ctx, exec.Sender.ID, exec.Target, args[0], args[1]); err != nil {
		return err
	}
	exec.Reply("info-registered")
	return nil
}

// ChangePasswordHandler replaces the password of a logged-in player.
func ChangePasswordHandler(ctx context.Context, exec *command.Execution) error {
	args, err := command.ExactArgs(exec, ChangePasswordUsage, 2)
	if err != nil {
		return err
	}
	exec.Reply("info-editing")
	if err := exec.Services.Player.ChangePassword(ctx, exec.Sender.ID, exec.Target, args[0], args[1]); err != nil {
		return err
	}
	exec.Reply("info-edited")
	return nil
}

// PremiumHandler binds the player's account to its premium identity. The
// player is disconnected on success.
func PremiumHandler(ctx context.Context, exec *command.Execution) error {
	args, err := command.ExactArgs(exec, PremiumUsage, 1)
	if err != nil {
		return err
	}
	exec.Reply("info-enabling")
	return exec.Services.Player.EnablePremium(ctx, exec.Sender.ID, exec.Target, args[0])
}

// CrackedHandler unbinds the player's account from its premium identity.
// The player is disconnected on success.
func CrackedHandler(ctx context.Context, exec *command.Execution) error {
	if _, err := command.ExactArgs(exec, CrackedUsage, 0); err != nil {
		return err
	}
	exec.Reply("info-editing")
	return exec.Services.Player.DisablePremium(ctx, exec.Sender.ID, exec.Target)
}
