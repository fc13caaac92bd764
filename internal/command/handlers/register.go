// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package handlers implements the player and staff commands.
package handlers

import (
	"github.com/holomush/gatekeeper/internal/command"
)

// RegisterAll adds every built-in command to reg. It panics on a name
// conflict, which is a programming error.
func RegisterAll(reg *command.Registry) {
	mustRegister := func(entry command.Entry) {
		if err := reg.Register(entry); err != nil {
			panic("failed to register command " + entry.Name + ": " + err.Error())
		}
	}

	mustRegister(command.Entry{
		Name:       "login",
		Aliases:    []string{"l", "log"},
		Handler:    LoginHandler,
		Usage:      LoginUsage,
		Help:       "Log in with your password",
		PlayerOnly: true,
	})
	mustRegister(command.Entry{
		Name:       "register",
		Aliases:    []string{"reg"},
		Handler:    RegisterHandler,
		Usage:      RegisterUsage,
		Help:       "Register a password for your account",
		PlayerOnly: true,
	})
	mustRegister(command.Entry{
		Name:       "changepassword",
		Aliases:    []string{"changepass", "passwd", "passch"},
		Handler:    ChangePasswordHandler,
		Usage:      ChangePasswordUsage,
		Help:       "Change your password",
		PlayerOnly: true,
	})
	mustRegister(command.Entry{
		Name:       "premium",
		Aliases:    []string{"autologin"},
		Handler:    PremiumHandler,
		Usage:      PremiumUsage,
		Help:       "Log in automatically with your premium account",
		PlayerOnly: true,
	})
	mustRegister(command.Entry{
		Name:       "cracked",
		Aliases:    []string{"manuallogin"},
		Handler:    CrackedHandler,
		Usage:      CrackedUsage,
		Help:       "Stop logging in with your premium account",
		PlayerOnly: true,
	})
	mustRegister(command.Entry{
		Name:    "gatekeeper",
		Aliases: []string{"gk"},
		Handler: StaffHandler,
		Usage:   StaffUsage,
		Help:    "Administer accounts and reload configuration",
		Staff:   true,
	})
}
