// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/holomush/gatekeeper/internal/command"
)

// StaffUsage lists the staff subcommands.
const StaffUsage = "gatekeeper <reload <configuration|messages> | user <info|register|unregister|delete|premium|cracked|migrate> ...>"

// TimeLayout formats timestamps in staff replies.
const TimeLayout = "2006-01-02 15:04:05 MST"

type subcommand struct {
	usage string
	args  int
	run   func(ctx context.Context, exec *command.Execution, args []string) error
}

var userSubcommands = map[string]subcommand{
	"info":       {"gatekeeper user info <name>", 1, userInfo},
	"register":   {"gatekeeper user register <name> <password>", 2, userRegister},
	"unregister": {"gatekeeper user unregister <name>", 1, userUnregister},
	"delete":     {"gatekeeper user delete <name>", 1, userDelete},
	"premium":    {"gatekeeper user premium <name>", 1, userPremium},
	"cracked":    {"gatekeeper user cracked <name>", 1, userCracked},
	"migrate":    {"gatekeeper user migrate <name> <newName>", 2, userMigrate},
}

// StaffHandler routes the gatekeeper administration subcommands.
func StaffHandler(ctx context.Context, exec *command.Execution) error {
	fields := command.Fields(exec.Args)
	if len(fields) == 0 {
		return command.ErrInvalidArgs(exec.InvokedAs, StaffUsage)
	}

	switch strings.ToLower(fields[0]) {
	case "reload":
		return reload(ctx, exec, fields[1:])
	case "user":
		if len(fields) < 2 {
			return command.ErrInvalidArgs(exec.InvokedAs, StaffUsage)
		}
		sub, ok := userSubcommands[strings.ToLower(fields[1])]
		if !ok {
			return command.ErrInvalidArgs(exec.InvokedAs, StaffUsage)
		}
		args := fields[2:]
		if len(args) != sub.args {
			return command.ErrInvalidArgs(exec.InvokedAs, sub.usage)
		}
		return sub.run(ctx, exec, args)
	default:
		return command.ErrInvalidArgs(exec.InvokedAs, StaffUsage)
	}
}

func reload(ctx context.Context, exec *command.Execution, args []string) error {
	const usage = "gatekeeper reload <configuration|messages>"
	if len(args) != 1 {
		return command.ErrInvalidArgs(exec.InvokedAs, usage)
	}

	var run func(context.Context) error
	switch strings.ToLower(args[0]) {
	case "configuration", "config":
		run = exec.Services.Reloader.ReloadConfiguration
	case "messages":
		run = exec.Services.Reloader.ReloadMessages
	default:
		return command.ErrInvalidArgs(exec.InvokedAs, usage)
	}

	exec.Reply("info-reloading")
	if err := run(ctx); err != nil {
		return err
	}
	exec.Reply("info-reloaded")
	return nil
}

func userInfo(ctx context.Context, exec *command.Execution, args []string) error {
	u, err := exec.Services.Staff.UserInfo(ctx, args[0])
	if err != nil {
		return err
	}
	premiumID := "N/A"
	if u.PremiumUUID != nil {
		premiumID = u.PremiumUUID.String()
	}
	exec.Reply("info-user",
		"uuid", u.UUID.String(),
		"premium_uuid", premiumID,
		"last_seen", formatTime(u.LastSeen),
		"joined", formatTime(u.JoinDate),
	)
	return nil
}

func userRegister(ctx context.Context, exec *command.Execution, args []string) error {
	exec.Reply("info-registering")
	if err := exec.Services.Staff.Register(ctx, exec.Caller(), args[0], args[1]); err != nil {
		return err
	}
	exec.Reply("info-registered")
	return nil
}

func userUnregister(ctx context.Context, exec *command.Execution, args []string) error {
	exec.Reply("info-editing")
	if err := exec.Services.Staff.Unregister(ctx, args[0]); err != nil {
		return err
	}
	exec.Reply("info-edited")
	return nil
}

func userDelete(ctx context.Context, exec *command.Execution, args []string) error {
	exec.Reply("info-deleting")
	if err := exec.Services.Staff.Delete(ctx, args[0]); err != nil {
		return err
	}
	exec.Reply("info-deleted")
	return nil
}

func userPremium(ctx context.Context, exec *command.Execution, args []string) error {
	exec.Reply("info-enabling")
	if err := exec.Services.Staff.EnablePremium(ctx, exec.Caller(), args[0]); err != nil {
		return err
	}
	exec.Reply("info-edited")
	return nil
}

func userCracked(ctx context.Context, exec *command.Execution, args []string) error {
	exec.Reply("info-editing")
	if err := exec.Services.Staff.Cracked(ctx, args[0]); err != nil {
		return err
	}
	exec.Reply("info-edited")
	return nil
}

func userMigrate(ctx context.Context, exec *command.Execution, args []string) error {
	exec.Reply("info-editing")
	if err := exec.Services.Staff.Migrate(ctx, args[0], args[1]); err != nil {
		return err
	}
	exec.Reply("info-edited")
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.UTC().Format(TimeLayout)
}
