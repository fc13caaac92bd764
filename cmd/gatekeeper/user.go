// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/platform"
)

type userSubcommand struct {
	use   string
	short string
	args  int
}

var userSubcommands = []userSubcommand{
	{"info NAME", "Show an account", 1},
	{"register NAME PASSWORD", "Create an offline account with a password", 2},
	{"unregister NAME", "Remove an account's password", 1},
	{"delete NAME", "Delete an account", 1},
	{"premium NAME", "Bind an account to its premium identity", 1},
	{"cracked NAME", "Unbind an account from its premium identity", 1},
	{"migrate NAME NEW_NAME", "Rename an account", 2},
}

// NewUserCmd creates the user subcommand. Each child runs the matching
// console command against the configured store.
func NewUserCmd(gopts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administer player accounts",
	}

	for _, sub := range userSubcommands {
		name, _, _ := strings.Cut(sub.use, " ")
		cmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.ExactArgs(sub.args),
			RunE: func(cmd *cobra.Command, args []string) error {
				line := "gatekeeper user " + name + " " + strings.Join(args, " ")
				return runConsoleCommand(cmd, gopts, line)
			},
		})
	}
	return cmd
}

// runConsoleCommand builds a runtime without metrics and runs line as the
// console, printing replies to the command's output.
func runConsoleCommand(cmd *cobra.Command, gopts *globalOptions, line string) error {
	cfg, err := gopts.load(cmd.Flags())
	if err != nil {
		return err
	}
	rt, err := buildRuntime(cmd.Context(), gopts, cmd.Flags(), cfg, runtimeOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			slog.Warn("error releasing resources", "error", err)
		}
	}()
	return rt.gk.Console(cmd.Context(), platform.NewWriterTarget(cmd.OutOrStdout()), line)
}
