// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/xdg"
)

// defaultConfigFile is read when --config is not given.
const defaultConfigFile = "gatekeeper.yml"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
}

// NewRootCmd creates the root command for the gatekeeper CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "gatekeeper",
		Short: "Authentication and access control for a game proxy",
		Long: `gatekeeper authenticates players connecting through a game proxy,
keeps unauthenticated players in limbo and routes everyone else to a lobby.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", defaultConfigFile, "config file path (searched in . and $XDG_CONFIG_HOME/gatekeeper)")
	// These mirror configuration keys and override the file when set.
	pf.String("log-format", "", "log format (json or text)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.String("metrics-addr", "", "metrics/health HTTP address")
	pf.String("database.url", "", "PostgreSQL URL (empty = in-memory storage)")
	pf.String("redis.url", "", "Redis URL for the identity cache (empty = in-process cache)")

	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewMigrateCmd(opts))
	cmd.AddCommand(NewConfigCmd(opts))
	cmd.AddCommand(NewUserCmd(opts))

	return cmd
}

// load reads the configuration named by the global flags. Without
// --config the working directory and the XDG config directory are
// searched, and built-in defaults apply when neither has a file.
func (o *globalOptions) load(flags *pflag.FlagSet) (*config.Config, error) {
	return config.Load(o.path(), flags)
}

// path is the configuration file to read, or "" for defaults only.
func (o *globalOptions) path() string {
	if o.configFile != defaultConfigFile {
		return o.configFile
	}
	path, err := xdg.FindConfig(defaultConfigFile)
	if err != nil {
		slog.Warn("config search failed", "error", err)
		return o.configFile
	}
	return path
}
