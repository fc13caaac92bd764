// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/store"
)

// schemaMigrator is the part of store.Migrator the CLI drives.
type schemaMigrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (schemaMigrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate subcommand and its children.
func NewMigrateCmd(gopts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the account database schema",
		Long: `Manage the PostgreSQL schema that stores accounts.

The database URL comes from --database.url, the configuration file or the
DATABASE_URL environment variable, in that order.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, gopts, func(m schemaMigrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	})

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the last migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, gopts, func(m schemaMigrator) error {
				if all {
					cmd.Println("Reverting all migrations...")
					return m.Down()
				}
				cmd.Println("Reverting one migration...")
				return m.Steps(-1)
			})
		},
	}
	down.Flags().BoolVar(&all, "all", false, "revert every migration, dropping all account data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, gopts, func(m schemaMigrator) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				printStatus(cmd, st)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied and clear the dirty flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
			}
			return withMigrator(cmd, gopts, func(m schemaMigrator) error {
				if err := m.Force(v); err != nil {
					return err
				}
				cmd.Printf("Forced version %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

func printStatus(cmd *cobra.Command, st store.Status) {
	name, err := store.MigrationName(st.Version)
	if err != nil || name == "" {
		name = strconv.FormatUint(uint64(st.Version), 10)
	}
	cmd.Printf("Current version: %s\n", name)
	if st.Dirty {
		cmd.Println("Database is dirty; repair it and run 'gatekeeper migrate force'")
	}
	if len(st.Pending) == 0 {
		cmd.Println("No pending migrations")
		return
	}
	cmd.Printf("Pending migrations: %d\n", len(st.Pending))
	for _, v := range st.Pending {
		if name, err := store.MigrationName(v); err == nil && name != "" {
			cmd.Printf("  %s\n", name)
		}
	}
}

// withMigrator opens a migrator for the configured database, runs fn and
// closes it.
func withMigrator(cmd *cobra.Command, gopts *globalOptions, fn func(schemaMigrator) error) error {
	cfg, err := gopts.load(cmd.Flags())
	if err != nil {
		return err
	}
	url := databaseURL(cfg)
	if url == "" {
		return oops.Code("CONFIG_INVALID").Errorf("a database URL is required: set --database.url or DATABASE_URL")
	}

	m, err := newMigrator(url)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()
	return fn(m)
}
