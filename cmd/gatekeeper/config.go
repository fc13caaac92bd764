// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/gatekeeper/internal/config"
	"github.com/holomush/gatekeeper/internal/crypto"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd(gopts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file against the schema and the known servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := gopts.load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(cfg.Servers, crypto.NewDefaultRegistry().Tags()); err != nil {
				return err
			}
			cmd.Printf("Configuration %s is valid\n", displayPath(gopts.path()))
			return nil
		},
	})

	var output string
	schema := &cobra.Command{
		Use:   "schema",
		Short: "Print or write the configuration JSON Schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeSchema(cmd, output)
		},
	}
	schema.Flags().StringVarP(&output, "output", "o", "", "write the schema to this file instead of standard output")
	cmd.AddCommand(schema)

	return cmd
}

// writeSchema prints the schema, or writes it to path creating parent
// directories.
func writeSchema(cmd *cobra.Command, path string) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return err
	}
	if path == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", path).Wrap(err)
	}
	if err := os.WriteFile(path, schema, 0o600); err != nil {
		return oops.Code("SCHEMA_WRITE_FAILED").With("path", path).Wrap(err)
	}
	cmd.Printf("Generated %s\n", path)
	return nil
}

func displayPath(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}
