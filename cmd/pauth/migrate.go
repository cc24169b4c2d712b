// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/pauth/pauth/internal/store"
)

// newMigrateCmd creates the migrate command group.
func (c *cli) newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the credential store schema",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL schema migrations.`,
	}

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration, dropping all users, sessions and resets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return oops.Code("MIGRATION_NOT_CONFIRMED").Errorf("migrate down drops all data; pass --yes to confirm")
			}
			return c.withMigrator(func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm the rollback")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withMigrator(func(m Migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully")
					return nil
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations (negative N rolls back)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n, err := parseForceVersion(args[0])
				if err != nil {
					return err
				}
				return c.withMigrator(func(m Migrator) error {
					if err := m.Steps(n); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Applied %d step(s)\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:     "version",
			Aliases: []string{"status"},
			Short:   "Show the current schema version and pending migrations",
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withMigrator(func(m Migrator) error {
					status, err := m.Status()
					if err != nil {
						return err
					}
					fmt.Fprint(cmd.OutOrStdout(), formatStatus(status))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Record VERSION as applied without running migrations",
			Long: `Force sets the schema version and clears the dirty flag. Use it only after
repairing a failed migration by hand.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				version, err := parseForceVersion(args[0])
				if err != nil {
					return err
				}
				return c.withMigrator(func(m Migrator) error {
					if err := m.Force(version); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Forced version %d\n", version)
					return nil
				})
			},
		},
	)

	return cmd
}

func (c *cli) withMigrator(fn func(Migrator) error) (err error) {
	m, err := c.deps.MigratorFactory(c.cfg.Database.URL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(m)
}

// parseForceVersion parses an integer argument. Trailing non-digits are
// ignored.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(s, "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}

func formatStatus(s store.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "version: %d\n", s.Version)
	fmt.Fprintf(&b, "dirty: %t\n", s.Dirty)
	if len(s.Pending) == 0 {
		b.WriteString("pending: none\n")
		return b.String()
	}
	pending := make([]string, 0, len(s.Pending))
	for _, v := range s.Pending {
		name, err := store.MigrationName(v)
		if err != nil || name == "" {
			name = fmt.Sprintf("%06d", v)
		}
		pending = append(pending, name)
	}
	fmt.Fprintf(&b, "pending: %s\n", strings.Join(pending, ", "))
	return b.String()
}
