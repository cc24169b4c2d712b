// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// newResetCmd creates the reset command group.
func (c *cli) newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Issue and redeem password reset tokens",
		Long: `Password reset tokens are printed once for out-of-band delivery and stored
only as a hash. A token can be redeemed for a session or used to change
the user's details without the current password.`,
	}
	cmd.AddCommand(c.newResetRequestCmd(), c.newResetRedeemCmd(), c.newResetApplyCmd(), c.newResetPurgeCmd())
	return cmd
}

func (c *cli) newResetRequestCmd() *cobra.Command {
	var identifier string
	var ttl time.Duration
	var noExpiry bool
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Issue a reset token for a user",
		Long: `Issue a reset token for the user named by --identifier. An unknown
identifier succeeds without printing a token, so the outcome does not
reveal whether the user exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			expires := c.resetExpiry(cmd, ttl, noExpiry)
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				token, ok, err := svc.resets.GeneratePwReset(ctx, identifier, expires)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Reset requested")
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "reset_token: %s\n", token)
				if expires != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "expires: %s\n", expires.UTC().Format(time.RFC3339))
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "expires: never")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&identifier, "identifier", "", "chosen name or email")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from reset.default_ttl)")
	cmd.Flags().BoolVar(&noExpiry, "no-expiry", false, "issue a token that never expires")
	_ = cmd.MarkFlagRequired("identifier")
	cmd.MarkFlagsMutuallyExclusive("ttl", "no-expiry")
	return cmd
}

// resetExpiry resolves the expiry of a new token: --no-expiry, then --ttl,
// then reset.default_ttl. A zero lifetime never expires.
func (c *cli) resetExpiry(cmd *cobra.Command, ttl time.Duration, noExpiry bool) *time.Time {
	if noExpiry {
		return nil
	}
	if !cmd.Flags().Changed("ttl") {
		ttl = c.cfg.Reset.DefaultTTL
	}
	if ttl <= 0 {
		return nil
	}
	expires := c.deps.Now().Add(ttl)
	return &expires
}

func (c *cli) newResetRedeemCmd() *cobra.Command {
	var identifier, token string
	cmd := &cobra.Command{
		Use:   "redeem",
		Short: "Exchange a reset token for a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				result, err := svc.resets.ValidatePwReset(ctx, identifier, token)
				if err != nil {
					return err
				}
				if !result.LoggedIn() {
					return oops.Code("AUTHENTICATION_FAILED").Errorf("reset token rejected")
				}
				printSession(cmd, result.Session)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&identifier, "identifier", "", "chosen name or email")
	cmd.Flags().StringVar(&token, "token", "", "reset token")
	_ = cmd.MarkFlagRequired("identifier")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func (c *cli) newResetApplyCmd() *cobra.Command {
	var identifier, token string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Change a user's details with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			update := updateFromFlags(cmd)
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				result, err := svc.resets.ChangeDetailsWithPwResetToken(ctx, identifier, token, update)
				if err != nil {
					return err
				}
				return reportChange(cmd, result)
			})
		},
	}
	cmd.Flags().StringVar(&identifier, "identifier", "", "chosen name or email")
	cmd.Flags().StringVar(&token, "token", "", "reset token")
	_ = cmd.MarkFlagRequired("identifier")
	_ = cmd.MarkFlagRequired("token")
	updateFlags(cmd)
	return cmd
}

func (c *cli) newResetPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired reset tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				n, err := svc.resets.PurgeExpired(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged: %d\n", n)
				return nil
			})
		},
	}
}
