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

func (c *cli) newLoginCmd() *cobra.Command {
	var identifier string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in by chosen name or email and print a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := c.passwordFlag(cmd, "password", "Password: ")
			if err != nil {
				return err
			}
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				result, err := svc.auth.Login(ctx, identifier, password)
				if err != nil {
					return err
				}
				if !result.LoggedIn() {
					return oops.Code("AUTHENTICATION_FAILED").Errorf("authentication failed")
				}
				printSession(cmd, result.Session)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&identifier, "identifier", "", "chosen name or email")
	cmd.Flags().String("password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func (c *cli) newLogoutCmd() *cobra.Command {
	var userID, token string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke a single session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseCredentials(userID, token)
			if err != nil {
				return err
			}
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				ok, err := svc.auth.Logout(ctx, id)
				if err != nil {
					return err
				}
				if !ok {
					return errSessionRejected()
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
	credentialFlags(cmd, &userID, &token)
	return cmd
}

// newSessionCmd creates the session command group.
func (c *cli) newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Check and list sessions",
	}

	var userID, token string
	var withPassword bool
	check := &cobra.Command{
		Use:   "check",
		Short: "Check a session, optionally together with the password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseCredentials(userID, token)
			if err != nil {
				return err
			}
			var password string
			if withPassword || cmd.Flags().Changed("password") {
				if password, err = c.passwordFlag(cmd, "password", "Password: "); err != nil {
					return err
				}
			}
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				var ok bool
				if withPassword || cmd.Flags().Changed("password") {
					ok, err = svc.auth.CheckIDAndPassword(ctx, id, password)
				} else {
					ok, err = svc.auth.CheckID(ctx, id)
				}
				if err != nil {
					return err
				}
				if !ok {
					return errSessionRejected()
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Session valid")
				return nil
			})
		},
	}
	credentialFlags(check, &userID, &token)
	check.Flags().String("password", "", "also verify this password")
	check.Flags().BoolVar(&withPassword, "with-password", false, "prompt for the password and verify it too")

	var listUserID, listToken string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the sessions of the user owning a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseCredentials(listUserID, listToken)
			if err != nil {
				return err
			}
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				sessions, err := svc.auth.Sessions(ctx, id)
				if err != nil {
					return err
				}
				if sessions == nil {
					return errSessionRejected()
				}
				for _, s := range sessions {
					fmt.Fprintf(cmd.OutOrStdout(), "%s created=%s last_used=%s\n", s.ID,
						s.Created.UTC().Format(time.RFC3339), s.LastUsed.UTC().Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	credentialFlags(list, &listUserID, &listToken)

	cmd.AddCommand(check, list)
	return cmd
}
