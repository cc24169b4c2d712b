// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/pauth/pauth/internal/auth"
)

// newUserCmd creates the user command group.
func (c *cli) newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Create, inspect, change and delete users",
	}
	cmd.AddCommand(c.newUserAddCmd(), c.newUserShowCmd(), c.newUserUpdateCmd(), c.newUserDeleteCmd())
	return cmd
}

func (c *cli) newUserAddCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user and print its first session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := c.passwordFlag(cmd, "password", "Password: ")
			if err != nil {
				return err
			}
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				result, err := svc.users.AddUser(ctx, name, email, password)
				if err != nil {
					return err
				}
				if !result.Added() {
					return oops.Code("USER_NOT_ADDED").
						With("failures", len(result.Failures)).
						Errorf("user not added: %s", formatFailures(result.Failures))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "User added")
				printSession(cmd, result.Session)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "chosen name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().String("password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) newUserShowCmd() *cobra.Command {
	var userID, token string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the user owning a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseCredentials(userID, token)
			if err != nil {
				return err
			}
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				user, err := svc.users.GetUser(ctx, id)
				if err != nil {
					return err
				}
				if user == nil {
					return errSessionRejected()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "id: %s\n", user.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "name: %s\n", user.ChosenName)
				fmt.Fprintf(cmd.OutOrStdout(), "email: %s\n", user.Email)
				fmt.Fprintf(cmd.OutOrStdout(), "last_login: %s\n", user.LastLogin.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
	credentialFlags(cmd, &userID, &token)
	return cmd
}

// updateFlags registers the optional new-detail flags shared by
// user update and reset apply.
func updateFlags(cmd *cobra.Command) {
	cmd.Flags().String("new-name", "", "new chosen name")
	cmd.Flags().String("new-email", "", "new email address")
	cmd.Flags().String("new-password", "", "new password")
}

// updateFromFlags builds a UserUpdate from the new-detail flags that were given.
func updateFromFlags(cmd *cobra.Command) auth.UserUpdate {
	var update auth.UserUpdate
	if cmd.Flags().Changed("new-name") {
		v, _ := cmd.Flags().GetString("new-name") //nolint:errcheck // flag is registered
		update = update.WithChosenName(v)
	}
	if cmd.Flags().Changed("new-email") {
		v, _ := cmd.Flags().GetString("new-email") //nolint:errcheck // flag is registered
		update = update.WithEmail(v)
	}
	if cmd.Flags().Changed("new-password") {
		v, _ := cmd.Flags().GetString("new-password") //nolint:errcheck // flag is registered
		update = update.WithPassword(v)
	}
	return update
}

// reportChange prints a detail change outcome; anything but a change is an error.
func reportChange(cmd *cobra.Command, result auth.ChangeDetailsResult) error {
	switch result.Status {
	case auth.DetailsChanged:
		fmt.Fprintln(cmd.OutOrStdout(), "Details changed")
		return nil
	case auth.DetailsNotChanged:
		return oops.Code("DETAILS_NOT_CHANGED").Errorf("details not changed: %s", formatFailures(result.Failures))
	default:
		return oops.Code("AUTHENTICATION_FAILED").Errorf("authentication failed")
	}
}

func (c *cli) newUserUpdateCmd() *cobra.Command {
	var userID, token string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change a user's name, email or password",
		Long: `Change the details of the user owning a session. The current password is
required; only the --new-* flags given are changed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseCredentials(userID, token)
			if err != nil {
				return err
			}
			password, err := c.passwordFlag(cmd, "password", "Current password: ")
			if err != nil {
				return err
			}
			update := updateFromFlags(cmd)
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				result, err := svc.users.ChangeDetails(ctx, id, password, update)
				if err != nil {
					return err
				}
				return reportChange(cmd, result)
			})
		},
	}
	credentialFlags(cmd, &userID, &token)
	cmd.Flags().String("password", "", "current password (prompted when omitted)")
	updateFlags(cmd)
	return cmd
}

func (c *cli) newUserDeleteCmd() *cobra.Command {
	var userID, token string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a user with its sessions and reset tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := parseCredentials(userID, token)
			if err != nil {
				return err
			}
			password, err := c.passwordFlag(cmd, "password", "Password: ")
			if err != nil {
				return err
			}
			return c.withServices(cmd, func(ctx context.Context, svc *services) error {
				result, err := svc.users.DeleteUser(ctx, id, password)
				if err != nil {
					return err
				}
				switch result {
				case auth.UserDeleted:
					fmt.Fprintln(cmd.OutOrStdout(), "User deleted")
					return nil
				case auth.UserDeleteAuthFailure:
					return errSessionRejected()
				default:
					return oops.Code("USER_NOT_FOUND").Errorf("user not found or password incorrect")
				}
			})
		},
	}
	credentialFlags(cmd, &userID, &token)
	cmd.Flags().String("password", "", "password (prompted when omitted)")
	return cmd
}

func errSessionRejected() error {
	return oops.Code("SESSION_REJECTED").Errorf("session is not valid")
}
