// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/pauth/pauth/internal/auth"
	"github.com/pauth/pauth/internal/config"
	"github.com/pauth/pauth/internal/logging"
	"github.com/pauth/pauth/internal/xdg"
	"github.com/pauth/pauth/pkg/errutil"
)

// rootOptions holds the global flags. database-url, log-format and
// log-level are read back through config.Load so they override the file
// and environment only when given.
type rootOptions struct {
	configFile  string
	databaseURL string
	logFormat   string
	logLevel    string
	metrics     bool
}

// cli carries state shared by every subcommand of one invocation.
type cli struct {
	deps     *Deps
	opts     rootOptions
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
}

// services are the auth services over one set of stores.
type services struct {
	auth   *auth.Service
	users  *auth.UserService
	resets *auth.PasswordResetService
	close  func()
}

// NewRootCmd creates the root command for the pauth CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	c := &cli{
		deps:     deps.withDefaults(),
		registry: prometheus.NewRegistry(),
	}
	auth.RegisterMetrics(c.registry)

	cmd := &cobra.Command{
		Use:   "pauth",
		Short: "pauth - username/email and password authentication",
		Long: `pauth administers a PostgreSQL credential store: users identified by a
unique name or email, opaque session tokens, and password reset tokens.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if !c.opts.metrics {
				return nil
			}
			return c.writeMetrics(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.opts.configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/pauth/config.yaml if present)")
	flags.StringVar(&c.opts.databaseURL, "database-url", "", "PostgreSQL connection URL (overrides config and DATABASE_URL)")
	flags.StringVar(&c.opts.logFormat, "log-format", "json", "log format (json or text)")
	flags.StringVar(&c.opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.BoolVar(&c.opts.metrics, "metrics", false, "print auth counters after the command")

	cmd.AddCommand(c.newMigrateCmd())
	cmd.AddCommand(c.newUserCmd())
	cmd.AddCommand(c.newLoginCmd())
	cmd.AddCommand(c.newLogoutCmd())
	cmd.AddCommand(c.newSessionCmd())
	cmd.AddCommand(c.newResetCmd())

	return cmd
}

// setup loads and validates configuration and configures logging. Without
// --config the XDG config file is used when it exists.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	path := c.opts.configFile
	if path == "" {
		found, err := xdg.DefaultConfigFile()
		if err != nil {
			return err
		}
		path = found
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logging.SetDefault("pauth", version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	return nil
}

// services opens the store and builds the auth services. Callers must
// invoke close when done.
func (c *cli) services(ctx context.Context) (*services, error) {
	stores, err := c.deps.StoreOpener(ctx, c.cfg.Database)
	if err != nil {
		errutil.LogErrorContext(ctx, c.logger, "open credential store failed", err)
		return nil, err
	}
	closeStores := func() {
		if stores.Close != nil {
			stores.Close()
		}
	}

	hasher := auth.NewArgon2idHasherWithParams(c.cfg.Hasher.Argon2Params())
	authSvc, err := auth.NewAuthServiceWithLogger(stores.Users, stores.Sessions, hasher, c.logger)
	if err != nil {
		closeStores()
		return nil, err
	}
	userSvc, err := auth.NewUserService(authSvc, stores.Users, hasher)
	if err != nil {
		closeStores()
		return nil, err
	}
	resetSvc, err := auth.NewPasswordResetService(authSvc, stores.Users, stores.Resets, hasher,
		auth.WithSingleUse(c.cfg.Reset.SingleUse),
		auth.WithResetLogger(c.logger),
		auth.WithResetClock(c.deps.Now),
	)
	if err != nil {
		closeStores()
		return nil, err
	}

	return &services{auth: authSvc, users: userSvc, resets: resetSvc, close: closeStores}, nil
}

// withServices runs fn against freshly opened services.
func (c *cli) withServices(cmd *cobra.Command, fn func(ctx context.Context, svc *services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := c.services(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	if err := fn(ctx, svc); err != nil {
		errutil.LogErrorContext(ctx, c.logger, "command failed", err)
		return err
	}
	return nil
}

// credentialFlags registers --user-id and --token on cmd.
func credentialFlags(cmd *cobra.Command, userID, token *string) {
	cmd.Flags().StringVar(userID, "user-id", "", "user ID of the session")
	cmd.Flags().StringVar(token, "token", "", "session token")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("token")
}

// parseCredentials builds the session credential from flag values.
func parseCredentials(userID, token string) (auth.AuthenticatedID, error) {
	id, err := ulid.ParseStrict(userID)
	if err != nil {
		return auth.AuthenticatedID{}, oops.Code("INVALID_USER_ID").With("user_id", userID).Wrap(err)
	}
	return auth.AuthenticatedID{UserID: id, Token: token}, nil
}

func printSession(cmd *cobra.Command, id *auth.AuthenticatedID) {
	fmt.Fprintf(cmd.OutOrStdout(), "user_id: %s\n", id.UserID)
	fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", id.Token)
}

func formatFailures(failures []auth.UserActionFailure) string {
	parts := make([]string, 0, len(failures))
	for _, f := range failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Kind, f.Reason))
	}
	return strings.Join(parts, "; ")
}

// writeMetrics prints every auth counter sample as name{labels} value.
func (c *cli) writeMetrics(cmd *cobra.Command) error {
	families, err := c.registry.Gather()
	if err != nil {
		return oops.Code("METRICS_GATHER_FAILED").Wrap(err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)
	for _, line := range lines {
		fmt.Fprintln(cmd.ErrOrStderr(), line)
	}
	return nil
}
