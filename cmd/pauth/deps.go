// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/pauth/pauth/internal/auth"
	"github.com/pauth/pauth/internal/auth/postgres"
	"github.com/pauth/pauth/internal/config"
	"github.com/pauth/pauth/internal/store"
)

// Stores bundles the repositories the services run on.
type Stores struct {
	Users    auth.UserRepository
	Sessions auth.SessionRepository
	Resets   auth.PasswordResetRepository
	Close    func()
}

// Migrator wraps the methods the migrate commands use from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// StoreOpener connects the repositories.
	// Default: a pgxpool-backed PostgreSQL store
	StoreOpener func(ctx context.Context, cfg config.DatabaseConfig) (*Stores, error)

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)

	// PasswordReader prompts for a secret when no --password flag was given.
	// Default: readPassword
	PasswordReader func(cmd *cobra.Command, prompt string) (string, error)

	// Now supplies the clock for reset expiry.
	// Default: time.Now
	Now func() time.Time
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.StoreOpener == nil {
		out.StoreOpener = openPostgresStores
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.PasswordReader == nil {
		out.PasswordReader = readPassword
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return &out
}

// openPostgresStores builds a bounded pool and checks it can reach the
// database within the configured acquire timeout.
func openPostgresStores(ctx context.Context, cfg config.DatabaseConfig) (*Stores, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("timeout", cfg.AcquireTimeout.String()).
			Wrap(fmt.Errorf("%w: %w", auth.ErrStoreUnavailable, err))
	}

	return &Stores{
		Users:    postgres.NewUserRepository(pool),
		Sessions: postgres.NewSessionRepository(pool),
		Resets:   postgres.NewPasswordResetRepository(pool),
		Close:    pool.Close,
	}, nil
}
