// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

// Package postgres implements the auth repository contracts on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/puddle/v2"
	"github.com/samber/oops"

	"github.com/pauth/pauth/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool the repositories use. It lets
// unit tests substitute pgxmock for a live database.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Unique constraint names from the initial migration.
const (
	usersChosenNameKey = "users_chosen_name_key"
	usersEmailKey      = "users_email_key"
)

// wrapStoreError wraps err for the given operation. Connection failures are
// reported as STORE_UNAVAILABLE so callers can tell them from statement
// failures.
func wrapStoreError(code, operation string, err error, kv ...any) error {
	if isUnavailable(err) {
		return oops.Code("STORE_UNAVAILABLE").
			With("operation", operation).
			With(kv...).
			Wrap(fmt.Errorf("%w: %w", auth.ErrStoreUnavailable, err))
	}
	return oops.Code(code).With("operation", operation).With(kv...).Wrap(err)
}

// isUnavailable reports whether err means no usable connection could be
// acquired, as opposed to a statement failing on a live connection.
func isUnavailable(err error) bool {
	if errors.Is(err, puddle.ErrClosedPool) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsInsufficientResources(pgErr.Code)
	}
	return false
}

// uniqueViolation maps a unique-constraint violation on users to the
// matching auth sentinel. It returns nil for any other error.
func uniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case usersChosenNameKey:
		return auth.ErrChosenNameTaken
	case usersEmailKey:
		return auth.ErrEmailTaken
	}
	return nil
}

// nullable converts an optional column value to a query argument.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
