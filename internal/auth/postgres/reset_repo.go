// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package postgres

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/pauth/pauth/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	pool poolIface
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(pool poolIface) *PasswordResetRepository {
	return &PasswordResetRepository{pool: pool}
}

// Create stores a new password reset request.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO pw_reset (id, user_id, user_token_hash, expires, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		reset.ID.String(),
		reset.UserID.String(),
		reset.TokenHash,
		reset.ExpiresAt,
		reset.CreatedAt,
	)
	if err != nil {
		return wrapStoreError("RESET_CREATE_FAILED", "insert password reset", err,
			"user_id", reset.UserID.String())
	}
	return nil
}

// FindValid returns the resets of the user whose chosen name or email equals
// identifier that have no expiry or expire after now.
func (r *PasswordResetRepository) FindValid(ctx context.Context, identifier string, now time.Time) ([]*auth.PasswordReset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.user_id, r.user_token_hash, r.expires, r.created_at
		FROM pw_reset r
		JOIN users u ON u.id = r.user_id
		WHERE (u.chosen_name = $1 OR u.email = $1)
		  AND (r.expires IS NULL OR r.expires > $2)
		ORDER BY r.created_at DESC
	`, identifier, now)
	if err != nil {
		return nil, wrapStoreError("RESET_FIND_FAILED", "find valid resets", err)
	}
	defer rows.Close()

	var resets []*auth.PasswordReset
	for rows.Next() {
		var (
			idStr, userIDStr string
			reset            auth.PasswordReset
		)
		if err := rows.Scan(&idStr, &userIDStr, &reset.TokenHash, &reset.ExpiresAt, &reset.CreatedAt); err != nil {
			return nil, oops.Code("RESET_SCAN_FAILED").
				With("operation", "scan reset row").
				Wrap(err)
		}
		if reset.ID, err = ulid.Parse(idStr); err != nil {
			return nil, oops.Code("RESET_INVALID_ID").
				With("operation", "parse reset id").
				With("id", idStr).
				Wrap(err)
		}
		if reset.UserID, err = ulid.Parse(userIDStr); err != nil {
			return nil, oops.Code("RESET_INVALID_USER_ID").
				With("operation", "parse user id").
				With("user_id", userIDStr).
				Wrap(err)
		}
		resets = append(resets, &reset)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("RESET_ROWS_ERROR", "iterate reset rows", err)
	}
	return resets, nil
}

// Delete removes a password reset request.
func (r *PasswordResetRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM pw_reset WHERE id = $1`, id.String())
	if err != nil {
		return wrapStoreError("RESET_DELETE_FAILED", "delete password reset", err, "id", id.String())
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteExpired removes all resets expired at now and returns the count.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM pw_reset WHERE expires IS NOT NULL AND expires <= $1`, now)
	if err != nil {
		return 0, wrapStoreError("RESET_DELETE_EXPIRED_FAILED", "delete expired resets", err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
