// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/pauth/pauth/internal/auth"
)

const userColumns = `id, chosen_name, email, pass_hash, last_login, created_at`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	pool poolIface
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool poolIface) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, chosen_name, email, pass_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		user.ID.String(),
		user.ChosenName,
		user.Email,
		user.PassHash,
		user.CreatedAt,
	)
	if err != nil {
		if taken := uniqueViolation(err); taken != nil {
			return oops.Code("USER_CONFLICT").
				With("chosen_name", user.ChosenName).
				Wrap(taken)
		}
		return wrapStoreError("USER_CREATE_FAILED", "insert user", err,
			"chosen_name", user.ChosenName)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id.String())

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, wrapStoreError("USER_GET_BY_ID_FAILED", "get user by id", err, "id", id.String())
	}
	return user, nil
}

// GetByIdentifier retrieves the user whose chosen name or email equals identifier.
func (r *UserRepository) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE chosen_name = $1 OR email = $1
		LIMIT 1
	`, identifier)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, wrapStoreError("USER_GET_BY_IDENTIFIER_FAILED", "get user by identifier", err)
	}
	return user, nil
}

// FindConflict returns a user holding name or email. An email match is
// preferred when both are held by different users.
func (r *UserRepository) FindConflict(ctx context.Context, name, email string) (*auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE chosen_name = $1 OR email = $2
		ORDER BY (email = $2) DESC
		LIMIT 1
	`, name, email)

	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, wrapStoreError("USER_FIND_CONFLICT_FAILED", "find conflicting user", err)
	}
	return user, nil
}

// Update writes the non-nil fields of changes in a single statement.
func (r *UserRepository) Update(ctx context.Context, id ulid.ULID, changes auth.UserChanges) (int64, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE users SET
			chosen_name = COALESCE($2, chosen_name),
			email       = COALESCE($3, email),
			pass_hash   = COALESCE($4, pass_hash)
		WHERE id = $1
	`,
		id.String(),
		nullable(changes.ChosenName),
		nullable(changes.Email),
		nullable(changes.PassHash),
	)
	if err != nil {
		if taken := uniqueViolation(err); taken != nil {
			return 0, oops.Code("USER_CONFLICT").
				With("id", id.String()).
				Wrap(taken)
		}
		return 0, wrapStoreError("USER_UPDATE_FAILED", "update user", err, "id", id.String())
	}
	return result.RowsAffected(), nil
}

// UpdateLastLogin sets the last login time.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id.String(), at)
	if err != nil {
		return wrapStoreError("USER_UPDATE_LAST_LOGIN_FAILED", "update last_login", err, "id", id.String())
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteMatching deletes the user if its stored hash still equals passHash.
// Sessions and reset tokens are removed by ON DELETE CASCADE.
func (r *UserRepository) DeleteMatching(ctx context.Context, id ulid.ULID, passHash string) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1 AND pass_hash = $2`, id.String(), passHash)
	if err != nil {
		return 0, wrapStoreError("USER_DELETE_FAILED", "delete user", err, "id", id.String())
	}
	return result.RowsAffected(), nil
}

func scanUser(row scanner) (*auth.User, error) {
	var (
		idStr     string
		user      auth.User
		lastLogin *time.Time
	)
	if err := row.Scan(&idStr, &user.ChosenName, &user.Email, &user.PassHash, &lastLogin, &user.CreatedAt); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}
	user.ID = id
	if lastLogin != nil {
		user.LastLogin = *lastLogin
	}
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
