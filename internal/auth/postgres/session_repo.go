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

const sessionColumns = `id, user_id, token_hash, created, last_used`

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	pool poolIface
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool poolIface) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Create stores a new session token.
func (r *SessionRepository) Create(ctx context.Context, session *auth.SessionToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_login_tokens (id, user_id, token_hash, created, last_used)
		VALUES ($1, $2, $3, $4, $5)
	`,
		session.ID.String(),
		session.UserID.String(),
		session.TokenHash,
		session.Created,
		session.LastUsed,
	)
	if err != nil {
		return wrapStoreError("SESSION_CREATE_FAILED", "insert session", err,
			"user_id", session.UserID.String())
	}
	return nil
}

// Get retrieves the session with the given ID owned by userID.
func (r *SessionRepository) Get(ctx context.Context, userID, sessionID ulid.ULID) (*auth.SessionToken, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM user_login_tokens
		WHERE id = $1 AND user_id = $2
	`, sessionID.String(), userID.String())

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").
			With("id", sessionID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, wrapStoreError("SESSION_GET_FAILED", "get session", err, "id", sessionID.String())
	}
	return session, nil
}

// ListByUser retrieves all sessions for a user, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID ulid.ULID) ([]*auth.SessionToken, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM user_login_tokens
		WHERE user_id = $1
		ORDER BY created DESC, id DESC
	`, userID.String())
	if err != nil {
		return nil, wrapStoreError("SESSION_LIST_FAILED", "list sessions", err, "user_id", userID.String())
	}
	defer rows.Close()

	var sessions []*auth.SessionToken
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("operation", "scan session row").
				Wrap(err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreError("SESSION_ROWS_ERROR", "iterate session rows", err)
	}
	return sessions, nil
}

// Touch updates the LastUsed timestamp for a session.
func (r *SessionRepository) Touch(ctx context.Context, sessionID ulid.ULID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `UPDATE user_login_tokens SET last_used = $2 WHERE id = $1`, sessionID.String(), at)
	if err != nil {
		return wrapStoreError("SESSION_TOUCH_FAILED", "update last_used", err, "id", sessionID.String())
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", sessionID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes the session with the given ID owned by userID.
func (r *SessionRepository) Delete(ctx context.Context, userID, sessionID ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM user_login_tokens WHERE id = $1 AND user_id = $2`,
		sessionID.String(), userID.String())
	if err != nil {
		return wrapStoreError("SESSION_DELETE_FAILED", "delete session", err, "id", sessionID.String())
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").
			With("id", sessionID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func scanSession(row scanner) (*auth.SessionToken, error) {
	var (
		idStr, userIDStr string
		session          auth.SessionToken
	)
	if err := row.Scan(&idStr, &userIDStr, &session.TokenHash, &session.Created, &session.LastUsed); err != nil {
		return nil, err
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}
	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}
	session.ID = id
	session.UserID = userID
	return &session, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
