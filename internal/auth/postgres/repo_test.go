// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/puddle/v2"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauth/pauth/internal/auth"
	"github.com/pauth/pauth/pkg/errutil"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		mock.Close()
	})
	return mock
}

func uniqueErr(constraint string) error {
	return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: constraint}
}

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"closed pool", puddle.ErrClosedPool, true},
		{"wrapped closed pool", errors.Join(errors.New("acquire"), puddle.ErrClosedPool), true},
		{"connect error", &pgconn.ConnectError{}, true},
		{"too many connections", &pgconn.PgError{Code: pgerrcode.TooManyConnections}, true},
		{"connection failure", &pgconn.PgError{Code: pgerrcode.ConnectionFailure}, true},
		{"unique violation", uniqueErr(usersEmailKey), false},
		{"syntax error", &pgconn.PgError{Code: pgerrcode.SyntaxError}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUnavailable(tt.err))
		})
	}
}

func TestUniqueViolation(t *testing.T) {
	assert.ErrorIs(t, uniqueViolation(uniqueErr(usersChosenNameKey)), auth.ErrChosenNameTaken)
	assert.ErrorIs(t, uniqueViolation(uniqueErr(usersEmailKey)), auth.ErrEmailTaken)
	assert.NoError(t, uniqueViolation(uniqueErr("user_login_tokens_pkey")))
	assert.NoError(t, uniqueViolation(errors.New("boom")))
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()
	user := &auth.User{
		ID:         ulid.Make(),
		ChosenName: "alice",
		Email:      "alice@x.com",
		PassHash:   "$argon2id$hash",
		CreatedAt:  time.Now(),
	}

	tests := []struct {
		name      string
		execErr   error
		wantIs    error
		wantCode  string
		wantNoErr bool
	}{
		{name: "inserts user", wantNoErr: true},
		{name: "chosen name taken", execErr: uniqueErr(usersChosenNameKey), wantIs: auth.ErrChosenNameTaken, wantCode: "USER_CONFLICT"},
		{name: "email taken", execErr: uniqueErr(usersEmailKey), wantIs: auth.ErrEmailTaken, wantCode: "USER_CONFLICT"},
		{name: "pool closed", execErr: puddle.ErrClosedPool, wantIs: auth.ErrStoreUnavailable, wantCode: "STORE_UNAVAILABLE"},
		{name: "statement failure", execErr: errors.New("syntax"), wantCode: "USER_CREATE_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			exp := mock.ExpectExec("INSERT INTO users").
				WithArgs(user.ID.String(), "alice", "alice@x.com", "$argon2id$hash", pgxmock.AnyArg())
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(pgxmock.NewResult("INSERT", 1))
			}

			err := NewUserRepository(mock).Create(ctx, user)
			if tt.wantNoErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			errutil.AssertErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestUserRepository_GetByIdentifier(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "chosen_name", "email", "pass_hash", "last_login", "created_at"}

	t.Run("scans user", func(t *testing.T) {
		mock := newMock(t)
		id := ulid.Make()
		created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		lastLogin := created.Add(time.Hour)
		mock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs("alice@x.com").
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(id.String(), "alice", "alice@x.com", "$argon2id$hash", &lastLogin, created))

		user, err := NewUserRepository(mock).GetByIdentifier(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "alice", user.ChosenName)
		assert.Equal(t, lastLogin, user.LastLogin)
		assert.Equal(t, created, user.CreatedAt)
	})

	t.Run("missing user is not found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs("nobody").
			WillReturnRows(pgxmock.NewRows(columns))

		_, err := NewUserRepository(mock).GetByIdentifier(ctx, "nobody")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("connection failure is unavailable", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs("alice").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.ConnectionFailure})

		_, err := NewUserRepository(mock).GetByIdentifier(ctx, "alice")
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_Update(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	email := "new@x.com"

	t.Run("only set fields are passed", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE users SET").
			WithArgs(id.String(), nil, email, nil).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		rows, err := NewUserRepository(mock).Update(ctx, id, auth.UserChanges{Email: &email})
		require.NoError(t, err)
		assert.Equal(t, int64(1), rows)
	})

	t.Run("reports zero rows", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE users SET").
			WithArgs(id.String(), nil, email, nil).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		rows, err := NewUserRepository(mock).Update(ctx, id, auth.UserChanges{Email: &email})
		require.NoError(t, err)
		assert.Zero(t, rows)
	})

	t.Run("email conflict", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("UPDATE users SET").
			WithArgs(id.String(), nil, email, nil).
			WillReturnError(uniqueErr(usersEmailKey))

		_, err := NewUserRepository(mock).Update(ctx, id, auth.UserChanges{Email: &email})
		assert.ErrorIs(t, err, auth.ErrEmailTaken)
	})
}

func TestUserRepository_DeleteMatching(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	mock := newMock(t)
	mock.ExpectExec("DELETE FROM users").
		WithArgs(id.String(), "$argon2id$hash").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	rows, err := NewUserRepository(mock).DeleteMatching(ctx, id, "$argon2id$hash")
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestSessionRepository_Get(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "user_id", "token_hash", "created", "last_used"}
	userID := ulid.Make()
	sessionID := ulid.Make()

	t.Run("scans session", func(t *testing.T) {
		mock := newMock(t)
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery("SELECT (.+) FROM user_login_tokens").
			WithArgs(sessionID.String(), userID.String()).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(sessionID.String(), userID.String(), "$argon2id$s", now, now))

		session, err := NewSessionRepository(mock).Get(ctx, userID, sessionID)
		require.NoError(t, err)
		assert.Equal(t, sessionID, session.ID)
		assert.Equal(t, userID, session.UserID)
		assert.Equal(t, "$argon2id$s", session.TokenHash)
	})

	t.Run("missing session is not found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM user_login_tokens").
			WithArgs(sessionID.String(), userID.String()).
			WillReturnRows(pgxmock.NewRows(columns))

		_, err := NewSessionRepository(mock).Get(ctx, userID, sessionID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("exhausted server is unavailable", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM user_login_tokens").
			WithArgs(sessionID.String(), userID.String()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.TooManyConnections})

		_, err := NewSessionRepository(mock).Get(ctx, userID, sessionID)
		assert.ErrorIs(t, err, auth.ErrStoreUnavailable)
		errutil.AssertErrorCode(t, err, "STORE_UNAVAILABLE")
	})
}

func TestSessionRepository_Delete(t *testing.T) {
	ctx := context.Background()
	userID := ulid.Make()
	sessionID := ulid.Make()

	t.Run("deletes session", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("DELETE FROM user_login_tokens").
			WithArgs(sessionID.String(), userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		require.NoError(t, NewSessionRepository(mock).Delete(ctx, userID, sessionID))
	})

	t.Run("no row is not found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec("DELETE FROM user_login_tokens").
			WithArgs(sessionID.String(), userID.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := NewSessionRepository(mock).Delete(ctx, userID, sessionID)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestPasswordResetRepository_FindValid(t *testing.T) {
	ctx := context.Background()
	columns := []string{"id", "user_id", "user_token_hash", "expires", "created_at"}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	userID := ulid.Make()
	resetID := ulid.Make()
	expires := now.Add(time.Hour)

	t.Run("scans candidates", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM pw_reset").
			WithArgs("alice", now).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(resetID.String(), userID.String(), "$argon2id$r", &expires, now))

		resets, err := NewPasswordResetRepository(mock).FindValid(ctx, "alice", now)
		require.NoError(t, err)
		require.Len(t, resets, 1)
		assert.Equal(t, resetID, resets[0].ID)
		assert.Equal(t, userID, resets[0].UserID)
		require.NotNil(t, resets[0].ExpiresAt)
		assert.Equal(t, expires, *resets[0].ExpiresAt)
	})

	t.Run("query failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM pw_reset").
			WithArgs("alice", now).
			WillReturnError(errors.New("boom"))

		_, err := NewPasswordResetRepository(mock).FindValid(ctx, "alice", now)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RESET_FIND_FAILED")
	})
}

func TestPasswordResetRepository_DeleteExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock := newMock(t)
	mock.ExpectExec("DELETE FROM pw_reset WHERE expires IS NOT NULL").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := NewPasswordResetRepository(mock).DeleteExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
