// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/pauth/pauth/internal/auth"
	"github.com/pauth/pauth/internal/auth/mocks"
)

func TestAuthService_LogsBestEffortFailures(t *testing.T) {
	ctx := context.Background()

	newLogged := func(t *testing.T) (*authFixture, *bytes.Buffer) {
		t.Helper()
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
		f := &authFixture{
			users:    mocks.NewMockUserRepository(t),
			sessions: mocks.NewMockSessionRepository(t),
			hasher:   mocks.NewMockPasswordHasher(t),
		}
		svc, err := auth.NewAuthServiceWithLogger(f.users, f.sessions, f.hasher, logger)
		require.NoError(t, err)
		f.svc = svc
		return f, &buf
	}

	decode := func(t *testing.T, buf *bytes.Buffer) map[string]any {
		t.Helper()
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
		return entry
	}

	t.Run("last login update failure", func(t *testing.T) {
		f, buf := newLogged(t)
		user := &auth.User{ID: ulid.Make(), PassHash: storedHash}

		f.users.On("GetByIdentifier", ctx, "alice").Return(user, nil)
		f.hasher.On("Verify", "p@ss1", storedHash).Return(true, nil)
		f.hasher.On("NeedsUpgrade", storedHash).Return(false)
		f.users.On("UpdateLastLogin", ctx, user.ID, mock.AnythingOfType("time.Time")).Return(errors.New("db down"))
		f.hasher.On("Hash", isSessionSecret).Return("$argon2id$session", nil)
		f.sessions.On("Create", ctx, mock.AnythingOfType("*auth.SessionToken")).Return(nil)

		result, err := f.svc.Login(ctx, "alice", "p@ss1")
		require.NoError(t, err)
		require.True(t, result.LoggedIn())

		entry := decode(t, buf)
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "best-effort update failed", entry["msg"])
		assert.Equal(t, "auth_best_effort_failed", entry["event"])
		assert.Equal(t, "update_last_login", entry["operation"])
		assert.Equal(t, user.ID.String(), entry["user_id"])
		assert.Equal(t, "db down", entry["error"])
	})

	t.Run("session touch failure", func(t *testing.T) {
		f, buf := newLogged(t)
		userID := ulid.Make()
		id := f.liveSessionTouchFails(ctx, userID)

		ok, err := f.svc.CheckID(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		entry := decode(t, buf)
		assert.Equal(t, "touch_session", entry["operation"])
		assert.Equal(t, userID.String(), entry["user_id"])
	})

	t.Run("hash upgrade failure", func(t *testing.T) {
		f, buf := newLogged(t)
		legacy := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
		user := &auth.User{ID: ulid.Make(), PassHash: legacy}
		upgraded := "$argon2id$upgraded"

		f.users.On("GetByIdentifier", ctx, "alice").Return(user, nil)
		f.hasher.On("Verify", "p@ss1", legacy).Return(true, nil)
		f.hasher.On("NeedsUpgrade", legacy).Return(true)
		f.hasher.On("Hash", "p@ss1").Return(upgraded, nil)
		f.users.On("Update", ctx, user.ID, auth.UserChanges{PassHash: &upgraded}).Return(int64(0), errors.New("db down"))
		f.expectMint(ctx, user.ID)

		result, err := f.svc.Login(ctx, "alice", "p@ss1")
		require.NoError(t, err)
		assert.True(t, result.LoggedIn())

		entry := decode(t, buf)
		assert.Equal(t, "upgrade_hash", entry["operation"])
	})

	t.Run("nothing logged on the happy path", func(t *testing.T) {
		f, buf := newLogged(t)
		id := f.liveSession(ctx, ulid.Make())

		ok, err := f.svc.CheckID(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Empty(t, buf.String())
	})
}

// liveSessionTouchFails is liveSession with a failing Touch.
func (f *authFixture) liveSessionTouchFails(ctx context.Context, userID ulid.ULID) auth.AuthenticatedID {
	sessionID := ulid.Make()
	session := &auth.SessionToken{ID: sessionID, UserID: userID, TokenHash: "$argon2id$session"}
	f.sessions.On("Get", ctx, userID, sessionID).Return(session, nil)
	f.hasher.On("Verify", "secret", session.TokenHash).Return(true, nil)
	f.sessions.On("Touch", ctx, sessionID, mock.AnythingOfType("time.Time")).Return(errors.New("db down"))
	return auth.AuthenticatedID{UserID: userID, Token: auth.FormatSessionToken(sessionID, "secret")}
}
