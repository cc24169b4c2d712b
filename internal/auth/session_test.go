// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth_test

import (
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauth/pauth/internal/auth"
	"github.com/pauth/pauth/pkg/errutil"
)

func TestGenerateSessionSecret(t *testing.T) {
	t.Run("generates 32 random bytes hex encoded", func(t *testing.T) {
		secret, err := auth.GenerateSessionSecret()
		require.NoError(t, err)
		assert.Len(t, secret, 64)
	})

	t.Run("generates unique secrets", func(t *testing.T) {
		secret1, err := auth.GenerateSessionSecret()
		require.NoError(t, err)
		secret2, err := auth.GenerateSessionSecret()
		require.NoError(t, err)
		assert.NotEqual(t, secret1, secret2)
	})
}

func TestSessionTokenFormat(t *testing.T) {
	t.Run("round trips session id and secret", func(t *testing.T) {
		id := ulid.Make()
		token := auth.FormatSessionToken(id, "deadbeef")

		gotID, gotSecret, err := auth.ParseSessionToken(token)
		require.NoError(t, err)
		assert.Equal(t, id, gotID)
		assert.Equal(t, "deadbeef", gotSecret)
	})

	tests := []struct {
		name  string
		token string
		code  string
	}{
		{name: "empty token", token: "", code: "SESSION_TOKEN_EMPTY"},
		{name: "missing separator", token: ulid.Make().String(), code: "SESSION_TOKEN_MALFORMED"},
		{name: "missing secret", token: ulid.Make().String() + ".", code: "SESSION_TOKEN_MALFORMED"},
		{name: "invalid session id", token: "not-a-ulid.deadbeef", code: "SESSION_TOKEN_MALFORMED"},
		{name: "legacy uuid cookie", token: "0b6c9a8e-5f7d-4a52-9a0e-0b3b7f2b9e10", code: "SESSION_TOKEN_MALFORMED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := auth.ParseSessionToken(tt.token)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestNewSessionToken(t *testing.T) {
	t.Run("creates session with fresh id and timestamps", func(t *testing.T) {
		userID := ulid.Make()
		session, err := auth.NewSessionToken(userID, "hash")
		require.NoError(t, err)
		assert.NotEqual(t, ulid.ULID{}, session.ID)
		assert.Equal(t, userID, session.UserID)
		assert.Equal(t, "hash", session.TokenHash)
		assert.False(t, session.Created.IsZero())
		assert.Equal(t, session.Created, session.LastUsed)
	})

	t.Run("two sessions for the same user get distinct ids", func(t *testing.T) {
		userID := ulid.Make()
		s1, err := auth.NewSessionToken(userID, "hash")
		require.NoError(t, err)
		s2, err := auth.NewSessionToken(userID, "hash")
		require.NoError(t, err)
		assert.NotEqual(t, s1.ID, s2.ID)
		assert.NotEqual(t,
			auth.FormatSessionToken(s1.ID, "x"),
			auth.FormatSessionToken(s2.ID, "x"))
	})

	t.Run("rejects zero user id", func(t *testing.T) {
		_, err := auth.NewSessionToken(ulid.ULID{}, "hash")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_USER")
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		_, err := auth.NewSessionToken(ulid.Make(), "")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_HASH")
	})

	t.Run("token never contains the hash", func(t *testing.T) {
		session, err := auth.NewSessionToken(ulid.Make(), "$argon2id$stored")
		require.NoError(t, err)
		token := auth.FormatSessionToken(session.ID, "secret")
		assert.False(t, strings.Contains(token, session.TokenHash))
	})
}
