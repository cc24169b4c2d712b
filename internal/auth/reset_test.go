// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauth/pauth/internal/auth"
	"github.com/pauth/pauth/pkg/errutil"
)

func TestGenerateResetToken(t *testing.T) {
	alphanumeric := regexp.MustCompile(`^[A-Za-z0-9]+$`)

	t.Run("generates 20 alphanumeric characters", func(t *testing.T) {
		token, err := auth.GenerateResetToken()
		require.NoError(t, err)
		assert.Len(t, token, auth.ResetTokenLength)
		assert.Regexp(t, alphanumeric, token)
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		seen := make(map[string]struct{})
		for range 100 {
			token, err := auth.GenerateResetToken()
			require.NoError(t, err)
			_, dup := seen[token]
			require.False(t, dup, "duplicate token %s", token)
			seen[token] = struct{}{}
		}
	})
}

func TestNewPasswordReset(t *testing.T) {
	t.Run("creates reset without expiry", func(t *testing.T) {
		userID := ulid.Make()
		reset, err := auth.NewPasswordReset(userID, "hash", nil)
		require.NoError(t, err)
		assert.Equal(t, userID, reset.UserID)
		assert.Nil(t, reset.ExpiresAt)
		assert.NotEqual(t, ulid.ULID{}, reset.ID)
	})

	t.Run("rejects zero user id", func(t *testing.T) {
		_, err := auth.NewPasswordReset(ulid.ULID{}, "hash", nil)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RESET_INVALID_USER")
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		_, err := auth.NewPasswordReset(ulid.Make(), "", nil)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "RESET_INVALID_HASH")
	})
}

func TestPasswordReset_IsExpiredAt(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("nil expiry never expires", func(t *testing.T) {
		reset := &auth.PasswordReset{}
		assert.False(t, reset.IsExpiredAt(now.Add(100*365*24*time.Hour)))
	})

	t.Run("not expired before expiry", func(t *testing.T) {
		expires := now.Add(time.Minute)
		reset := &auth.PasswordReset{ExpiresAt: &expires}
		assert.False(t, reset.IsExpiredAt(now))
	})

	t.Run("expired at the expiry instant", func(t *testing.T) {
		expires := now
		reset := &auth.PasswordReset{ExpiresAt: &expires}
		assert.True(t, reset.IsExpiredAt(now))
	})

	t.Run("expired after expiry", func(t *testing.T) {
		expires := now.Add(-time.Second)
		reset := &auth.PasswordReset{ExpiresAt: &expires}
		assert.True(t, reset.IsExpiredAt(now))
	})
}
