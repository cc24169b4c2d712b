// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pauth/pauth/pkg/errutil"
)

func TestCLI_UserLifecycle(t *testing.T) {
	h := newHarness(t)

	added := h.mustRun("user", "add", "--name", "alice", "--email", "alice@example.com", "--password", "pw-alice")
	require.NotEmpty(t, added["token"])
	userID := added["user_id"]

	login := h.mustRun("login", "--identifier", "alice@example.com", "--password", "pw-alice")
	assert.Equal(t, userID, login["user_id"])
	token := login["token"]

	h.mustRun("session", "check", "--user-id", userID, "--token", token)
	h.mustRun("session", "check", "--user-id", userID, "--token", token, "--password", "pw-alice")

	shown := h.mustRun("user", "show", "--user-id", userID, "--token", token)
	assert.Equal(t, "alice", shown["name"])
	assert.Equal(t, "alice@example.com", shown["email"])

	h.mustRun("user", "update", "--user-id", userID, "--token", token,
		"--password", "pw-alice", "--new-email", "alice@example.org")
	h.mustRun("login", "--identifier", "alice@example.org", "--password", "pw-alice")

	out, err := h.run("session", "list", "--user-id", userID, "--token", token)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3, "add, login and login each minted a session")

	h.mustRun("logout", "--user-id", userID, "--token", token)
	_, err = h.run("session", "check", "--user-id", userID, "--token", token)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_REJECTED")

	h.prompted = "pw-alice"
	h.mustRun("user", "delete", "--user-id", userID, "--token", added["token"])

	_, err = h.run("login", "--identifier", "alice", "--password", "pw-alice")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTHENTICATION_FAILED")
}

func TestCLI_PromptsForMissingPassword(t *testing.T) {
	h := newHarness(t)
	h.prompted = "prompted-pw"

	h.mustRun("user", "add", "--name", "alice", "--email", "alice@example.com")
	h.mustRun("login", "--identifier", "alice", "--password", "prompted-pw")
}

func TestCLI_AddUserDeclined(t *testing.T) {
	h := newHarness(t)
	h.mustRun("user", "add", "--name", "alice", "--email", "alice@example.com", "--password", "pw")

	_, err := h.run("user", "add", "--name", "alice", "--email", "alice@example.com", "--password", "pw")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "USER_NOT_ADDED")
	assert.Contains(t, err.Error(), "email_exists")

	_, err = h.run("user", "add", "--name", "a@b", "--email", "not-an-email", "--password", "pw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username_invalid")
	assert.Contains(t, err.Error(), "email_invalid")
}

func TestCLI_UpdateRequiresPassword(t *testing.T) {
	h := newHarness(t)
	added := h.mustRun("user", "add", "--name", "alice", "--email", "alice@example.com", "--password", "pw")

	_, err := h.run("user", "update", "--user-id", added["user_id"], "--token", added["token"],
		"--password", "wrong", "--new-name", "alicia")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTHENTICATION_FAILED")
}

func TestCLI_DeleteWithWrongPassword(t *testing.T) {
	h := newHarness(t)
	added := h.mustRun("user", "add", "--name", "alice", "--email", "alice@example.com", "--password", "pw")

	_, err := h.run("user", "delete", "--user-id", added["user_id"], "--token", added["token"], "--password", "wrong")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "USER_NOT_FOUND")
}

func TestCLI_InvalidUserID(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("session", "check", "--user-id", "not-a-ulid", "--token", "x")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "INVALID_USER_ID")
}

func TestCLI_ForgedSession(t *testing.T) {
	h := newHarness(t)
	added := h.mustRun("user", "add", "--name", "alice", "--email", "alice@example.com", "--password", "pw")

	forged := ulid.Make().String() + "." + strings.Repeat("ab", 32)
	_, err := h.run("user", "show", "--user-id", added["user_id"], "--token", forged)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SESSION_REJECTED")
}

func TestCLI_ResetFlow(t *testing.T) {
	h := newHarness(t)
	h.mustRun("user", "add", "--name", "alice", "--email", "alice@example.com", "--password", "old-pw")

	issued := h.mustRun("reset", "request", "--identifier", "alice", "--ttl", "1h")
	token := issued["reset_token"]
	require.Len(t, token, 20)
	assert.Equal(t, h.now.Add(time.Hour).Format(time.RFC3339), issued["expires"])

	redeemed := h.mustRun("reset", "redeem", "--identifier", "alice@example.com", "--token", token)
	assert.NotEmpty(t, redeemed["token"])

	h.mustRun("reset", "apply", "--identifier", "alice", "--token", token, "--new-password", "new-pw")
	h.mustRun("login", "--identifier", "alice", "--password", "new-pw")

	_, err := h.run("reset", "apply", "--identifier", "alice", "--token", token, "--new-password", "other")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTHENTICATION_FAILED")
}

func TestCLI_ResetReusableWhenConfigured(t *testing.T) {
	h := newHarness(t)
	t.Setenv("PAUTH_RESET__SINGLE_USE", "false")
	h.mustRun("user", "add", "--name", "alice", "--email", "alice@example.com", "--password", "old-pw")

	token := h.mustRun("reset", "request", "--identifier", "alice")["reset_token"]
	h.mustRun("reset", "apply", "--identifier", "alice", "--token", token, "--new-password", "pw-2")
	h.mustRun("reset", "apply", "--identifier", "alice", "--token", token, "--new-password", "pw-3")
	h.mustRun("login", "--identifier", "alice", "--password", "pw-3")
}

func TestCLI_ResetExpiry(t *testing.T) {
	h := newHarness(t)
	t.Setenv("PAUTH_RESET__DEFAULT_TTL", "30m")
	h.mustRun("user", "add", "--name", "alice", "--email", "alice@example.com", "--password", "pw")

	issued := h.mustRun("reset", "request", "--identifier", "alice")
	assert.Equal(t, h.now.Add(30*time.Minute).Format(time.RFC3339), issued["expires"])

	forever := h.mustRun("reset", "request", "--identifier", "alice", "--no-expiry")
	assert.Equal(t, "never", forever["expires"])

	h.now = h.now.Add(time.Hour)
	_, err := h.run("reset", "redeem", "--identifier", "alice", "--token", issued["reset_token"])
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "AUTHENTICATION_FAILED")

	h.mustRun("reset", "redeem", "--identifier", "alice", "--token", forever["reset_token"])

	purged := h.mustRun("reset", "purge")
	assert.Equal(t, "1", purged["purged"])
}

func TestCLI_ResetUnknownUser(t *testing.T) {
	h := newHarness(t)
	h.mustRun("user", "add", "--name", "alice", "--email", "alice@example.com", "--password", "pw")

	unknown, err := h.run("reset", "request", "--identifier", "nobody")
	require.NoError(t, err)
	assert.Equal(t, "Reset requested\n", unknown)

	known, err := h.run("reset", "request", "--identifier", "alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(known, "Reset requested\n"))
	assert.NotEmpty(t, parseOutput(known)["reset_token"])
	assert.Empty(t, parseOutput(unknown)["reset_token"])
}
