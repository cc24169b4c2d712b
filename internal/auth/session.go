// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SessionSecretBytes is the entropy of a session secret (32 bytes = 64 hex chars).
const SessionSecretBytes = 32

// sessionTokenSep separates the session ID from the secret in a caller-visible token.
const sessionTokenSep = "."

// SessionToken is the stored proof of a prior successful authentication.
// Only the hash of the secret is kept; the plaintext is handed to the caller once.
type SessionToken struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	Created   time.Time
	LastUsed  time.Time
}

// NewSessionToken creates a validated SessionToken instance with a fresh ID.
func NewSessionToken(userID ulid.ULID, tokenHash string) (*SessionToken, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}

	now := time.Now()
	return &SessionToken{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		Created:   now,
		LastUsed:  now,
	}, nil
}

// AuthenticatedID is the session credential returned to callers, usable like
// a cookie on later requests.
type AuthenticatedID struct {
	UserID ulid.ULID
	Token  string
}

// GenerateSessionSecret creates a high-entropy random secret, hex encoded.
func GenerateSessionSecret() (string, error) {
	secret := make([]byte, SessionSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionSecretBytes).
			Wrap(err)
	}
	return hex.EncodeToString(secret), nil
}

// FormatSessionToken joins a session ID and its secret into the caller-visible token.
func FormatSessionToken(sessionID ulid.ULID, secret string) string {
	return sessionID.String() + sessionTokenSep + secret
}

// ParseSessionToken splits a caller-visible token into the session ID that
// selects the stored row and the secret that is verified against its hash.
func ParseSessionToken(token string) (ulid.ULID, string, error) {
	if token == "" {
		return ulid.ULID{}, "", oops.Code("SESSION_TOKEN_EMPTY").Errorf("session token cannot be empty")
	}
	idPart, secret, found := strings.Cut(token, sessionTokenSep)
	if !found || secret == "" {
		return ulid.ULID{}, "", oops.Code("SESSION_TOKEN_MALFORMED").Errorf("session token is malformed")
	}
	id, err := ulid.ParseStrict(idPart)
	if err != nil {
		return ulid.ULID{}, "", oops.Code("SESSION_TOKEN_MALFORMED").
			With("operation", "parse session id").
			Wrap(err)
	}
	return id, secret, nil
}

// SessionRepository manages session token persistence.
type SessionRepository interface {
	// Create stores a new session token.
	Create(ctx context.Context, session *SessionToken) error

	// Get retrieves the session with the given ID owned by userID.
	Get(ctx context.Context, userID, sessionID ulid.ULID) (*SessionToken, error)

	// ListByUser retrieves all sessions for a user, newest first.
	ListByUser(ctx context.Context, userID ulid.ULID) ([]*SessionToken, error)

	// Touch updates the LastUsed timestamp for a session.
	Touch(ctx context.Context, sessionID ulid.ULID, at time.Time) error

	// Delete removes a single session owned by userID.
	Delete(ctx context.Context, userID, sessionID ulid.ULID) error
}
