// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ResetTokenLength is the number of alphanumeric characters in a reset token
// (about 119 bits of entropy).
const ResetTokenLength = 20

const resetTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// PasswordReset represents a password reset request.
type PasswordReset struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	TokenHash string
	ExpiresAt *time.Time // nil never expires
	CreatedAt time.Time
}

// NewPasswordReset creates a validated PasswordReset instance.
func NewPasswordReset(userID ulid.ULID, tokenHash string, expiresAt *time.Time) (*PasswordReset, error) {
	if userID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("RESET_INVALID_USER").Errorf("user ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("RESET_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	return &PasswordReset{
		ID:        ulid.Make(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// IsExpiredAt returns true if the reset would be expired at the given time.
func (r *PasswordReset) IsExpiredAt(t time.Time) bool {
	return r.ExpiresAt != nil && !t.Before(*r.ExpiresAt)
}

// GenerateResetToken creates a random alphanumeric token of ResetTokenLength characters.
// The plaintext is delivered to the user out of band; only its hash is stored.
func GenerateResetToken() (string, error) {
	alphabetLen := big.NewInt(int64(len(resetTokenAlphabet)))
	token := make([]byte, ResetTokenLength)
	for i := range token {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
		}
		token[i] = resetTokenAlphabet[n.Int64()]
	}
	return string(token), nil
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Create stores a new password reset request.
	Create(ctx context.Context, reset *PasswordReset) error

	// FindValid returns the resets belonging to the user identified by
	// identifier (chosen name or email) that are unexpired at now.
	FindValid(ctx context.Context, identifier string, now time.Time) ([]*PasswordReset, error)

	// Delete removes a password reset request.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteExpired removes all resets expired at now and returns the count.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
