// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// PasswordResetService issues password reset tokens and redeems them into
// fresh sessions or detail changes.
type PasswordResetService struct {
	auth      *Service
	users     UserRepository
	resets    PasswordResetRepository
	hasher    PasswordHasher
	details   detailsWriter
	logger    *slog.Logger
	now       func() time.Time
	singleUse bool
}

// ResetOption configures a PasswordResetService.
type ResetOption func(*PasswordResetService)

// WithSingleUse controls whether a reset token is deleted after it was used
// to change details. Validation alone never consumes a token.
func WithSingleUse(singleUse bool) ResetOption {
	return func(s *PasswordResetService) {
		s.singleUse = singleUse
	}
}

// WithResetLogger sets the logger for best-effort failures.
func WithResetLogger(logger *slog.Logger) ResetOption {
	return func(s *PasswordResetService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithResetClock overrides the time source used for expiry checks.
func WithResetClock(now func() time.Time) ResetOption {
	return func(s *PasswordResetService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewPasswordResetService creates a new PasswordResetService.
// Reset tokens are single-use by default.
func NewPasswordResetService(
	authSvc *Service,
	users UserRepository,
	resets PasswordResetRepository,
	hasher PasswordHasher,
	opts ...ResetOption,
) (*PasswordResetService, error) {
	if authSvc == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("auth service is required")
	}
	if users == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("users repository is required")
	}
	if resets == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("resets repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_INVALID_CONFIG").Errorf("password hasher is required")
	}

	s := &PasswordResetService{
		auth:      authSvc,
		users:     users,
		resets:    resets,
		hasher:    hasher,
		details:   detailsWriter{users: users, hasher: hasher},
		logger:    slog.Default(),
		now:       time.Now,
		singleUse: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GeneratePwReset issues a reset token for the user named by identifier.
// Returns the plaintext token for out-of-band delivery (sending it is NOT this
// service's job). An unknown identifier returns ok=false and no error.
// A nil expires creates a token that never expires.
func (s *PasswordResetService) GeneratePwReset(ctx context.Context, identifier string, expires *time.Time) (token string, ok bool, err error) {
	defer func() {
		PasswordResets.WithLabelValues("generate", resultLabel(ok, err)).Inc()
	}()

	user, err := s.users.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by identifier").
			Wrap(err)
	}

	token, err = GenerateResetToken()
	if err != nil {
		return "", false, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	tokenHash, err := s.hasher.Hash(token)
	if err != nil {
		return "", false, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "hash reset token").
			Wrap(err)
	}

	reset, err := NewPasswordReset(user.ID, tokenHash, expires)
	if err != nil {
		return "", false, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "new password reset").
			Wrap(err)
	}

	if err := s.resets.Create(ctx, reset); err != nil {
		return "", false, oops.Code("RESET_REQUEST_FAILED").
			With("operation", "persist password reset").
			With("user_id", user.ID.String()).
			Wrap(err)
	}

	return token, true, nil
}

// ValidatePwReset redeems a reset token for a new session. The token stays
// usable until it expires or is consumed by ChangeDetailsWithPwResetToken.
func (s *PasswordResetService) ValidatePwReset(ctx context.Context, identifier, token string) (LoginResult, error) {
	result, err := s.validatePwReset(ctx, identifier, token)
	PasswordResets.WithLabelValues("validate", resultLabel(result.LoggedIn(), err)).Inc()
	return result, err
}

func (s *PasswordResetService) validatePwReset(ctx context.Context, identifier, token string) (LoginResult, error) {
	reset, err := s.findReset(ctx, identifier, token)
	if err != nil || reset == nil {
		return LoginResult{}, err
	}

	session, err := s.auth.mintSession(ctx, reset.UserID)
	if err != nil {
		return LoginResult{}, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "mint session").
			Wrap(err)
	}
	return LoginResult{Session: session}, nil
}

// ChangeDetailsWithPwResetToken applies update to the user named by
// identifier if token is one of its valid reset tokens. No session or old
// password is required.
func (s *PasswordResetService) ChangeDetailsWithPwResetToken(ctx context.Context, identifier, token string, update UserUpdate) (ChangeDetailsResult, error) {
	result, err := s.changeDetails(ctx, identifier, token, update)
	PasswordResets.WithLabelValues("change", resultLabel(result.Status == DetailsChanged, err)).Inc()
	return result, err
}

func (s *PasswordResetService) changeDetails(ctx context.Context, identifier, token string, update UserUpdate) (ChangeDetailsResult, error) {
	reset, err := s.findReset(ctx, identifier, token)
	if err != nil {
		return ChangeDetailsResult{}, err
	}
	if reset == nil {
		return ChangeDetailsResult{Status: DetailsAuthenticationFailure}, nil
	}

	result, err := s.details.apply(ctx, reset.UserID, update)
	if err != nil || result.Status != DetailsChanged {
		return result, err
	}

	if s.singleUse {
		// The details were already changed; a failed delete only leaves the
		// token redeemable until it expires.
		if err := s.resets.Delete(ctx, reset.ID); err != nil && !errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "best-effort update failed",
				"event", "auth_best_effort_failed",
				"operation", "consume_reset",
				"user_id", reset.UserID.String(),
				"error", err.Error(),
			)
		}
	}
	return result, nil
}

// findReset returns the unexpired reset of identifier's user whose hash
// verifies against token, or nil if there is none.
func (s *PasswordResetService) findReset(ctx context.Context, identifier, token string) (*PasswordReset, error) {
	if token == "" {
		return nil, nil
	}

	candidates, err := s.resets.FindValid(ctx, identifier, s.now())
	if err != nil {
		return nil, oops.Code("RESET_VALIDATE_FAILED").
			With("operation", "find valid resets").
			Wrap(err)
	}

	for _, candidate := range candidates {
		ok, err := s.hasher.Verify(token, candidate.TokenHash)
		if err != nil {
			return nil, oops.Code("RESET_VALIDATE_FAILED").
				With("operation", "verify reset token").
				With("reset_id", candidate.ID.String()).
				Wrap(err)
		}
		if ok {
			return candidate, nil
		}
	}
	return nil, nil
}

// PurgeExpired deletes reset tokens that have expired and returns how many were removed.
func (s *PasswordResetService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.resets.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, oops.Code("RESET_PURGE_FAILED").
			With("operation", "delete expired resets").
			Wrap(err)
	}
	return n, nil
}
