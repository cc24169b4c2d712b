// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Service provides authentication operations: login, session checks and logout.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	logger   *slog.Logger
	now      func() time.Time

	dummyHash string
}

// NewAuthService creates a new Service using the default logger.
func NewAuthService(users UserRepository, sessions SessionRepository, hasher PasswordHasher) (*Service, error) {
	return NewAuthServiceWithLogger(users, sessions, hasher, slog.Default())
}

// NewAuthServiceWithLogger creates a new Service that logs best-effort failures to logger.
func NewAuthServiceWithLogger(users UserRepository, sessions SessionRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("logger is required")
	}
	dummy := dummyPasswordHash
	if d, ok := hasher.(DummyHasher); ok {
		dummy = d.DummyHash()
	}
	return &Service{
		users:     users,
		sessions:  sessions,
		hasher:    hasher,
		logger:    logger,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// dummyPasswordHash is verified when a user doesn't exist so the response
// time matches a wrong password. Hashers implementing DummyHasher replace it
// with a hash carrying their own cost parameters. It never matches.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login authenticates identifier (chosen name or email) and password and mints
// a new session. Unknown identifiers and wrong passwords both yield a
// LoginResult without a session and a nil error.
func (s *Service) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	result, err := s.login(ctx, identifier, password)
	Logins.WithLabelValues(resultLabel(result.LoggedIn(), err)).Inc()
	return result, err
}

func (s *Service) login(ctx context.Context, identifier, password string) (LoginResult, error) {
	user, lookupErr := s.users.GetByIdentifier(ctx, identifier)

	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return LoginResult{}, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by identifier").
				Wrap(lookupErr)
		}
		targetHash = s.dummyHash
	} else {
		targetHash = user.PassHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !userExists {
			return LoginResult{}, nil
		}
		return LoginResult{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID.String()).
			Wrap(verifyErr)
	}

	if !userExists || !valid {
		return LoginResult{}, nil
	}

	if s.hasher.NeedsUpgrade(user.PassHash) {
		s.upgradeHash(ctx, user, password)
	}

	session, err := s.mintSession(ctx, user.ID)
	if err != nil {
		return LoginResult{}, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "mint session").
			Wrap(err)
	}
	return LoginResult{Session: session}, nil
}

// upgradeHash re-hashes a legacy password hash with the current algorithm.
// Login succeeds regardless of the outcome.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logBestEffort(ctx, "upgrade_hash", user.ID, err)
		return
	}
	if _, err := s.users.Update(ctx, user.ID, UserChanges{PassHash: &newHash}); err != nil {
		s.logBestEffort(ctx, "upgrade_hash", user.ID, err)
	}
}

// mintSession records a login for userID and issues a fresh session credential.
func (s *Service) mintSession(ctx context.Context, userID ulid.ULID) (*AuthenticatedID, error) {
	if err := s.users.UpdateLastLogin(ctx, userID, s.now()); err != nil {
		s.logBestEffort(ctx, "update_last_login", userID, err)
	}

	secret, err := GenerateSessionSecret()
	if err != nil {
		return nil, err
	}

	secretHash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, oops.Code("SESSION_HASH_FAILED").
			With("operation", "hash session secret").
			Wrap(err)
	}

	session, err := NewSessionToken(userID, secretHash)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", userID.String()).
			Wrap(err)
	}

	return &AuthenticatedID{
		UserID: userID,
		Token:  FormatSessionToken(session.ID, secret),
	}, nil
}

// CheckID reports whether id names a live session of its user.
// A successful check also updates the session's LastUsed timestamp.
func (s *Service) CheckID(ctx context.Context, id AuthenticatedID) (bool, error) {
	_, ok, err := s.checkSession(ctx, id)
	SessionChecks.WithLabelValues(resultLabel(ok, err)).Inc()
	return ok, err
}

func (s *Service) checkSession(ctx context.Context, id AuthenticatedID) (*SessionToken, bool, error) {
	sessionID, secret, err := ParseSessionToken(id.Token)
	if err != nil {
		return nil, false, nil
	}

	session, err := s.sessions.Get(ctx, id.UserID, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session").
			With("session_id", sessionID.String()).
			Wrap(err)
	}

	valid, err := s.hasher.Verify(secret, session.TokenHash)
	if err != nil {
		return nil, false, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "verify session secret").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	if !valid {
		return nil, false, nil
	}

	if err := s.sessions.Touch(ctx, session.ID, s.now()); err != nil {
		s.logBestEffort(ctx, "touch_session", id.UserID, err)
	}

	return session, true, nil
}

// CheckIDAndPassword reports whether id names a live session and password is
// the current password of its user.
func (s *Service) CheckIDAndPassword(ctx context.Context, id AuthenticatedID, password string) (bool, error) {
	ok, err := s.CheckID(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	_, ok, err = s.verifyUserPassword(ctx, id.UserID, password)
	return ok, err
}

// verifyUserPassword loads the user and checks password against its stored hash.
// A missing user is a mismatch, not an error.
func (s *Service) verifyUserPassword(ctx context.Context, userID ulid.ULID, password string) (*User, bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, oops.Code("AUTH_PASSWORD_CHECK_FAILED").
			With("operation", "get user by id").
			With("user_id", userID.String()).
			Wrap(err)
	}

	valid, err := s.hasher.Verify(password, user.PassHash)
	if err != nil {
		return nil, false, oops.Code("AUTH_PASSWORD_CHECK_FAILED").
			With("operation", "verify password").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return user, valid, nil
}

// Logout deletes the single session named by id. Other sessions of the same
// user stay valid. Returns false if id was not a live session.
func (s *Service) Logout(ctx context.Context, id AuthenticatedID) (bool, error) {
	session, ok, err := s.checkSession(ctx, id)
	if err != nil || !ok {
		return false, err
	}

	if err := s.sessions.Delete(ctx, id.UserID, session.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			With("session_id", session.ID.String()).
			Wrap(err)
	}
	return true, nil
}

// Sessions lists the sessions of the user behind id, or nil if id is not a live session.
func (s *Service) Sessions(ctx context.Context, id AuthenticatedID) ([]*SessionToken, error) {
	_, ok, err := s.checkSession(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	sessions, err := s.sessions.ListByUser(ctx, id.UserID)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "list sessions").
			With("user_id", id.UserID.String()).
			Wrap(err)
	}
	return sessions, nil
}

func (s *Service) logBestEffort(ctx context.Context, operation string, userID ulid.ULID, err error) {
	s.logger.WarnContext(ctx, "best-effort update failed",
		"event", "auth_best_effort_failed",
		"operation", operation,
		"user_id", userID.String(),
		"error", err.Error(),
	)
}
