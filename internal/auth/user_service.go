// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// UserService creates, reads, updates and deletes user records. Every
// mutation of an existing user is gated by a valid session.
type UserService struct {
	auth    *Service
	users   UserRepository
	details detailsWriter
}

// NewUserService creates a new UserService. authSvc supplies session checks
// and the implicit login performed after a user is added.
func NewUserService(authSvc *Service, users UserRepository, hasher PasswordHasher) (*UserService, error) {
	if authSvc == nil {
		return nil, oops.Code("USER_INVALID_CONFIG").Errorf("auth service is required")
	}
	if users == nil {
		return nil, oops.Code("USER_INVALID_CONFIG").Errorf("users repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("USER_INVALID_CONFIG").Errorf("password hasher is required")
	}
	return &UserService{
		auth:    authSvc,
		users:   users,
		details: detailsWriter{users: users, hasher: hasher},
	}, nil
}

// AddUser creates a user and logs it in, returning the initial session.
//
// Only the first detected conflict is reported: a request whose name and
// email are both taken by different users gets a single failure.
func (s *UserService) AddUser(ctx context.Context, name, email, password string) (AddUserResult, error) {
	result, err := s.addUser(ctx, name, email, password)
	UserMutations.WithLabelValues("add", resultLabel(result.Added(), err)).Inc()
	return result, err
}

func (s *UserService) addUser(ctx context.Context, name, email, password string) (AddUserResult, error) {
	if failures := validateNewUser(name, email, password); len(failures) > 0 {
		return AddUserResult{Failures: failures}, nil
	}

	// The pre-check only spares a hash computation; the unique constraints
	// in the store decide, and Create reports their violation below.
	conflict, err := s.users.FindConflict(ctx, name, email)
	switch {
	case err == nil:
		if conflict.Email == email {
			return notAdded(EmailExists, "email already in use"), nil
		}
		return notAdded(UsernameExists, "username already in use"), nil
	case !errors.Is(err, ErrNotFound):
		return AddUserResult{}, oops.Code("USER_ADD_FAILED").
			With("operation", "find conflicting user").
			Wrap(err)
	}

	passHash, err := s.details.hasher.Hash(password)
	if err != nil {
		return AddUserResult{}, oops.Code("USER_ADD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(name, email, passHash)
	if err != nil {
		return AddUserResult{}, oops.Code("USER_ADD_FAILED").
			With("operation", "new user").
			Wrap(err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			return notAdded(EmailExists, "email already in use"), nil
		case errors.Is(err, ErrChosenNameTaken):
			return notAdded(UsernameExists, "username already in use"), nil
		}
		return AddUserResult{}, oops.Code("USER_ADD_FAILED").
			With("operation", "insert user").
			With("chosen_name", name).
			Wrap(err)
	}

	login, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return AddUserResult{}, oops.Code("USER_ADD_FAILED").
			With("operation", "implicit login").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if !login.LoggedIn() {
		return AddUserResult{}, oops.Code("USER_ADD_LOGIN_FAILED").
			With("user_id", user.ID.String()).
			Wrapf(ErrInvariant, "unable to log in after creating user")
	}

	return AddUserResult{Session: login.Session}, nil
}

// GetUser returns the user behind id, or nil if id is not a live session.
func (s *UserService) GetUser(ctx context.Context, id AuthenticatedID) (*User, error) {
	ok, err := s.auth.CheckID(ctx, id)
	if err != nil || !ok {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by id").
			With("user_id", id.UserID.String()).
			Wrap(err)
	}
	return user, nil
}

// ChangeDetails applies the set fields of update after re-checking the
// session and the current password.
func (s *UserService) ChangeDetails(ctx context.Context, id AuthenticatedID, password string, update UserUpdate) (ChangeDetailsResult, error) {
	result, err := s.changeDetails(ctx, id, password, update)
	UserMutations.WithLabelValues("change", resultLabel(result.Status == DetailsChanged, err)).Inc()
	return result, err
}

func (s *UserService) changeDetails(ctx context.Context, id AuthenticatedID, password string, update UserUpdate) (ChangeDetailsResult, error) {
	ok, err := s.auth.CheckIDAndPassword(ctx, id, password)
	if err != nil {
		return ChangeDetailsResult{}, err
	}
	if !ok {
		return ChangeDetailsResult{Status: DetailsAuthenticationFailure}, nil
	}
	return s.details.apply(ctx, id.UserID, update)
}

// DeleteUser removes the user behind id if password is its current password.
// Sessions and reset tokens of the user are removed with it.
func (s *UserService) DeleteUser(ctx context.Context, id AuthenticatedID, password string) (DeleteUserResult, error) {
	result, err := s.deleteUser(ctx, id, password)
	UserMutations.WithLabelValues("delete", resultLabel(result == UserDeleted, err)).Inc()
	return result, err
}

func (s *UserService) deleteUser(ctx context.Context, id AuthenticatedID, password string) (DeleteUserResult, error) {
	ok, err := s.auth.CheckID(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return UserDeleteAuthFailure, nil
	}

	user, valid, err := s.auth.verifyUserPassword(ctx, id.UserID, password)
	if err != nil {
		return 0, err
	}
	if !valid {
		return UserNotFound, nil
	}

	// Matching on the verified hash makes a concurrent password change turn
	// this delete into a no-op.
	rows, err := s.users.DeleteMatching(ctx, user.ID, user.PassHash)
	if err != nil {
		return 0, oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("user_id", user.ID.String()).
			Wrap(err)
	}
	if rows == 0 {
		return UserNotFound, nil
	}
	return UserDeleted, nil
}

// detailsWriter validates and persists a UserUpdate. It is shared by the
// session-gated and reset-token-gated change paths.
type detailsWriter struct {
	users  UserRepository
	hasher PasswordHasher
}

func (w detailsWriter) apply(ctx context.Context, userID ulid.ULID, update UserUpdate) (ChangeDetailsResult, error) {
	if failures := validateUpdate(update); len(failures) > 0 {
		return ChangeDetailsResult{Status: DetailsNotChanged, Failures: failures}, nil
	}
	if update.IsEmpty() {
		return ChangeDetailsResult{Status: DetailsNotChanged}, nil
	}

	changes := UserChanges{ChosenName: update.ChosenName, Email: update.Email}
	if update.Password != nil {
		passHash, err := w.hasher.Hash(*update.Password)
		if err != nil {
			return ChangeDetailsResult{}, oops.Code("USER_UPDATE_FAILED").
				With("operation", "hash password").
				Wrap(err)
		}
		changes.PassHash = &passHash
	}

	rows, err := w.users.Update(ctx, userID, changes)
	if err != nil {
		switch {
		case errors.Is(err, ErrChosenNameTaken):
			return notChanged(UsernameExists, "username already in use"), nil
		case errors.Is(err, ErrEmailTaken):
			return notChanged(EmailExists, "email already in use"), nil
		}
		return ChangeDetailsResult{}, oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("user_id", userID.String()).
			Wrap(err)
	}
	if rows == 0 {
		return ChangeDetailsResult{}, oops.Code("USER_UPDATE_NO_ROWS").
			With("user_id", userID.String()).
			Wrapf(ErrInvariant, "tried to update, but updated no rows")
	}
	return ChangeDetailsResult{Status: DetailsChanged}, nil
}

func validateNewUser(name, email, password string) []UserActionFailure {
	var failures []UserActionFailure
	if err := ValidateUsername(name); err != nil {
		failures = append(failures, failureFrom(UsernameInvalid, err))
	}
	if err := ValidateEmail(email); err != nil {
		failures = append(failures, failureFrom(EmailInvalid, err))
	}
	if err := ValidatePassword(password); err != nil {
		failures = append(failures, failureFrom(PasswordInvalid, err))
	}
	return failures
}

func validateUpdate(update UserUpdate) []UserActionFailure {
	var failures []UserActionFailure
	if update.ChosenName != nil {
		if err := ValidateUsername(*update.ChosenName); err != nil {
			failures = append(failures, failureFrom(UsernameInvalid, err))
		}
	}
	if update.Email != nil {
		if err := ValidateEmail(*update.Email); err != nil {
			failures = append(failures, failureFrom(EmailInvalid, err))
		}
	}
	if update.Password != nil {
		if err := ValidatePassword(*update.Password); err != nil {
			failures = append(failures, failureFrom(PasswordInvalid, err))
		}
	}
	return failures
}

func failureFrom(kind FailureKind, err error) UserActionFailure {
	return UserActionFailure{Kind: kind, Reason: err.Error()}
}

func notAdded(kind FailureKind, reason string) AddUserResult {
	return AddUserResult{Failures: []UserActionFailure{{Kind: kind, Reason: reason}}}
}

func notChanged(kind FailureKind, reason string) ChangeDetailsResult {
	return ChangeDetailsResult{
		Status:   DetailsNotChanged,
		Failures: []UserActionFailure{{Kind: kind, Reason: reason}},
	}
}
