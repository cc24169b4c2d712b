// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth

// LoginResult is the outcome of a credential check that mints a session.
// Session is nil when the credentials were rejected.
type LoginResult struct {
	Session *AuthenticatedID
}

// LoggedIn reports whether a session was issued.
func (r LoginResult) LoggedIn() bool {
	return r.Session != nil
}

// FailureKind names why a user mutation was declined.
type FailureKind string

// Failure kinds reported in AddUserResult and ChangeDetailsResult.
const (
	UsernameExists  FailureKind = "username_exists"
	EmailExists     FailureKind = "email_exists"
	UsernameInvalid FailureKind = "username_invalid"
	EmailInvalid    FailureKind = "email_invalid"
	PasswordInvalid FailureKind = "password_invalid"
)

// UserActionFailure is one reason a user mutation was declined.
type UserActionFailure struct {
	Kind   FailureKind
	Reason string
}

// AddUserResult is the outcome of AddUser. Session is set when the user was
// added; otherwise Failures lists why not.
type AddUserResult struct {
	Session  *AuthenticatedID
	Failures []UserActionFailure
}

// Added reports whether the user was created.
func (r AddUserResult) Added() bool {
	return r.Session != nil
}

// ChangeDetailsStatus enumerates ChangeDetails outcomes.
type ChangeDetailsStatus int

// ChangeDetails outcomes.
const (
	DetailsChanged ChangeDetailsStatus = iota + 1
	DetailsNotChanged
	DetailsAuthenticationFailure
)

func (s ChangeDetailsStatus) String() string {
	switch s {
	case DetailsChanged:
		return "changed"
	case DetailsNotChanged:
		return "not_changed"
	case DetailsAuthenticationFailure:
		return "authentication_failure"
	default:
		return "unknown"
	}
}

// ChangeDetailsResult is the outcome of a detail change. Failures is only
// populated for DetailsNotChanged.
type ChangeDetailsResult struct {
	Status   ChangeDetailsStatus
	Failures []UserActionFailure
}

// DeleteUserResult enumerates DeleteUser outcomes.
type DeleteUserResult int

// DeleteUser outcomes.
const (
	UserDeleted DeleteUserResult = iota + 1
	UserDeleteAuthFailure
	UserNotFound
)

func (r DeleteUserResult) String() string {
	switch r {
	case UserDeleted:
		return "deleted"
	case UserDeleteAuthFailure:
		return "auth_failure"
	case UserNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}
