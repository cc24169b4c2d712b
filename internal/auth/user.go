// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MaxUsernameLength bounds a chosen name, counted in characters.
const MaxUsernameLength = 64

// MaxPasswordLength bounds the work a single hash can be asked to do.
const MaxPasswordLength = 1024

var validate = validator.New()

// User is an identity record.
type User struct {
	ID         ulid.ULID
	ChosenName string
	Email      string
	PassHash   string
	LastLogin  time.Time
	CreatedAt  time.Time
}

// NewUser creates a validated User with a fresh ID.
// passHash must already be the output of a PasswordHasher.
func NewUser(chosenName, email, passHash string) (*User, error) {
	if err := ValidateUsername(chosenName); err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passHash == "" {
		return nil, oops.Code("USER_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	now := time.Now()
	return &User{
		ID:         ulid.Make(),
		ChosenName: chosenName,
		Email:      email,
		PassHash:   passHash,
		LastLogin:  now,
		CreatedAt:  now,
	}, nil
}

// UserUpdate carries the caller's requested detail changes.
// Nil fields are left untouched.
type UserUpdate struct {
	ChosenName *string
	Email      *string
	Password   *string
}

// IsEmpty reports whether no field is set.
func (u UserUpdate) IsEmpty() bool {
	return u.ChosenName == nil && u.Email == nil && u.Password == nil
}

// WithChosenName returns a copy of u that sets the chosen name.
func (u UserUpdate) WithChosenName(name string) UserUpdate {
	u.ChosenName = &name
	return u
}

// WithEmail returns a copy of u that sets the email.
func (u UserUpdate) WithEmail(email string) UserUpdate {
	u.Email = &email
	return u
}

// WithPassword returns a copy of u that sets a new password.
func (u UserUpdate) WithPassword(password string) UserUpdate {
	u.Password = &password
	return u
}

// UserChanges is the persisted form of a UserUpdate: the password has been
// replaced by its hash. Nil fields are not written.
type UserChanges struct {
	ChosenName *string
	Email      *string
	PassHash   *string
}

// ValidateUsername checks a chosen name. Any non-empty UTF-8 text of at most
// MaxUsernameLength characters is accepted except '@': a chosen name can
// then never equal an email address, so an identifier resolves to at most
// one user.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if !utf8.ValidString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username must be valid UTF-8")
	}
	if n := utf8.RuneCountInString(username); n > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			With("length", n).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if strings.ContainsRune(username, '@') {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot contain '@'")
	}
	return nil
}

// ValidateEmail checks that email is a syntactically valid address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("AUTH_INVALID_EMAIL").Errorf("email cannot be empty")
	}
	if err := validate.Var(email, "email,max=254"); err != nil {
		return oops.Code("AUTH_INVALID_EMAIL").
			With("email", email).
			Errorf("email is not a valid address")
	}
	return nil
}

// ValidatePassword checks a plaintext password before hashing.
func ValidatePassword(password string) error {
	if password == "" {
		return oops.Code("AUTH_INVALID_PASSWORD").Errorf("password cannot be empty")
	}
	if len(password) > MaxPasswordLength {
		return oops.Code("AUTH_INVALID_PASSWORD").
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user. Returns ErrChosenNameTaken or ErrEmailTaken
	// when the store's unique constraints reject the row.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// GetByIdentifier retrieves the user whose chosen name or email equals identifier.
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)

	// FindConflict returns the first user whose chosen name equals name or
	// whose email equals email. Returns ErrNotFound if there is none.
	FindConflict(ctx context.Context, name, email string) (*User, error)

	// Update writes the non-nil fields of changes and returns the rows affected.
	// Returns ErrChosenNameTaken or ErrEmailTaken on a uniqueness conflict.
	Update(ctx context.Context, id ulid.ULID, changes UserChanges) (int64, error)

	// UpdateLastLogin sets the last login time.
	UpdateLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// DeleteMatching deletes the user only if its stored hash still equals
	// passHash, returning the rows affected. Sessions and reset tokens cascade.
	DeleteMatching(ctx context.Context, id ulid.ULID, passHash string) (int64, error)
}
