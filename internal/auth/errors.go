// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrChosenNameTaken is returned by UserRepository when the store rejects a
// write because another user already has the chosen name.
var ErrChosenNameTaken = errors.New("chosen name already in use")

// ErrEmailTaken is returned by UserRepository when the store rejects a write
// because another user already has the email.
var ErrEmailTaken = errors.New("email already in use")

// ErrStoreUnavailable marks failures to obtain a store connection (pool
// exhausted, closed or unreachable), as opposed to a statement failing.
var ErrStoreUnavailable = errors.New("credential store unavailable")

// ErrInvariant marks a violated internal contract, such as an update that
// matched no row for a user whose existence was already confirmed.
var ErrInvariant = errors.New("application invariant violated")
