// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

// Package auth provides username/email + password authentication with
// opaque session tokens and a password reset workflow.
//
// # Domain Types
//
// Domain types (User, SessionToken, PasswordReset) should be created
// using their respective constructors:
//   - NewUser - creates a User with validated chosen name, email and password hash
//   - NewSessionToken - creates a SessionToken with validated user and token hash
//   - NewPasswordReset - creates a PasswordReset with validated user and optional expiry
//
// Secrets are hashed at rest. Passwords, session secrets and reset tokens are
// all compared through PasswordHasher.Verify.
//
// # Services
//
// Service types coordinate domain operations:
//   - Service - login, session checks, logout
//   - UserService - add, get, change and delete users
//   - PasswordResetService - reset token issue and redemption
//
// Declined operations (wrong password, unknown identifier, duplicate name)
// are reported through result values. Errors mean the operation could not run.
package auth
