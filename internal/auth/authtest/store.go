// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

// Package authtest provides an in-memory store implementing the auth
// repository contracts, for tests that exercise services end to end.
package authtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pauth/pauth/internal/auth"
)

// Store holds users, sessions and reset tokens in memory. It enforces the
// same uniqueness and cascade rules as the postgres schema.
type Store struct {
	mu       sync.Mutex
	users    map[ulid.ULID]auth.User
	sessions map[ulid.ULID]auth.SessionToken
	resets   map[ulid.ULID]auth.PasswordReset
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		users:    make(map[ulid.ULID]auth.User),
		sessions: make(map[ulid.ULID]auth.SessionToken),
		resets:   make(map[ulid.ULID]auth.PasswordReset),
	}
}

// Users returns a UserRepository backed by s.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

// Sessions returns a SessionRepository backed by s.
func (s *Store) Sessions() *SessionRepository { return &SessionRepository{s: s} }

// Resets returns a PasswordResetRepository backed by s.
func (s *Store) Resets() *PasswordResetRepository { return &PasswordResetRepository{s: s} }

// SessionCount returns the number of stored sessions of userID.
func (s *Store) SessionCount(userID ulid.ULID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			n++
		}
	}
	return n
}

// ResetCount returns the number of stored reset tokens of userID.
func (s *Store) ResetCount(userID ulid.ULID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.resets {
		if r.UserID == userID {
			n++
		}
	}
	return n
}

// lookup must be called with mu held.
func (s *Store) lookup(identifier string) (auth.User, bool) {
	for _, u := range s.users {
		if u.ChosenName == identifier || u.Email == identifier {
			return u, true
		}
	}
	return auth.User{}, false
}

// uniqueViolation must be called with mu held. It reports which unique
// column, if any, another user already holds.
func (s *Store) uniqueViolation(self ulid.ULID, name, email *string) error {
	for id, u := range s.users {
		if id == self {
			continue
		}
		if name != nil && u.ChosenName == *name {
			return auth.ErrChosenNameTaken
		}
		if email != nil && u.Email == *email {
			return auth.ErrEmailTaken
		}
	}
	return nil
}

// UserRepository is the in-memory auth.UserRepository.
type UserRepository struct{ s *Store }

// Create implements auth.UserRepository.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.uniqueViolation(user.ID, &user.ChosenName, &user.Email); err != nil {
		return err
	}
	r.s.users[user.ID] = *user
	return nil
}

// GetByID implements auth.UserRepository.
func (r *UserRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

// GetByIdentifier implements auth.UserRepository.
func (r *UserRepository) GetByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.lookup(identifier)
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &u, nil
}

// FindConflict implements auth.UserRepository.
func (r *UserRepository) FindConflict(_ context.Context, name, email string) (*auth.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var byName *auth.User
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
		if byName == nil && u.ChosenName == name {
			byName = &u
		}
	}
	if byName != nil {
		return byName, nil
	}
	return nil, auth.ErrNotFound
}

// Update implements auth.UserRepository.
func (r *UserRepository) Update(_ context.Context, id ulid.ULID, changes auth.UserChanges) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return 0, nil
	}
	if err := r.s.uniqueViolation(id, changes.ChosenName, changes.Email); err != nil {
		return 0, err
	}
	if changes.ChosenName != nil {
		u.ChosenName = *changes.ChosenName
	}
	if changes.Email != nil {
		u.Email = *changes.Email
	}
	if changes.PassHash != nil {
		u.PassHash = *changes.PassHash
	}
	r.s.users[id] = u
	return 1, nil
}

// UpdateLastLogin implements auth.UserRepository.
func (r *UserRepository) UpdateLastLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.LastLogin = at
	r.s.users[id] = u
	return nil
}

// DeleteMatching implements auth.UserRepository.
func (r *UserRepository) DeleteMatching(_ context.Context, id ulid.ULID, passHash string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || u.PassHash != passHash {
		return 0, nil
	}
	delete(r.s.users, id)
	for sid, sess := range r.s.sessions {
		if sess.UserID == id {
			delete(r.s.sessions, sid)
		}
	}
	for rid, reset := range r.s.resets {
		if reset.UserID == id {
			delete(r.s.resets, rid)
		}
	}
	return 1, nil
}

// SessionRepository is the in-memory auth.SessionRepository.
type SessionRepository struct{ s *Store }

// Create implements auth.SessionRepository.
func (r *SessionRepository) Create(_ context.Context, session *auth.SessionToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[session.UserID]; !ok {
		return auth.ErrNotFound
	}
	r.s.sessions[session.ID] = *session
	return nil
}

// Get implements auth.SessionRepository.
func (r *SessionRepository) Get(_ context.Context, userID, sessionID ulid.ULID) (*auth.SessionToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return nil, auth.ErrNotFound
	}
	return &sess, nil
}

// ListByUser implements auth.SessionRepository.
func (r *SessionRepository) ListByUser(_ context.Context, userID ulid.ULID) ([]*auth.SessionToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*auth.SessionToken
	for _, sess := range r.s.sessions {
		if sess.UserID == userID {
			out = append(out, &sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Compare(out[j].ID) > 0 })
	return out, nil
}

// Touch implements auth.SessionRepository.
func (r *SessionRepository) Touch(_ context.Context, sessionID ulid.ULID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[sessionID]
	if !ok {
		return auth.ErrNotFound
	}
	sess.LastUsed = at
	r.s.sessions[sessionID] = sess
	return nil
}

// Delete implements auth.SessionRepository.
func (r *SessionRepository) Delete(_ context.Context, userID, sessionID ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return auth.ErrNotFound
	}
	delete(r.s.sessions, sessionID)
	return nil
}

// PasswordResetRepository is the in-memory auth.PasswordResetRepository.
type PasswordResetRepository struct{ s *Store }

// Create implements auth.PasswordResetRepository.
func (r *PasswordResetRepository) Create(_ context.Context, reset *auth.PasswordReset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[reset.UserID]; !ok {
		return auth.ErrNotFound
	}
	r.s.resets[reset.ID] = *reset
	return nil
}

// FindValid implements auth.PasswordResetRepository.
func (r *PasswordResetRepository) FindValid(_ context.Context, identifier string, now time.Time) ([]*auth.PasswordReset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.lookup(identifier)
	if !ok {
		return nil, nil
	}
	var out []*auth.PasswordReset
	for _, reset := range r.s.resets {
		if reset.UserID == u.ID && !reset.IsExpiredAt(now) {
			out = append(out, &reset)
		}
	}
	return out, nil
}

// Delete implements auth.PasswordResetRepository.
func (r *PasswordResetRepository) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.resets[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.s.resets, id)
	return nil
}

// DeleteExpired implements auth.PasswordResetRepository.
func (r *PasswordResetRepository) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, reset := range r.s.resets {
		if reset.IsExpiredAt(now) {
			delete(r.s.resets, id)
			n++
		}
	}
	return n, nil
}

var (
	_ auth.UserRepository          = (*UserRepository)(nil)
	_ auth.SessionRepository       = (*SessionRepository)(nil)
	_ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
)
