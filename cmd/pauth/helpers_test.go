// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package main

import (
	"os"

	"github.com/pauth/pauth/internal/store"
)

func writeFile(path, body string) error {
	return os.WriteFile(path, []byte(body), 0o600)
}

// fakeMigrator implements Migrator for testing.
type fakeMigrator struct {
	url        string
	status     store.Status
	upCalled   bool
	downCalled bool
	steps      []int
	forced     []int
	closed     bool
	upErr      error
	closeErr   error
}

func (m *fakeMigrator) Up() error {
	m.upCalled = true
	return m.upErr
}

func (m *fakeMigrator) Down() error {
	m.downCalled = true
	return nil
}

func (m *fakeMigrator) Steps(n int) error {
	m.steps = append(m.steps, n)
	return nil
}

func (m *fakeMigrator) Force(version int) error {
	m.forced = append(m.forced, version)
	return nil
}

func (m *fakeMigrator) Status() (store.Status, error) {
	return m.status, nil
}

func (m *fakeMigrator) Close() error {
	m.closed = true
	return m.closeErr
}
