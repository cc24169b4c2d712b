// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 pauth Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess  = "success"
	ResultDeclined = "declined"
	ResultError    = "error"
)

// Logins counts login and reset-redemption attempts by result.
// Use RegisterMetrics to register this with a Prometheus registry.
var Logins = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pauth_logins_total",
		Help: "Total number of login attempts by result",
	},
	[]string{"result"},
)

// SessionChecks counts session validations by result.
var SessionChecks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pauth_session_checks_total",
		Help: "Total number of session token checks by result",
	},
	[]string{"result"},
)

// UserMutations counts user lifecycle operations by operation and result.
var UserMutations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pauth_user_mutations_total",
		Help: "Total number of user add/change/delete operations by result",
	},
	[]string{"operation", "result"},
)

// PasswordResets counts reset token operations by operation and result.
var PasswordResets = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pauth_password_resets_total",
		Help: "Total number of password reset operations by result",
	},
	[]string{"operation", "result"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Logins)
	reg.MustRegister(SessionChecks)
	reg.MustRegister(UserMutations)
	reg.MustRegister(PasswordResets)
}

func resultLabel(ok bool, err error) string {
	switch {
	case err != nil:
		return ResultError
	case ok:
		return ResultSuccess
	default:
		return ResultDeclined
	}
}
