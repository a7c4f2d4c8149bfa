// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines domain models and types used throughout the
// application including User, Content, and event log structures.
package model

import (
	"database/sql"
	"time"
)

// Role is the closed set of user roles. Authorization decisions compare
// against this type rather than raw strings scattered across handlers.
type Role string

// User roles.
const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Allowed reports whether the role is one of the given roles.
func (r Role) Allowed(roles ...Role) bool {
	for _, allowed := range roles {
		if r == allowed {
			return true
		}
	}
	return false
}

// User represents a site account.
type User struct {
	ID           int64        `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"` // Never expose in JSON
	Role         Role         `json:"role"`
	Name         string       `json:"name"`
	IsActive     bool         `json:"is_active"`
	FailedLogins int64        `json:"-"`
	LockedUntil  sql.NullTime `json:"-"`
	LastLoginAt  sql.NullTime `json:"last_login_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsAdmin returns true if the user may manage content.
func (u *User) IsAdmin() bool {
	return u.Role.Allowed(RoleAdmin, RoleSuperAdmin)
}

// IsSuperAdmin returns true if the user holds the super-admin role.
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// IsLocked reports whether a login lockout is currently in effect.
func (u *User) IsLocked() bool {
	return u.LockedUntil.Valid && u.LockedUntil.Time.After(time.Now())
}
