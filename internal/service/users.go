// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/compassioncourse/ccms-go/internal/auth"
	"github.com/compassioncourse/ccms-go/internal/model"
	"github.com/compassioncourse/ccms-go/internal/store"
)

// Account lockout policy: 5 consecutive failures lock the account for
// 2 hours. An expired lockout restarts the counter at 1.
const (
	MaxFailedLogins = 5
	LockoutDuration = 2 * time.Hour
)

// Credential store failures.
var (
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials is deliberately shared by unknown-email and
	// wrong-password failures to prevent account enumeration.
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountLocked       = errors.New("account is temporarily locked")
	ErrAccountDisabled     = errors.New("account is deactivated")
	ErrUserNotFound        = errors.New("user not found")
	ErrSuperAdminImmutable = errors.New("super-admin accounts cannot be modified")
)

// UserService is the credential store: it owns account creation,
// verification, and the lockout counters.
type UserService struct {
	queries *store.Queries
	events  *EventService
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB, events *EventService) *UserService {
	return &UserService{
		queries: store.New(db),
		events:  events,
	}
}

// NormalizeEmail trims and lowercases an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account with the given role. The password is
// hashed before anything touches persistence.
func (s *UserService) Register(ctx context.Context, name, email, password string, role model.Role) (model.User, error) {
	email = NormalizeEmail(email)

	if _, err := s.queries.GetUserByEmail(ctx, email); err == nil {
		return model.User{}, ErrDuplicateEmail
	} else if !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("checking email: %w", err)
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return model.User{}, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user, err := s.queries.CreateUser(ctx, store.CreateUserParams{
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Name:         strings.TrimSpace(name),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// The unique index is the arbiter under concurrent registration.
		if store.IsUniqueViolation(err, "users.email") {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// Verify checks an email/password pair. On success the lockout counters are
// cleared and last_login_at is stamped. On a wrong password the failure
// counter advances, which may lock the account.
//
// Failure order matters: lockout is checked before the password, so a
// locked account answers ErrAccountLocked even to the correct secret.
func (s *UserService) Verify(ctx context.Context, email, password string) (model.User, error) {
	email = NormalizeEmail(email)

	user, err := s.queries.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			slog.Debug("login attempt for unknown email", "email", email)
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, fmt.Errorf("looking up user: %w", err)
	}

	if user.IsLocked() {
		return model.User{}, ErrAccountLocked
	}

	if !user.IsActive {
		return model.User{}, ErrAccountDisabled
	}

	valid, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		return model.User{}, fmt.Errorf("checking password: %w", err)
	}
	if !valid {
		if err := s.recordFailedLogin(ctx, user); err != nil {
			slog.Error("failed to record login attempt", "error", err, "user_id", user.ID)
		}
		return model.User{}, ErrInvalidCredentials
	}

	// Re-hash if the stored hash uses outdated parameters. Only done here,
	// where the plaintext is legitimately in hand.
	if auth.NeedsRehash(user.PasswordHash) {
		if newHash, err := auth.HashPassword(password); err == nil {
			if err := s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{
				PasswordHash: newHash,
				UpdatedAt:    time.Now(),
				ID:           user.ID,
			}); err != nil {
				slog.Error("failed to re-hash password", "error", err, "user_id", user.ID)
			}
		}
	}

	now := time.Now()
	if err := s.queries.ResetUserLoginTracking(ctx, user.ID, now); err != nil {
		slog.Error("failed to reset login tracking", "error", err, "user_id", user.ID)
	}
	user.FailedLogins = 0
	user.LockedUntil = sql.NullTime{}
	user.LastLoginAt = sql.NullTime{Time: now, Valid: true}

	return user, nil
}

// recordFailedLogin advances the failure counter. If a previous lockout has
// already expired the counter restarts at 1; otherwise the counter
// increments, and reaching the threshold sets a fresh lockout.
func (s *UserService) recordFailedLogin(ctx context.Context, user model.User) error {
	now := time.Now()

	attempts := user.FailedLogins + 1
	lockedUntil := user.LockedUntil
	if user.LockedUntil.Valid && user.LockedUntil.Time.Before(now) {
		attempts = 1
		lockedUntil = sql.NullTime{}
	}

	if attempts >= MaxFailedLogins && !lockedUntil.Valid {
		lockedUntil = sql.NullTime{Time: now.Add(LockoutDuration), Valid: true}
		userID := user.ID
		s.events.LogAuthEvent(ctx, model.EventLevelWarning, "Account locked after repeated failed logins",
			&userID, "", map[string]any{"email": user.Email, "attempts": attempts})
		slog.Warn("account locked", "user_id", user.ID, "attempts", attempts)
	}

	return s.queries.UpdateUserLoginTracking(ctx, store.UpdateUserLoginTrackingParams{
		FailedLogins: attempts,
		LockedUntil:  lockedUntil,
		ID:           user.ID,
	})
}

// ChangePassword verifies the current secret and replaces it with a new one.
func (s *UserService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	user, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("looking up user: %w", err)
	}

	valid, err := auth.CheckPassword(current, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("checking password: %w", err)
	}
	if !valid {
		return ErrInvalidCredentials
	}

	newHash, err := auth.HashPassword(next)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	return s.queries.UpdateUserPassword(ctx, store.UpdateUserPasswordParams{
		PasswordHash: newHash,
		UpdatedAt:    time.Now(),
		ID:           userID,
	})
}

// Get fetches a user by ID.
func (s *UserService) Get(ctx context.Context, id int64) (model.User, error) {
	user, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

// List returns users matching the filter plus the total count for paging.
func (s *UserService) List(ctx context.Context, arg store.ListUsersParams) ([]model.User, int64, error) {
	users, err := s.queries.ListUsers(ctx, arg)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.queries.CountUsers(ctx, arg)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// UpdateName changes a user's display name.
func (s *UserService) UpdateName(ctx context.Context, userID int64, name string) (model.User, error) {
	if err := s.queries.UpdateUserName(ctx, store.UpdateUserNameParams{
		Name:      strings.TrimSpace(name),
		UpdatedAt: time.Now(),
		ID:        userID,
	}); err != nil {
		return model.User{}, err
	}
	return s.Get(ctx, userID)
}

// ToggleActive flips the soft-deactivation flag. Super-admin accounts are
// immutable on this path regardless of the caller.
func (s *UserService) ToggleActive(ctx context.Context, userID int64, actorID int64) (model.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	if user.IsSuperAdmin() {
		return model.User{}, ErrSuperAdminImmutable
	}

	if err := s.queries.SetUserActive(ctx, store.SetUserActiveParams{
		IsActive:  !user.IsActive,
		UpdatedAt: time.Now(),
		ID:        user.ID,
	}); err != nil {
		return model.User{}, err
	}

	s.events.LogUserEvent(ctx, model.EventLevelInfo, "User active status toggled",
		&actorID, "", map[string]any{"target_user_id": user.ID, "is_active": !user.IsActive})

	return s.Get(ctx, userID)
}

// ChangeRole assigns a new role. The route gate already restricts this to
// super-admins; the service validates the role itself.
func (s *UserService) ChangeRole(ctx context.Context, userID int64, role model.Role, actorID int64) (model.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	if err := s.queries.UpdateUserRole(ctx, store.UpdateUserRoleParams{
		Role:      role,
		UpdatedAt: time.Now(),
		ID:        user.ID,
	}); err != nil {
		return model.User{}, err
	}

	s.events.LogUserEvent(ctx, model.EventLevelInfo, "User role changed",
		&actorID, "", map[string]any{"target_user_id": user.ID, "old_role": user.Role, "new_role": role})

	return s.Get(ctx, userID)
}

// Stats returns the active user count and how many joined in the last week.
func (s *UserService) Stats(ctx context.Context) (total, recent int64, err error) {
	active := true
	total, err = s.queries.CountUsers(ctx, store.ListUsersParams{Active: &active})
	if err != nil {
		return 0, 0, err
	}
	recent, err = s.queries.CountUsersCreatedSince(ctx, time.Now().AddDate(0, 0, -7))
	if err != nil {
		return 0, 0, err
	}
	return total, recent, nil
}
