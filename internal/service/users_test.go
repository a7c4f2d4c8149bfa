// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/compassioncourse/ccms-go/internal/model"
	"github.com/compassioncourse/ccms-go/internal/service"
	"github.com/compassioncourse/ccms-go/internal/store"
	"github.com/compassioncourse/ccms-go/internal/testutil"
)

func newTestServices(t *testing.T) (*service.UserService, *service.ContentService, *sql.DB) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	events := service.NewEventService(db)
	return service.NewUserService(db, events), service.NewContentService(db, events), db
}

func registerUser(t *testing.T, users *service.UserService, email string, role model.Role) model.User {
	t.Helper()
	user, err := users.Register(context.Background(), "Test User", email, "Secret123", role)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return user
}

func TestRegisterAndVerify(t *testing.T) {
	users, _, _ := newTestServices(t)
	ctx := context.Background()

	created := registerUser(t, users, "alice@example.com", model.RoleUser)
	if created.Role != model.RoleUser || !created.IsActive {
		t.Errorf("unexpected new user: %+v", created)
	}

	user, err := users.Verify(ctx, "alice@example.com", "Secret123")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if user.ID != created.ID {
		t.Errorf("verified wrong user: %d", user.ID)
	}
	if !user.LastLoginAt.Valid {
		t.Error("last login not stamped")
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	users, _, _ := newTestServices(t)
	ctx := context.Background()

	registerUser(t, users, "  MiXeD@Example.COM ", model.RoleUser)

	if _, err := users.Verify(ctx, "mixed@example.com", "Secret123"); err != nil {
		t.Errorf("Verify with normalized email: %v", err)
	}
	if _, err := users.Verify(ctx, "MIXED@EXAMPLE.COM", "Secret123"); err != nil {
		t.Errorf("Verify with upper-case email: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users, _, _ := newTestServices(t)
	ctx := context.Background()

	registerUser(t, users, "dup@example.com", model.RoleUser)

	_, err := users.Register(ctx, "Other", "dup@example.com", "Secret456", model.RoleUser)
	if !errors.Is(err, service.ErrDuplicateEmail) {
		t.Errorf("got %v, want ErrDuplicateEmail", err)
	}

	// Case variants hit the same normalized address.
	_, err = users.Register(ctx, "Other", "DUP@example.com", "Secret456", model.RoleUser)
	if !errors.Is(err, service.ErrDuplicateEmail) {
		t.Errorf("case variant: got %v, want ErrDuplicateEmail", err)
	}
}

func TestVerifyUnknownEmail(t *testing.T) {
	users, _, _ := newTestServices(t)

	_, err := users.Verify(context.Background(), "nobody@example.com", "Secret123")
	if !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyLockoutAfterFiveFailures(t *testing.T) {
	users, _, _ := newTestServices(t)
	ctx := context.Background()

	user := registerUser(t, users, "locked@example.com", model.RoleUser)

	for i := 0; i < service.MaxFailedLogins; i++ {
		_, err := users.Verify(ctx, "locked@example.com", "WrongPass1")
		if !errors.Is(err, service.ErrInvalidCredentials) {
			t.Fatalf("attempt %d: got %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	// The account is now locked: even the correct password answers locked.
	_, err := users.Verify(ctx, "locked@example.com", "Secret123")
	if !errors.Is(err, service.ErrAccountLocked) {
		t.Errorf("correct password on locked account: got %v, want ErrAccountLocked", err)
	}

	got, err := users.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FailedLogins != service.MaxFailedLogins {
		t.Errorf("FailedLogins = %d, want %d", got.FailedLogins, service.MaxFailedLogins)
	}
	if !got.LockedUntil.Valid {
		t.Fatal("lockout not set")
	}
	remaining := time.Until(got.LockedUntil.Time)
	if remaining <= 0 || remaining > service.LockoutDuration {
		t.Errorf("lockout expires in %v, want within %v", remaining, service.LockoutDuration)
	}
}

func TestVerifyExpiredLockoutRestartsCounter(t *testing.T) {
	users, _, db := newTestServices(t)
	ctx := context.Background()

	user := registerUser(t, users, "expired@example.com", model.RoleUser)

	// Simulate an old lockout that has already elapsed.
	q := store.New(db)
	if err := q.UpdateUserLoginTracking(ctx, store.UpdateUserLoginTrackingParams{
		FailedLogins: service.MaxFailedLogins,
		LockedUntil:  sql.NullTime{Time: time.Now().Add(-time.Minute), Valid: true},
		ID:           user.ID,
	}); err != nil {
		t.Fatalf("UpdateUserLoginTracking: %v", err)
	}

	// The expired lockout no longer blocks, and a fresh failure restarts
	// the counter at 1 instead of locking again.
	_, err := users.Verify(ctx, "expired@example.com", "WrongPass1")
	if !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}

	got, err := users.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FailedLogins != 1 {
		t.Errorf("FailedLogins = %d, want 1", got.FailedLogins)
	}
	if got.LockedUntil.Valid {
		t.Error("expired lockout was renewed")
	}
}

func TestVerifySuccessResetsCounter(t *testing.T) {
	users, _, _ := newTestServices(t)
	ctx := context.Background()

	user := registerUser(t, users, "reset@example.com", model.RoleUser)

	for i := 0; i < 3; i++ {
		_, _ = users.Verify(ctx, "reset@example.com", "WrongPass1")
	}

	if _, err := users.Verify(ctx, "reset@example.com", "Secret123"); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	got, err := users.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FailedLogins != 0 || got.LockedUntil.Valid {
		t.Errorf("counters not reset: %+v", got)
	}
}

func TestVerifyDeactivatedAccount(t *testing.T) {
	users, _, _ := newTestServices(t)
	ctx := context.Background()

	admin := registerUser(t, users, "admin@example.com", model.RoleAdmin)
	user := registerUser(t, users, "off@example.com", model.RoleUser)

	if _, err := users.ToggleActive(ctx, user.ID, admin.ID); err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}

	_, err := users.Verify(ctx, "off@example.com", "Secret123")
	if !errors.Is(err, service.ErrAccountDisabled) {
		t.Errorf("got %v, want ErrAccountDisabled", err)
	}
}

func TestToggleActiveSuperAdmin(t *testing.T) {
	users, _, _ := newTestServices(t)
	ctx := context.Background()

	super := registerUser(t, users, "root@example.com", model.RoleSuperAdmin)
	admin := registerUser(t, users, "admin@example.com", model.RoleAdmin)

	_, err := users.ToggleActive(ctx, super.ID, admin.ID)
	if !errors.Is(err, service.ErrSuperAdminImmutable) {
		t.Errorf("got %v, want ErrSuperAdminImmutable", err)
	}
}

func TestToggleActiveIsReversible(t *testing.T) {
	users, _, _ := newTestServices(t)
	ctx := context.Background()

	admin := registerUser(t, users, "admin@example.com", model.RoleAdmin)
	user := registerUser(t, users, "flip@example.com", model.RoleUser)

	off, err := users.ToggleActive(ctx, user.ID, admin.ID)
	if err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}
	if off.IsActive {
		t.Error("first toggle left user active")
	}

	on, err := users.ToggleActive(ctx, user.ID, admin.ID)
	if err != nil {
		t.Fatalf("second ToggleActive: %v", err)
	}
	if !on.IsActive {
		t.Error("second toggle left user inactive")
	}
}

func TestChangeRole(t *testing.T) {
	users, _, _ := newTestServices(t)
	ctx := context.Background()

	super := registerUser(t, users, "root@example.com", model.RoleSuperAdmin)
	user := registerUser(t, users, "promote@example.com", model.RoleUser)

	updated, err := users.ChangeRole(ctx, user.ID, model.RoleAdmin, super.ID)
	if err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	if updated.Role != model.RoleAdmin {
		t.Errorf("role = %s, want admin", updated.Role)
	}
}

func TestChangePassword(t *testing.T) {
	users, _, _ := newTestServices(t)
	ctx := context.Background()

	user := registerUser(t, users, "pw@example.com", model.RoleUser)

	err := users.ChangePassword(ctx, user.ID, "WrongOld1", "NewSecret1")
	if !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("wrong current password: got %v, want ErrInvalidCredentials", err)
	}

	if err := users.ChangePassword(ctx, user.ID, "Secret123", "NewSecret1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := users.Verify(ctx, "pw@example.com", "Secret123"); err == nil {
		t.Error("old password still works")
	}
	if _, err := users.Verify(ctx, "pw@example.com", "NewSecret1"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestUserStats(t *testing.T) {
	users, _, _ := newTestServices(t)
	ctx := context.Background()

	admin := registerUser(t, users, "admin@example.com", model.RoleAdmin)
	user := registerUser(t, users, "u@example.com", model.RoleUser)
	if _, err := users.ToggleActive(ctx, user.ID, admin.ID); err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}

	total, recent, err := users.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if total != 1 {
		t.Errorf("active total = %d, want 1", total)
	}
	// The recent count only considers active accounts, so the toggled-off
	// user drops out of it too.
	if recent != 1 {
		t.Errorf("recent = %d, want 1", recent)
	}
}
