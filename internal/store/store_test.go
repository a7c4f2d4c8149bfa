// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/compassioncourse/ccms-go/internal/model"
	"github.com/compassioncourse/ccms-go/internal/store"
	"github.com/compassioncourse/ccms-go/internal/testutil"
)

func newTestQueries(t *testing.T) (*store.Queries, *sql.DB) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	return store.New(db), db
}

func createTestUser(t *testing.T, q *store.Queries, email string, role model.Role) model.User {
	t.Helper()
	now := time.Now()
	user, err := q.CreateUser(context.Background(), store.CreateUserParams{
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		Role:         role,
		Name:         "Test User",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func createTestContent(t *testing.T, q *store.Queries, key, section string) model.Content {
	t.Helper()
	now := time.Now()
	item, err := q.CreateContent(context.Background(), store.CreateContentParams{
		Key:         key,
		Title:       "Test " + key,
		Body:        "body of " + key,
		Type:        model.ContentTypeText,
		Section:     section,
		IsPublished: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateContent: %v", err)
	}
	return item
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	q, _ := newTestQueries(t)
	ctx := context.Background()

	createTestUser(t, q, "dup@example.com", model.RoleUser)

	_, err := q.CreateUser(ctx, store.CreateUserParams{
		Email:        "dup@example.com",
		PasswordHash: "x",
		Role:         model.RoleUser,
		Name:         "Dup",
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	})
	if err == nil {
		t.Fatal("duplicate email accepted")
	}
	if !store.IsUniqueViolation(err, "users.email") {
		t.Errorf("IsUniqueViolation = false for %v", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	q, _ := newTestQueries(t)
	ctx := context.Background()

	created := createTestUser(t, q, "find@example.com", model.RoleAdmin)

	user, err := q.GetUserByEmail(ctx, "find@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user.ID != created.ID || user.Role != model.RoleAdmin {
		t.Errorf("got user %+v", user)
	}

	if _, err := q.GetUserByEmail(ctx, "missing@example.com"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("missing user: got %v, want sql.ErrNoRows", err)
	}
}

func TestListUsersFilters(t *testing.T) {
	q, _ := newTestQueries(t)
	ctx := context.Background()

	createTestUser(t, q, "a@example.com", model.RoleUser)
	admin := createTestUser(t, q, "b@example.com", model.RoleAdmin)
	createTestUser(t, q, "c@example.com", model.RoleUser)

	if err := q.SetUserActive(ctx, store.SetUserActiveParams{
		IsActive:  false,
		UpdatedAt: time.Now(),
		ID:        admin.ID,
	}); err != nil {
		t.Fatalf("SetUserActive: %v", err)
	}

	admins, err := q.ListUsers(ctx, store.ListUsersParams{Role: model.RoleAdmin, Limit: 10})
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(admins) != 1 || admins[0].ID != admin.ID {
		t.Errorf("role filter returned %d users", len(admins))
	}

	active := true
	count, err := q.CountUsers(ctx, store.ListUsersParams{Active: &active})
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if count != 2 {
		t.Errorf("active count = %d, want 2", count)
	}
}

func TestUpdateUserLoginTracking(t *testing.T) {
	q, _ := newTestQueries(t)
	ctx := context.Background()

	user := createTestUser(t, q, "track@example.com", model.RoleUser)

	lock := time.Now().Add(2 * time.Hour)
	if err := q.UpdateUserLoginTracking(ctx, store.UpdateUserLoginTrackingParams{
		FailedLogins: 5,
		LockedUntil:  sql.NullTime{Time: lock, Valid: true},
		ID:           user.ID,
	}); err != nil {
		t.Fatalf("UpdateUserLoginTracking: %v", err)
	}

	got, err := q.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.FailedLogins != 5 || !got.LockedUntil.Valid {
		t.Errorf("tracking not persisted: %+v", got)
	}
	if !got.IsLocked() {
		t.Error("IsLocked() = false with future lockout")
	}

	now := time.Now()
	if err := q.ResetUserLoginTracking(ctx, user.ID, now); err != nil {
		t.Fatalf("ResetUserLoginTracking: %v", err)
	}
	got, err = q.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if got.FailedLogins != 0 || got.LockedUntil.Valid || !got.LastLoginAt.Valid {
		t.Errorf("tracking not reset: %+v", got)
	}
}

func TestContentKeyUnique(t *testing.T) {
	q, _ := newTestQueries(t)
	ctx := context.Background()

	createTestContent(t, q, "hero-title", "hero")

	_, err := q.CreateContent(ctx, store.CreateContentParams{
		Key:       "hero-title",
		Title:     "Again",
		Body:      "x",
		Type:      model.ContentTypeText,
		Section:   "hero",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	if err == nil {
		t.Fatal("duplicate key accepted")
	}
	if !store.IsUniqueViolation(err, "content.key") {
		t.Errorf("IsUniqueViolation = false for %v", err)
	}

	count, err := q.ContentKeyExists(ctx, "hero-title")
	if err != nil {
		t.Fatalf("ContentKeyExists: %v", err)
	}
	if count != 1 {
		t.Errorf("ContentKeyExists = %d, want 1", count)
	}
}

func TestGetPublishedContentByKey(t *testing.T) {
	q, _ := newTestQueries(t)
	ctx := context.Background()

	item := createTestContent(t, q, "about-text", "about")
	if item.Version != 1 {
		t.Errorf("new content version = %d, want 1", item.Version)
	}

	got, err := q.GetPublishedContentByKey(ctx, "about-text")
	if err != nil {
		t.Fatalf("GetPublishedContentByKey: %v", err)
	}
	if got.ID != item.ID {
		t.Errorf("got content %d, want %d", got.ID, item.ID)
	}

	// Unpublish and the key lookup must stop finding it.
	item.IsPublished = false
	if _, err := q.UpdateContent(ctx, store.UpdateContentParams{
		Key:         item.Key,
		Title:       item.Title,
		Body:        item.Body,
		Type:        item.Type,
		Section:     item.Section,
		IsPublished: false,
		Position:    item.Position,
		Version:     item.Version,
		UpdatedAt:   time.Now(),
		ID:          item.ID,
	}); err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}

	if _, err := q.GetPublishedContentByKey(ctx, "about-text"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("unpublished key lookup: got %v, want sql.ErrNoRows", err)
	}
}

func TestListPublishedContentOrdering(t *testing.T) {
	q, _ := newTestQueries(t)
	ctx := context.Background()

	now := time.Now()
	for i, key := range []string{"hero-b", "hero-a"} {
		if _, err := q.CreateContent(ctx, store.CreateContentParams{
			Key:         key,
			Title:       key,
			Body:        key,
			Type:        model.ContentTypeText,
			Section:     "hero",
			IsPublished: true,
			Position:    int64(1 - i), // hero-b: 1, hero-a: 0
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			t.Fatalf("CreateContent: %v", err)
		}
	}

	items, err := q.ListPublishedContent(ctx, "hero")
	if err != nil {
		t.Fatalf("ListPublishedContent: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Key != "hero-a" || items[1].Key != "hero-b" {
		t.Errorf("wrong order: %s, %s", items[0].Key, items[1].Key)
	}
}

func TestContentVersionsCascade(t *testing.T) {
	q, _ := newTestQueries(t)
	ctx := context.Background()

	author := createTestUser(t, q, "author@example.com", model.RoleAdmin)
	item := createTestContent(t, q, "cta-text", "cta")

	for v := int64(1); v <= 2; v++ {
		if err := q.CreateContentVersion(ctx, store.CreateContentVersionParams{
			ContentID:  item.ID,
			Body:       "old body",
			Version:    v,
			ModifiedBy: sql.NullInt64{Int64: author.ID, Valid: true},
			ModifiedAt: time.Now(),
			Note:       "Auto-saved version",
		}); err != nil {
			t.Fatalf("CreateContentVersion: %v", err)
		}
	}

	versions, err := q.ListContentVersions(ctx, item.ID)
	if err != nil {
		t.Fatalf("ListContentVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d versions, want 2", len(versions))
	}
	if versions[0].Version != 1 || versions[1].Version != 2 {
		t.Errorf("versions not oldest-first: %d, %d", versions[0].Version, versions[1].Version)
	}
	if versions[0].ModifierEmail != "author@example.com" {
		t.Errorf("modifier join missing: %+v", versions[0])
	}

	affected, err := q.DeleteContent(ctx, item.ID)
	if err != nil {
		t.Fatalf("DeleteContent: %v", err)
	}
	if affected != 1 {
		t.Errorf("DeleteContent affected %d rows", affected)
	}

	versions, err = q.ListContentVersions(ctx, item.ID)
	if err != nil {
		t.Fatalf("ListContentVersions after delete: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("history survived content deletion: %d rows", len(versions))
	}
}

func TestDeleteEventsBefore(t *testing.T) {
	q, _ := newTestQueries(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -100)
	recent := time.Now()
	for _, created := range []time.Time{old, old, recent} {
		if _, err := q.CreateEvent(ctx, store.CreateEventParams{
			Level:     model.EventLevelInfo,
			Category:  model.EventCategorySystem,
			Message:   "test event",
			Metadata:  "{}",
			CreatedAt: created,
		}); err != nil {
			t.Fatalf("CreateEvent: %v", err)
		}
	}

	deleted, err := q.DeleteEventsBefore(ctx, time.Now().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("DeleteEventsBefore: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d events, want 2", deleted)
	}

	count, err := q.CountEvents(ctx)
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	if count != 1 {
		t.Errorf("remaining events = %d, want 1", count)
	}
}

func TestSeedIdempotent(t *testing.T) {
	_, db := newTestQueries(t)
	ctx := context.Background()

	if err := store.Seed(ctx, db); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := store.Seed(ctx, db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	q := store.New(db)
	admin, err := q.GetUserByEmail(ctx, store.DefaultAdminEmail)
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if admin.Role != model.RoleSuperAdmin {
		t.Errorf("seeded admin role = %s, want %s", admin.Role, model.RoleSuperAdmin)
	}

	count, err := q.CountUsers(ctx, store.ListUsersParams{})
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if count != 1 {
		t.Errorf("seeded twice produced %d users, want 1", count)
	}
}
