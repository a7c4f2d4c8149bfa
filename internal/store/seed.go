// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/compassioncourse/ccms-go/internal/auth"
	"github.com/compassioncourse/ccms-go/internal/model"
)

// Default super-admin credentials
const (
	DefaultAdminEmail    = "admin@example.com"
	DefaultAdminPassword = "changeme"
	DefaultAdminName     = "Administrator"
)

// defaultContent is the initial set of published text blocks.
type defaultContentItem struct {
	Key     string
	Title   string
	Body    string
	Type    string
	Section string
}

var defaultContent = []defaultContentItem{
	{
		Key:     "hero-title",
		Title:   "Hero Title",
		Body:    "Welcome to the Compassion Course",
		Type:    model.ContentTypeText,
		Section: "hero",
	},
	{
		Key:     "hero-subtitle",
		Title:   "Hero Subtitle",
		Body:    "A year-long journey to transform how you communicate",
		Type:    model.ContentTypeText,
		Section: "hero",
	},
	{
		Key:     "footer-text",
		Title:   "Footer Text",
		Body:    "© Compassion Course. All rights reserved.",
		Type:    model.ContentTypeText,
		Section: "footer",
	},
}

// Seed creates initial data: the super-admin account and the default
// published content blocks. Safe to call repeatedly.
func Seed(ctx context.Context, db *sql.DB) error {
	queries := New(db)

	if err := seedAdmin(ctx, queries); err != nil {
		return err
	}
	return seedContent(ctx, queries)
}

func seedAdmin(ctx context.Context, queries *Queries) error {
	_, err := queries.GetUserByEmail(ctx, DefaultAdminEmail)
	if err == nil {
		slog.Info("admin user already exists, skipping seed")
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for admin user: %w", err)
	}

	passwordHash, err := auth.HashPassword(DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now()
	user, err := queries.CreateUser(ctx, CreateUserParams{
		Email:        DefaultAdminEmail,
		PasswordHash: passwordHash,
		Role:         model.RoleSuperAdmin,
		Name:         DefaultAdminName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("created default super-admin user",
		"id", user.ID,
		"email", user.Email,
		"password", DefaultAdminPassword,
	)

	return nil
}

func seedContent(ctx context.Context, queries *Queries) error {
	now := time.Now()
	for _, item := range defaultContent {
		count, err := queries.ContentKeyExists(ctx, item.Key)
		if err != nil {
			return fmt.Errorf("checking content key %q: %w", item.Key, err)
		}
		if count > 0 {
			continue
		}

		if _, err := queries.CreateContent(ctx, CreateContentParams{
			Key:         item.Key,
			Title:       item.Title,
			Body:        item.Body,
			Type:        item.Type,
			Section:     item.Section,
			IsPublished: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}); err != nil {
			return fmt.Errorf("creating content %q: %w", item.Key, err)
		}
		slog.Info("created default content", "key", item.Key, "section", item.Section)
	}
	return nil
}
