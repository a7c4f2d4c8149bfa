// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/compassioncourse/ccms-go/internal/markup"
	"github.com/compassioncourse/ccms-go/internal/model"
	"github.com/compassioncourse/ccms-go/internal/store"
	"github.com/compassioncourse/ccms-go/internal/util"
)

// Content repository failures.
var (
	ErrDuplicateKey        = errors.New("content key already exists")
	ErrContentNotFound     = errors.New("content not found")
	ErrInvalidSection      = errors.New("invalid section")
	ErrInvalidContentType  = errors.New("invalid content type")
	ErrInvalidKey          = errors.New("invalid content key")
	ErrInvalidVersionIndex = errors.New("invalid version index")
)

// History note attached to automatic pre-mutation snapshots.
const autoSaveNote = "Auto-saved version"

// ContentService is the content repository and version manager. All body
// mutations flow through Update or Restore, the only two writers of the
// version counter; each snapshots the body it is about to overwrite.
type ContentService struct {
	db      *sql.DB
	queries *store.Queries
	events  *EventService
}

// NewContentService creates a new ContentService.
func NewContentService(db *sql.DB, events *EventService) *ContentService {
	return &ContentService{
		db:      db,
		queries: store.New(db),
		events:  events,
	}
}

// CreateContentInput holds fields for Create.
type CreateContentInput struct {
	Key         string
	Title       string
	Body        string
	Type        string
	Section     string
	Order       int64
	IsPublished *bool // nil: published by default
}

// Create inserts a new content item at version 1. An empty key is derived
// from the title. HTML bodies are sanitized before storage.
func (s *ContentService) Create(ctx context.Context, in CreateContentInput, actorID int64) (model.Content, error) {
	if in.Type == "" {
		in.Type = model.ContentTypeText
	}
	if !model.ValidContentType(in.Type) {
		return model.Content{}, ErrInvalidContentType
	}
	if !model.ValidSection(in.Section) {
		return model.Content{}, ErrInvalidSection
	}

	if in.Key == "" {
		in.Key = util.KeyFromTitle(in.Title)
	}
	if !util.IsValidKey(in.Key) {
		return model.Content{}, ErrInvalidKey
	}

	if count, err := s.queries.ContentKeyExists(ctx, in.Key); err != nil {
		return model.Content{}, fmt.Errorf("checking key: %w", err)
	} else if count > 0 {
		return model.Content{}, ErrDuplicateKey
	}

	body := in.Body
	if in.Type == model.ContentTypeHTML {
		body = markup.SanitizeHTML(body)
	}

	published := true
	if in.IsPublished != nil {
		published = *in.IsPublished
	}

	now := time.Now()
	item, err := s.queries.CreateContent(ctx, store.CreateContentParams{
		Key:            in.Key,
		Title:          in.Title,
		Body:           body,
		Type:           in.Type,
		Section:        in.Section,
		IsPublished:    published,
		Position:       in.Order,
		LastModifiedBy: sql.NullInt64{Int64: actorID, Valid: true},
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		if store.IsUniqueViolation(err, "content.key") {
			return model.Content{}, ErrDuplicateKey
		}
		return model.Content{}, fmt.Errorf("creating content: %w", err)
	}

	s.events.LogContentEvent(ctx, model.EventLevelInfo, "Content created",
		&actorID, "", map[string]any{"content_id": item.ID, "key": item.Key})

	return item, nil
}

// ContentPatch holds the whitelisted updatable fields. Nil pointers leave
// the current value untouched.
type ContentPatch struct {
	Key         *string
	Title       *string
	Body        *string
	Type        *string
	Section     *string
	Order       *int64
	IsPublished *bool
}

// Update applies a patch to a content item. If the patch changes the body,
// the previous body is snapshotted into history first and the version
// counter advances by exactly one. Non-body edits do not version.
func (s *ContentService) Update(ctx context.Context, id int64, patch ContentPatch, actorID int64) (model.Content, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return model.Content{}, err
	}

	next := store.UpdateContentParams{
		Key:            current.Key,
		Title:          current.Title,
		Body:           current.Body,
		Type:           current.Type,
		Section:        current.Section,
		IsPublished:    current.IsPublished,
		Position:       current.Position,
		Version:        current.Version,
		LastModifiedBy: sql.NullInt64{Int64: actorID, Valid: true},
		UpdatedAt:      time.Now(),
		ID:             current.ID,
	}

	if patch.Key != nil && *patch.Key != current.Key {
		if !util.IsValidKey(*patch.Key) {
			return model.Content{}, ErrInvalidKey
		}
		if count, err := s.queries.ContentKeyExists(ctx, *patch.Key); err != nil {
			return model.Content{}, fmt.Errorf("checking key: %w", err)
		} else if count > 0 {
			return model.Content{}, ErrDuplicateKey
		}
		next.Key = *patch.Key
	}
	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Type != nil {
		if !model.ValidContentType(*patch.Type) {
			return model.Content{}, ErrInvalidContentType
		}
		next.Type = *patch.Type
	}
	if patch.Section != nil {
		if !model.ValidSection(*patch.Section) {
			return model.Content{}, ErrInvalidSection
		}
		next.Section = *patch.Section
	}
	if patch.Order != nil {
		next.Position = *patch.Order
	}
	if patch.IsPublished != nil {
		next.IsPublished = *patch.IsPublished
	}

	if patch.Body != nil {
		next.Body = *patch.Body
	}
	// Sanitization follows the effective type, so switching an existing
	// body to HTML scrubs it even when the patch carried no body.
	if next.Type == model.ContentTypeHTML {
		next.Body = markup.SanitizeHTML(next.Body)
	}

	bodyChanged := next.Body != current.Body
	if bodyChanged {
		next.Version = current.Version + 1
	}

	var updated model.Content
	err = s.withTx(ctx, func(q *store.Queries) error {
		if bodyChanged {
			// Snapshot the body being overwritten before it is lost.
			if err := q.CreateContentVersion(ctx, store.CreateContentVersionParams{
				ContentID:  current.ID,
				Body:       current.Body,
				Version:    current.Version,
				ModifiedBy: sql.NullInt64{Int64: actorID, Valid: true},
				ModifiedAt: time.Now(),
				Note:       autoSaveNote,
			}); err != nil {
				return fmt.Errorf("saving history entry: %w", err)
			}
		}

		var err error
		updated, err = q.UpdateContent(ctx, next)
		return err
	})
	if err != nil {
		return model.Content{}, err
	}

	s.events.LogContentEvent(ctx, model.EventLevelInfo, "Content updated",
		&actorID, "", map[string]any{"content_id": updated.ID, "key": updated.Key, "version": updated.Version})

	return updated, nil
}

// Delete permanently removes a content item and its history.
func (s *ContentService) Delete(ctx context.Context, id int64, actorID int64) error {
	item, err := s.get(ctx, id)
	if err != nil {
		return err
	}

	affected, err := s.queries.DeleteContent(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting content: %w", err)
	}
	if affected == 0 {
		return ErrContentNotFound
	}

	s.events.LogContentEvent(ctx, model.EventLevelWarning, "Content deleted",
		&actorID, "", map[string]any{"content_id": item.ID, "key": item.Key})

	return nil
}

// Get fetches a content item by ID for admin use.
func (s *ContentService) Get(ctx context.Context, id int64) (model.Content, error) {
	return s.get(ctx, id)
}

func (s *ContentService) get(ctx context.Context, id int64) (model.Content, error) {
	item, err := s.queries.GetContentByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Content{}, ErrContentNotFound
		}
		return model.Content{}, err
	}
	return item, nil
}

// GetByKey returns the unique published item with the given key.
func (s *ContentService) GetByKey(ctx context.Context, key string) (model.Content, error) {
	item, err := s.queries.GetPublishedContentByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Content{}, ErrContentNotFound
		}
		return model.Content{}, err
	}
	return item, nil
}

// ListPublished returns published items ordered by (section, order),
// optionally restricted to one section.
func (s *ContentService) ListPublished(ctx context.Context, section string) ([]model.Content, error) {
	if section != "" && !model.ValidSection(section) {
		return nil, ErrInvalidSection
	}
	return s.queries.ListPublishedContent(ctx, section)
}

// ListAll returns items matching the admin filter.
func (s *ContentService) ListAll(ctx context.Context, arg store.ListContentParams) ([]model.Content, error) {
	return s.queries.ListContent(ctx, arg)
}

// History returns a content item's version history, oldest entry first.
func (s *ContentService) History(ctx context.Context, id int64) ([]model.ContentVersion, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	return s.queries.ListContentVersions(ctx, id)
}

// Restore sets the live body to a historical entry's body. The restore is
// itself a versioned mutation: the current body is first snapshotted as a
// backup entry, then the version counter advances. History is never
// rewritten.
func (s *ContentService) Restore(ctx context.Context, id int64, historyIndex int, actorID int64) (model.Content, error) {
	current, err := s.get(ctx, id)
	if err != nil {
		return model.Content{}, err
	}

	versions, err := s.queries.ListContentVersions(ctx, id)
	if err != nil {
		return model.Content{}, fmt.Errorf("loading history: %w", err)
	}
	if historyIndex < 0 || historyIndex >= len(versions) {
		return model.Content{}, ErrInvalidVersionIndex
	}
	target := versions[historyIndex]

	var restored model.Content
	err = s.withTx(ctx, func(q *store.Queries) error {
		if err := q.CreateContentVersion(ctx, store.CreateContentVersionParams{
			ContentID:  current.ID,
			Body:       current.Body,
			Version:    current.Version,
			ModifiedBy: sql.NullInt64{Int64: actorID, Valid: true},
			ModifiedAt: time.Now(),
			Note:       fmt.Sprintf("Backup before restoring to version %d", target.Version),
		}); err != nil {
			return fmt.Errorf("saving backup entry: %w", err)
		}

		var err error
		restored, err = q.UpdateContent(ctx, store.UpdateContentParams{
			Key:            current.Key,
			Title:          current.Title,
			Body:           target.Body,
			Type:           current.Type,
			Section:        current.Section,
			IsPublished:    current.IsPublished,
			Position:       current.Position,
			Version:        current.Version + 1,
			LastModifiedBy: sql.NullInt64{Int64: actorID, Valid: true},
			UpdatedAt:      time.Now(),
			ID:             current.ID,
		})
		return err
	})
	if err != nil {
		return model.Content{}, err
	}

	s.events.LogContentEvent(ctx, model.EventLevelInfo, "Content restored from history",
		&actorID, "", map[string]any{
			"content_id":       restored.ID,
			"key":              restored.Key,
			"restored_version": target.Version,
			"new_version":      restored.Version,
		})

	return restored, nil
}

// Stats returns the number of published content items.
func (s *ContentService) Stats(ctx context.Context) (int64, error) {
	return s.queries.CountPublishedContent(ctx)
}

// withTx runs fn inside a transaction so a history snapshot and the write
// it guards land together.
func (s *ContentService) withTx(ctx context.Context, fn func(q *store.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(s.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
