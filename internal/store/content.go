// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/compassioncourse/ccms-go/internal/model"
)

const contentColumns = `id, key, title, body, type, section, is_published,
	position, version, last_modified_by, created_at, updated_at`

func scanContent(row interface{ Scan(...any) error }) (model.Content, error) {
	var c model.Content
	err := row.Scan(
		&c.ID,
		&c.Key,
		&c.Title,
		&c.Body,
		&c.Type,
		&c.Section,
		&c.IsPublished,
		&c.Position,
		&c.Version,
		&c.LastModifiedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (q *Queries) queryContent(ctx context.Context, query string, args ...any) ([]model.Content, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// CreateContentParams holds fields for CreateContent.
type CreateContentParams struct {
	Key            string
	Title          string
	Body           string
	Type           string
	Section        string
	IsPublished    bool
	Position       int64
	LastModifiedBy sql.NullInt64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateContent inserts a content item at version 1 and returns it.
func (q *Queries) CreateContent(ctx context.Context, arg CreateContentParams) (model.Content, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO content (key, title, body, type, section, is_published, position,
			version, last_modified_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		RETURNING `+contentColumns,
		arg.Key, arg.Title, arg.Body, arg.Type, arg.Section, arg.IsPublished,
		arg.Position, arg.LastModifiedBy, arg.CreatedAt, arg.UpdatedAt,
	)
	return scanContent(row)
}

// GetContentByID fetches a content item by primary key.
func (q *Queries) GetContentByID(ctx context.Context, id int64) (model.Content, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content WHERE id = ?`, id)
	return scanContent(row)
}

// GetPublishedContentByKey fetches the published content item with the
// given key. Unpublished items are invisible on this path.
func (q *Queries) GetPublishedContentByKey(ctx context.Context, key string) (model.Content, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM content WHERE key = ? AND is_published = 1`, key)
	return scanContent(row)
}

// ContentKeyExists reports how many items carry the given key.
func (q *Queries) ContentKeyExists(ctx context.Context, key string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM content WHERE key = ?`, key).Scan(&count)
	return count, err
}

// ListPublishedContent returns published items ordered by (section, position).
// An empty section matches all sections.
func (q *Queries) ListPublishedContent(ctx context.Context, section string) ([]model.Content, error) {
	if section != "" {
		return q.queryContent(ctx,
			`SELECT `+contentColumns+` FROM content
			 WHERE is_published = 1 AND section = ?
			 ORDER BY position, id`, section)
	}
	return q.queryContent(ctx,
		`SELECT `+contentColumns+` FROM content
		 WHERE is_published = 1
		 ORDER BY section, position, id`)
}

// ListContentParams filters the admin content listing.
type ListContentParams struct {
	Section   string // empty: any
	Published *bool  // nil: any
}

// ListContent returns all items matching the filter, for admin use.
func (q *Queries) ListContent(ctx context.Context, arg ListContentParams) ([]model.Content, error) {
	var conds []string
	var args []any
	if arg.Section != "" {
		conds = append(conds, "section = ?")
		args = append(args, arg.Section)
	}
	if arg.Published != nil {
		conds = append(conds, "is_published = ?")
		args = append(args, *arg.Published)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return q.queryContent(ctx,
		`SELECT `+contentColumns+` FROM content`+where+` ORDER BY section, position, created_at DESC`,
		args...)
}

// CountPublishedContent returns the number of published items.
func (q *Queries) CountPublishedContent(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM content WHERE is_published = 1`).Scan(&count)
	return count, err
}

// UpdateContentParams holds the full post-patch state written by
// UpdateContent. The service layer computes it from the whitelisted patch.
type UpdateContentParams struct {
	Key            string
	Title          string
	Body           string
	Type           string
	Section        string
	IsPublished    bool
	Position       int64
	Version        int64
	LastModifiedBy sql.NullInt64
	UpdatedAt      time.Time
	ID             int64
}

// UpdateContent writes the patched item state and returns it.
func (q *Queries) UpdateContent(ctx context.Context, arg UpdateContentParams) (model.Content, error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE content
		SET key = ?, title = ?, body = ?, type = ?, section = ?, is_published = ?,
			position = ?, version = ?, last_modified_by = ?, updated_at = ?
		WHERE id = ?
		RETURNING `+contentColumns,
		arg.Key, arg.Title, arg.Body, arg.Type, arg.Section, arg.IsPublished,
		arg.Position, arg.Version, arg.LastModifiedBy, arg.UpdatedAt, arg.ID,
	)
	return scanContent(row)
}

// DeleteContent removes a content item. History rows cascade.
func (q *Queries) DeleteContent(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM content WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreateContentVersionParams holds fields for CreateContentVersion.
type CreateContentVersionParams struct {
	ContentID  int64
	Body       string
	Version    int64
	ModifiedBy sql.NullInt64
	ModifiedAt time.Time
	Note       string
}

// CreateContentVersion appends a history snapshot for a content item.
func (q *Queries) CreateContentVersion(ctx context.Context, arg CreateContentVersionParams) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO content_versions (content_id, body, version, modified_by, modified_at, note)
		VALUES (?, ?, ?, ?, ?, ?)`,
		arg.ContentID, arg.Body, arg.Version, arg.ModifiedBy, arg.ModifiedAt, arg.Note,
	)
	return err
}

// ListContentVersions returns a content item's history oldest-first with
// the modifying user's name and email joined in.
func (q *Queries) ListContentVersions(ctx context.Context, contentID int64) ([]model.ContentVersion, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT v.id, v.content_id, v.body, v.version, v.modified_by, v.modified_at, v.note,
			COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM content_versions v
		LEFT JOIN users u ON u.id = v.modified_by
		WHERE v.content_id = ?
		ORDER BY v.id`,
		contentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []model.ContentVersion
	for rows.Next() {
		var v model.ContentVersion
		if err := rows.Scan(
			&v.ID, &v.ContentID, &v.Body, &v.Version, &v.ModifiedBy, &v.ModifiedAt, &v.Note,
			&v.ModifierName, &v.ModifierEmail,
		); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
