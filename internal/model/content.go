// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"database/sql"
	"time"
)

// Content types.
const (
	ContentTypeText     = "text"
	ContentTypeHTML     = "html"
	ContentTypeMarkdown = "markdown"
	ContentTypeJSON     = "json"
)

// ValidContentType reports whether t names a known content type.
func ValidContentType(t string) bool {
	switch t {
	case ContentTypeText, ContentTypeHTML, ContentTypeMarkdown, ContentTypeJSON:
		return true
	}
	return false
}

// Sections is the fixed set of page sections content can belong to,
// in page order.
var Sections = []string{
	"hero",
	"about",
	"programs",
	"testimonials",
	"cta",
	"footer",
	"navigation",
	"statistics",
	"general",
}

// ValidSection reports whether s names a known section.
func ValidSection(s string) bool {
	for _, section := range Sections {
		if s == section {
			return true
		}
	}
	return false
}

// Content represents a single editable text block on the site.
// Version starts at 1 and increases by exactly one on every mutation
// that changes the body.
type Content struct {
	ID             int64         `json:"id"`
	Key            string        `json:"key"`
	Title          string        `json:"title"`
	Body           string        `json:"content"`
	Type           string        `json:"type"`
	Section        string        `json:"section"`
	IsPublished    bool          `json:"is_published"`
	Position       int64         `json:"order"`
	Version        int64         `json:"version"`
	LastModifiedBy sql.NullInt64 `json:"last_modified_by,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ContentVersion is an immutable snapshot of a content body taken before
// a mutation overwrote it.
type ContentVersion struct {
	ID         int64         `json:"id"`
	ContentID  int64         `json:"content_id"`
	Body       string        `json:"content"`
	Version    int64         `json:"version"`
	ModifiedBy sql.NullInt64 `json:"modified_by,omitempty"`
	ModifiedAt time.Time     `json:"modified_at"`
	Note       string        `json:"note,omitempty"`

	// Joined actor fields, populated on history reads.
	ModifierName  string `json:"modifier_name,omitempty"`
	ModifierEmail string `json:"modifier_email,omitempty"`
}
