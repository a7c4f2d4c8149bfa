// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package markup renders and sanitizes content bodies. Markdown is rendered
// with goldmark; HTML passes through a bluemonday policy so that stored and
// served markup never carries scripts.
package markup

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/compassioncourse/ccms-go/internal/model"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	// ugcPolicy allows common formatting tags but strips scripts,
	// event handlers, and style blocks.
	ugcPolicy = bluemonday.UGCPolicy()
)

// SanitizeHTML strips dangerous markup from an HTML body.
func SanitizeHTML(body string) string {
	return ugcPolicy.Sanitize(body)
}

// RenderMarkdown converts a markdown body to sanitized HTML.
func RenderMarkdown(body string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return ugcPolicy.Sanitize(buf.String()), nil
}

// RenderHTML returns the HTML form of a content body based on its type.
// Text is returned unchanged, HTML is re-sanitized, markdown is rendered.
// JSON bodies have no HTML form and are returned unchanged.
func RenderHTML(contentType, body string) (string, error) {
	switch contentType {
	case model.ContentTypeMarkdown:
		return RenderMarkdown(body)
	case model.ContentTypeHTML:
		return SanitizeHTML(body), nil
	default:
		return body, nil
	}
}
