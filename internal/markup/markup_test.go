// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package markup

import (
	"strings"
	"testing"

	"github.com/compassioncourse/ccms-go/internal/model"
)

func TestSanitizeHTML(t *testing.T) {
	in := `<p>Hello</p><script>alert("xss")</script><a href="https://example.com" onclick="evil()">link</a>`
	out := SanitizeHTML(in)

	if strings.Contains(out, "<script") {
		t.Errorf("script tag survived sanitization: %s", out)
	}
	if strings.Contains(out, "onclick") {
		t.Errorf("event handler survived sanitization: %s", out)
	}
	if !strings.Contains(out, "<p>Hello</p>") {
		t.Errorf("benign markup was stripped: %s", out)
	}
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown("# Heading\n\nSome **bold** text.")
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}

	if !strings.Contains(out, "<h1") {
		t.Errorf("heading not rendered: %s", out)
	}
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Errorf("bold not rendered: %s", out)
	}
}

func TestRenderMarkdownSanitized(t *testing.T) {
	out, err := RenderMarkdown("hello\n\n<script>alert(1)</script>")
	if err != nil {
		t.Fatalf("RenderMarkdown: %v", err)
	}
	if strings.Contains(out, "<script") {
		t.Errorf("script tag survived markdown rendering: %s", out)
	}
}

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		contentType string
		body        string
		contains    string
	}{
		{model.ContentTypeText, "plain text", "plain text"},
		{model.ContentTypeMarkdown, "**bold**", "<strong>bold</strong>"},
		{model.ContentTypeHTML, "<em>em</em><script>x</script>", "<em>em</em>"},
		{model.ContentTypeJSON, `{"a":1}`, `{"a":1}`},
	}
	for _, tt := range tests {
		out, err := RenderHTML(tt.contentType, tt.body)
		if err != nil {
			t.Fatalf("RenderHTML(%s): %v", tt.contentType, err)
		}
		if !strings.Contains(out, tt.contains) {
			t.Errorf("RenderHTML(%s) = %q, want it to contain %q", tt.contentType, out, tt.contains)
		}
	}
}
