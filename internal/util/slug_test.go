// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"strings"
	"testing"
)

func TestKeyFromTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hero Title", "hero-title"},
		{"  Leading and trailing  ", "leading-and-trailing"},
		{"Café Résumé", "cafe-resume"},
		{"Multiple   Spaces", "multiple-spaces"},
		{"Special!@#Characters", "specialcharacters"},
		{"already-a-key", "already-a-key"},
		{"Under_score kept", "under_score-kept"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := KeyFromTitle(tt.title); got != tt.want {
			t.Errorf("KeyFromTitle(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestIsValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"hero-title", true},
		{"footer_text", true},
		{"a", true},
		{"", false},
		{"Hero-Title", false},
		{"has space", false},
		{"émoji", false},
		{strings.Repeat("a", 100), true},
		{strings.Repeat("a", 101), false},
	}
	for _, tt := range tests {
		if got := IsValidKey(tt.key); got != tt.want {
			t.Errorf("IsValidKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}
