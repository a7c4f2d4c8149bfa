// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

var emailRe = regexp.MustCompile(`^[\w.+-]+@[\w-]+(\.[\w-]+)+$`)

const (
	minPasswordLength = 6
	minNameLength     = 2
	maxNameLength     = 100
)

// validEmail reports whether s looks like an email address. Kept
// deliberately loose; real validation happens when mail is delivered.
func validEmail(s string) bool {
	return len(s) <= 254 && emailRe.MatchString(s)
}

// validatePassword checks the password strength rules: at least six
// characters with an uppercase letter, a lowercase letter, and a digit.
// Returns a client-safe reason, or "" when the password is acceptable.
func validatePassword(s string) string {
	if utf8.RuneCountInString(s) < minPasswordLength {
		return "Password must be at least 6 characters long"
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return "Password must contain at least one uppercase letter, one lowercase letter, and one number"
	}
	return ""
}

// validateName checks display name length bounds.
func validateName(s string) string {
	n := utf8.RuneCountInString(s)
	switch {
	case n < minNameLength:
		return "Name must be at least 2 characters long"
	case n > maxNameLength:
		return "Name must be at most 100 characters long"
	}
	return ""
}
