// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"net/http"
	"time"
)

// TokenCookieName is the cookie that carries the session token.
const TokenCookieName = "token"

// tokenCookie builds the session cookie. Set and clear must produce
// identical attributes apart from value and max-age: a mismatch would
// leave a stale cookie behind on logout.
func tokenCookie(value string, maxAge time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// SetTokenCookie attaches the session token to the response as an
// httpOnly cookie scoped to the whole site.
func SetTokenCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, tokenCookie(token, TokenTTL, secure))
}

// ClearTokenCookie expires the session cookie using the same attributes
// it was set with.
func ClearTokenCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, tokenCookie("", -time.Second, secure))
}
