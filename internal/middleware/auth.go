// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for authentication,
// authorization, and request hardening.
package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/compassioncourse/ccms-go/internal/auth"
	"github.com/compassioncourse/ccms-go/internal/model"
	"github.com/compassioncourse/ccms-go/internal/store"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ContextKeyUser holds the authenticated *model.User.
const ContextKeyUser ContextKey = "user"

// APIError is the JSON error envelope written by middleware rejections.
// It matches the handler package's error shape.
type APIError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// WriteAPIError writes a JSON error response.
func WriteAPIError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	apiErr := APIError{}
	apiErr.Error.Code = code
	apiErr.Error.Message = message

	_ = json.NewEncoder(w).Encode(apiErr)
}

// TokenFromRequest extracts the session token, preferring the cookie and
// falling back to an Authorization: Bearer header. Returns "" when neither
// is present.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(auth.TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// resolveUser validates the token and loads the referenced user. The
// returned message is a client-safe 401 reason; it is empty on success.
func resolveUser(r *http.Request, issuer *auth.TokenIssuer, queries *store.Queries) (model.User, string) {
	token := TokenFromRequest(r)
	if token == "" {
		return model.User{}, "Access denied. No token provided."
	}

	userID, err := issuer.Validate(token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			return model.User{}, "Token expired."
		default:
			return model.User{}, "Invalid token."
		}
	}

	user, err := queries.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, "Invalid token. User not found."
		}
		slog.Error("loading user for request", "error", err, "user_id", userID)
		return model.User{}, "Invalid token."
	}

	if !user.IsActive {
		return model.User{}, "Account is deactivated."
	}

	return user, ""
}

// RequireAuth creates middleware that rejects requests without a valid
// session token for an active user. The user is placed in the request
// context on success.
func RequireAuth(issuer *auth.TokenIssuer, db *sql.DB) func(http.Handler) http.Handler {
	queries := store.New(db)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, reason := resolveUser(r, issuer, queries)
			if reason != "" {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", reason)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth creates middleware with the same extraction and validation
// as RequireAuth, but any failure silently proceeds as unauthenticated.
// Used by public read endpoints that personalize output when a session is
// present.
func OptionalAuth(issuer *auth.TokenIssuer, db *sql.DB) func(http.Handler) http.Handler {
	queries := store.New(db)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, reason := resolveUser(r, issuer, queries)
			if reason != "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUser, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole creates middleware that requires the authenticated user's
// role to be in the allowed set. Must run after RequireAuth.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUser(r)
			if user == nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Authentication required.")
				return
			}

			if !user.Role.Allowed(roles...) {
				slog.Warn("access denied",
					"status", http.StatusForbidden,
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", user.ID,
					"user_role", user.Role,
				)
				WriteAPIError(w, http.StatusForbidden, "forbidden", "Insufficient permissions.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin requires the admin or super-admin role.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(model.RoleAdmin, model.RoleSuperAdmin)
}

// RequireSuperAdmin requires the super-admin role.
func RequireSuperAdmin() func(http.Handler) http.Handler {
	return RequireRole(model.RoleSuperAdmin)
}

// GetUser retrieves the current user from the request context.
// Returns nil if no user is in context.
func GetUser(r *http.Request) *model.User {
	user, ok := r.Context().Value(ContextKeyUser).(model.User)
	if !ok {
		return nil
	}
	return &user
}

// GetUserID returns the current user's ID from context, or 0 if not found.
func GetUserID(r *http.Request) int64 {
	if user := GetUser(r); user != nil {
		return user.ID
	}
	return 0
}
