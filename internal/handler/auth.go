// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/compassioncourse/ccms-go/internal/auth"
	"github.com/compassioncourse/ccms-go/internal/middleware"
	"github.com/compassioncourse/ccms-go/internal/model"
	"github.com/compassioncourse/ccms-go/internal/service"
)

// AuthHandler serves registration, login, and session management.
type AuthHandler struct {
	users  *service.UserService
	tokens *auth.TokenIssuer
	events *service.EventService

	// secureCookies controls the Secure attribute on the token cookie;
	// off in development so plain-HTTP localhost keeps working.
	secureCookies bool
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(users *service.UserService, tokens *auth.TokenIssuer, events *service.EventService, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		users:         users,
		tokens:        tokens,
		events:        events,
		secureCookies: secureCookies,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateMeRequest struct {
	Name string `json:"name"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type sessionResponse struct {
	User  UserResponse `json:"user"`
	Token string       `json:"token"`
}

// Register handles POST /api/auth/register. New accounts always get the
// basic role; promotion is a separate super-admin operation.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = service.NormalizeEmail(req.Email)

	details := make(map[string]string)
	if msg := validateName(req.Name); msg != "" {
		details["name"] = msg
	}
	if !validEmail(req.Email) {
		details["email"] = "A valid email address is required"
	}
	if msg := validatePassword(req.Password); msg != "" {
		details["password"] = msg
	}
	if len(details) > 0 {
		WriteValidationFailed(w, details)
		return
	}

	user, err := h.users.Register(r.Context(), req.Name, req.Email, req.Password, model.RoleUser)
	if err != nil {
		if errors.Is(err, service.ErrDuplicateEmail) {
			WriteConflict(w, "Email is already registered")
			return
		}
		logAndInternalError(w, "registering user", err, "email", req.Email)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		logAndInternalError(w, "issuing token", err, "user_id", user.ID)
		return
	}
	auth.SetTokenCookie(w, token, h.secureCookies)

	h.events.LogAuthEvent(r.Context(), model.EventLevelInfo, "User registered",
		&user.ID, middleware.ClientIP(r), map[string]any{"email": user.Email})

	WriteCreated(w, sessionResponse{User: userToResponse(user), Token: token})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		WriteBadRequest(w, "Email and password are required")
		return
	}

	user, err := h.users.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAccountLocked):
			WriteLocked(w, "Account is temporarily locked due to too many failed login attempts. Please try again later.")
		case errors.Is(err, service.ErrAccountDisabled):
			WriteUnauthorized(w, "Account is deactivated")
		case errors.Is(err, service.ErrInvalidCredentials):
			WriteUnauthorized(w, "Invalid email or password")
		default:
			logAndInternalError(w, "verifying credentials", err)
		}
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		logAndInternalError(w, "issuing token", err, "user_id", user.ID)
		return
	}
	auth.SetTokenCookie(w, token, h.secureCookies)

	h.events.LogAuthEvent(r.Context(), model.EventLevelInfo, "User logged in",
		&user.ID, middleware.ClientIP(r), map[string]any{"email": user.Email})

	WriteSuccess(w, sessionResponse{User: userToResponse(user), Token: token}, nil)
}

// Logout handles POST /api/auth/logout. Tokens are stateless, so logout is
// clearing the cookie; a token held elsewhere stays valid until expiry.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w, h.secureCookies)

	if userID := middleware.GetUserID(r); userID != 0 {
		h.events.LogAuthEvent(r.Context(), model.EventLevelInfo, "User logged out",
			&userID, middleware.ClientIP(r), nil)
	}

	WriteSuccess(w, map[string]string{"message": "Logged out"}, nil)
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required.")
		return
	}
	WriteSuccess(w, map[string]UserResponse{"user": userToResponse(*user)}, nil)
}

// UpdateMe handles PUT /api/auth/me, updating the caller's display name.
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required.")
		return
	}

	var req updateMeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if msg := validateName(req.Name); msg != "" {
		WriteValidationFailed(w, map[string]string{"name": msg})
		return
	}

	updated, err := h.users.UpdateName(r.Context(), user.ID, req.Name)
	if err != nil {
		logAndInternalError(w, "updating profile", err, "user_id", user.ID)
		return
	}

	WriteSuccess(w, map[string]UserResponse{"user": userToResponse(updated)}, nil)
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required.")
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if msg := validatePassword(req.NewPassword); msg != "" {
		WriteValidationFailed(w, map[string]string{"new_password": msg})
		return
	}

	err := h.users.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			WriteUnauthorized(w, "Current password is incorrect")
			return
		}
		logAndInternalError(w, "changing password", err, "user_id", user.ID)
		return
	}

	h.events.LogAuthEvent(r.Context(), model.EventLevelInfo, "User changed password",
		&user.ID, middleware.ClientIP(r), nil)

	WriteSuccess(w, map[string]string{"message": "Password updated"}, nil)
}

// Refresh handles POST /api/auth/refresh, issuing a fresh 24-hour token for
// the current session.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		WriteUnauthorized(w, "Authentication required.")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		logAndInternalError(w, "issuing token", err, "user_id", user.ID)
		return
	}
	auth.SetTokenCookie(w, token, h.secureCookies)

	WriteSuccess(w, map[string]string{"token": token}, nil)
}
