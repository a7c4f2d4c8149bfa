// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the JSON HTTP handlers for the public site
// content endpoints, authentication, and the admin panel API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/compassioncourse/ccms-go/internal/model"
)

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total   int64 `json:"total,omitempty"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
	Pages   int   `json:"pages,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteValidationFailed writes a 400 response with per-field errors.
func WriteValidationFailed(w http.ResponseWriter, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "validation_failed", "Validation failed", details)
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, nil)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteConflict writes a 409 Conflict response.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message, nil)
}

// WriteLocked writes a 423 Locked response.
func WriteLocked(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusLocked, "locked", message, nil)
}

// WriteInternalError writes a 500 response. The message shown to clients is
// always generic; callers log the underlying error themselves.
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error", nil)
}

// logAndInternalError logs the error with context and writes a 500.
func logAndInternalError(w http.ResponseWriter, msg string, err error, args ...any) {
	slog.Error(msg, append([]any{"error", err}, args...)...)
	WriteInternalError(w)
}

// UserResponse is the outward shape of a user record. The credential hash
// and lockout counters never leave the server.
type UserResponse struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func userToResponse(u model.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.LastLoginAt.Valid {
		resp.LastLoginAt = &u.LastLoginAt.Time
	}
	return resp
}

// ContentResponse is the outward shape of a content item.
type ContentResponse struct {
	ID             int64     `json:"id"`
	Key            string    `json:"key"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	Section        string    `json:"section"`
	IsPublished    bool      `json:"is_published"`
	Order          int64     `json:"order"`
	Version        int64     `json:"version"`
	LastModifiedBy *int64    `json:"last_modified_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// HTML is the rendered form of the body, present only when the caller
	// asked for it with ?render=html.
	HTML string `json:"html,omitempty"`
}

func contentToResponse(c model.Content) ContentResponse {
	resp := ContentResponse{
		ID:          c.ID,
		Key:         c.Key,
		Title:       c.Title,
		Content:     c.Body,
		Type:        c.Type,
		Section:     c.Section,
		IsPublished: c.IsPublished,
		Order:       c.Position,
		Version:     c.Version,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.LastModifiedBy.Valid {
		resp.LastModifiedBy = &c.LastModifiedBy.Int64
	}
	return resp
}

// VersionResponse is the outward shape of a history entry. Index is the
// entry's position in the history list, usable with the restore endpoint.
type VersionResponse struct {
	Index         int       `json:"index"`
	Content       string    `json:"content"`
	Version       int64     `json:"version"`
	ModifiedBy    *int64    `json:"modified_by,omitempty"`
	ModifierName  string    `json:"modifier_name,omitempty"`
	ModifierEmail string    `json:"modifier_email,omitempty"`
	ModifiedAt    time.Time `json:"modified_at"`
	Note          string    `json:"note,omitempty"`
}

func versionToResponse(index int, v model.ContentVersion) VersionResponse {
	resp := VersionResponse{
		Index:         index,
		Content:       v.Body,
		Version:       v.Version,
		ModifierName:  v.ModifierName,
		ModifierEmail: v.ModifierEmail,
		ModifiedAt:    v.ModifiedAt,
		Note:          v.Note,
	}
	if v.ModifiedBy.Valid {
		resp.ModifiedBy = &v.ModifiedBy.Int64
	}
	return resp
}

// decodeJSON decodes a request body, limiting it to 1MB.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid JSON body")
		return false
	}
	return true
}
