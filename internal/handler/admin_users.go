// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/compassioncourse/ccms-go/internal/middleware"
	"github.com/compassioncourse/ccms-go/internal/model"
	"github.com/compassioncourse/ccms-go/internal/service"
	"github.com/compassioncourse/ccms-go/internal/store"
)

// AdminUserHandler serves the admin panel's user management API. Listing
// and status toggles need the admin role; role changes are gated to
// super-admins at the router.
type AdminUserHandler struct {
	users   *service.UserService
	content *service.ContentService
}

// NewAdminUserHandler creates a new AdminUserHandler.
func NewAdminUserHandler(users *service.UserService, content *service.ContentService) *AdminUserHandler {
	return &AdminUserHandler{users: users, content: content}
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type changeRoleRequest struct {
	Role string `json:"role"`
}

// userIDParam parses the {id} route parameter.
func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		WriteBadRequest(w, "Invalid user ID")
		return 0, false
	}
	return id, true
}

// writeUserError maps credential store failures to HTTP responses.
func writeUserError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		WriteNotFound(w, "User not found")
	case errors.Is(err, service.ErrSuperAdminImmutable):
		WriteForbidden(w, "Super admin accounts cannot be modified")
	default:
		logAndInternalError(w, logMsg, err)
	}
}

// List handles GET /api/admin/users with role/active filters and paging.
func (h *AdminUserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(q.Get("limit"))
	if perPage < 1 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}

	arg := store.ListUsersParams{
		Limit:  int64(perPage),
		Offset: int64((page - 1) * perPage),
	}
	if role := q.Get("role"); role != "" {
		if !model.ValidRole(role) {
			WriteBadRequest(w, "Invalid role filter")
			return
		}
		arg.Role = model.Role(role)
	}
	if v := q.Get("active"); v != "" {
		active := v == "true"
		arg.Active = &active
	}

	users, total, err := h.users.List(r.Context(), arg)
	if err != nil {
		logAndInternalError(w, "listing users", err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userToResponse(u))
	}

	pages := int((total + int64(perPage) - 1) / int64(perPage))
	WriteSuccess(w, map[string]any{"users": out}, &Meta{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pages,
	})
}

// Get handles GET /api/admin/users/{id}.
func (h *AdminUserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeUserError(w, err, "fetching user")
		return
	}

	WriteSuccess(w, map[string]UserResponse{"user": userToResponse(user)}, nil)
}

// ToggleStatus handles PUT /api/admin/users/{id}/toggle-status, flipping
// the soft-deactivation flag. Super-admin accounts answer 403.
func (h *AdminUserHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.users.ToggleActive(r.Context(), id, middleware.GetUserID(r))
	if err != nil {
		writeUserError(w, err, "toggling user status")
		return
	}

	WriteSuccess(w, map[string]UserResponse{"user": userToResponse(user)}, nil)
}

// ChangeRole handles PUT /api/admin/users/{id}/role. Only super-admins
// reach this route; assigning the super-admin role itself is refused.
func (h *AdminUserHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req changeRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !model.ValidRole(req.Role) {
		WriteBadRequest(w, "Invalid role")
		return
	}
	role := model.Role(req.Role)
	if role == model.RoleSuperAdmin {
		WriteForbidden(w, "Cannot assign the super admin role")
		return
	}

	target, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeUserError(w, err, "fetching user")
		return
	}
	if target.IsSuperAdmin() {
		WriteForbidden(w, "Super admin accounts cannot be modified")
		return
	}

	user, err := h.users.ChangeRole(r.Context(), id, role, middleware.GetUserID(r))
	if err != nil {
		writeUserError(w, err, "changing user role")
		return
	}

	WriteSuccess(w, map[string]UserResponse{"user": userToResponse(user)}, nil)
}

// Stats handles GET /api/admin/stats, the dashboard numbers.
func (h *AdminUserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	totalUsers, recentUsers, err := h.users.Stats(r.Context())
	if err != nil {
		logAndInternalError(w, "loading user stats", err)
		return
	}
	publishedContent, err := h.content.Stats(r.Context())
	if err != nil {
		logAndInternalError(w, "loading content stats", err)
		return
	}

	WriteSuccess(w, map[string]any{
		"stats": map[string]int64{
			"active_users":      totalUsers,
			"new_users_7d":      recentUsers,
			"published_content": publishedContent,
		},
	}, nil)
}
