// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/compassioncourse/ccms-go/internal/middleware"
	"github.com/compassioncourse/ccms-go/internal/service"
	"github.com/compassioncourse/ccms-go/internal/store"
)

// AdminContentHandler serves the admin panel's content management API:
// CRUD, version history, and restore. All routes sit behind the admin
// role gate.
type AdminContentHandler struct {
	content *service.ContentService
}

// NewAdminContentHandler creates a new AdminContentHandler.
func NewAdminContentHandler(content *service.ContentService) *AdminContentHandler {
	return &AdminContentHandler{content: content}
}

// idParam parses the {id} route parameter. Writes a 400 and returns false
// when it is not a positive integer.
func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		WriteBadRequest(w, "Invalid content ID")
		return 0, false
	}
	return id, true
}

// writeContentError maps content repository failures to HTTP responses.
func writeContentError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, service.ErrContentNotFound):
		WriteNotFound(w, "Content not found")
	case errors.Is(err, service.ErrDuplicateKey):
		WriteConflict(w, "Content key already exists")
	case errors.Is(err, service.ErrInvalidKey):
		WriteBadRequest(w, "Invalid content key")
	case errors.Is(err, service.ErrInvalidSection):
		WriteBadRequest(w, "Invalid section")
	case errors.Is(err, service.ErrInvalidContentType):
		WriteBadRequest(w, "Invalid content type")
	case errors.Is(err, service.ErrInvalidVersionIndex):
		WriteBadRequest(w, "Invalid version index")
	default:
		logAndInternalError(w, logMsg, err)
	}
}

type createContentRequest struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	Type        string `json:"type"`
	Section     string `json:"section"`
	Order       int64  `json:"order"`
	IsPublished *bool  `json:"is_published"`
}

type updateContentRequest struct {
	Key         *string `json:"key"`
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	Type        *string `json:"type"`
	Section     *string `json:"section"`
	Order       *int64  `json:"order"`
	IsPublished *bool   `json:"is_published"`
}

// List handles GET /api/admin/content, with optional section and published
// filters.
func (h *AdminContentHandler) List(w http.ResponseWriter, r *http.Request) {
	arg := store.ListContentParams{
		Section: r.URL.Query().Get("section"),
	}
	if v := r.URL.Query().Get("published"); v != "" {
		published := v == "true"
		arg.Published = &published
	}

	items, err := h.content.ListAll(r.Context(), arg)
	if err != nil {
		logAndInternalError(w, "listing content", err)
		return
	}

	WriteSuccess(w, map[string]any{"content": toResponses(items, false)}, nil)
}

// Get handles GET /api/admin/content/{id}.
func (h *AdminContentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	item, err := h.content.Get(r.Context(), id)
	if err != nil {
		writeContentError(w, err, "fetching content")
		return
	}

	WriteSuccess(w, map[string]any{"content": contentToResponse(item)}, nil)
}

// Create handles POST /api/admin/content.
func (h *AdminContentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Title == "" {
		WriteValidationFailed(w, map[string]string{"title": "Title is required"})
		return
	}

	item, err := h.content.Create(r.Context(), service.CreateContentInput{
		Key:         req.Key,
		Title:       req.Title,
		Body:        req.Content,
		Type:        req.Type,
		Section:     req.Section,
		Order:       req.Order,
		IsPublished: req.IsPublished,
	}, middleware.GetUserID(r))
	if err != nil {
		writeContentError(w, err, "creating content")
		return
	}

	WriteCreated(w, map[string]any{"content": contentToResponse(item)})
}

// Update handles PUT /api/admin/content/{id}. Only a body change advances
// the version counter; metadata edits leave it alone.
func (h *AdminContentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req updateContentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.content.Update(r.Context(), id, service.ContentPatch{
		Key:         req.Key,
		Title:       req.Title,
		Body:        req.Content,
		Type:        req.Type,
		Section:     req.Section,
		Order:       req.Order,
		IsPublished: req.IsPublished,
	}, middleware.GetUserID(r))
	if err != nil {
		writeContentError(w, err, "updating content")
		return
	}

	WriteSuccess(w, map[string]any{"content": contentToResponse(item)}, nil)
}

// Delete handles DELETE /api/admin/content/{id}. The item's history goes
// with it.
func (h *AdminContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := h.content.Delete(r.Context(), id, middleware.GetUserID(r)); err != nil {
		writeContentError(w, err, "deleting content")
		return
	}

	WriteSuccess(w, map[string]string{"message": "Content deleted"}, nil)
}

// History handles GET /api/admin/content/{id}/history, oldest entry first.
// The entry index is what the restore endpoint takes.
func (h *AdminContentHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	versions, err := h.content.History(r.Context(), id)
	if err != nil {
		writeContentError(w, err, "loading content history")
		return
	}

	out := make([]VersionResponse, 0, len(versions))
	for i, v := range versions {
		out = append(out, versionToResponse(i, v))
	}

	WriteSuccess(w, map[string]any{"history": out}, nil)
}

// Restore handles POST /api/admin/content/{id}/restore/{index}.
func (h *AdminContentHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		WriteBadRequest(w, "Invalid version index")
		return
	}

	item, err := h.content.Restore(r.Context(), id, index, middleware.GetUserID(r))
	if err != nil {
		writeContentError(w, err, "restoring content")
		return
	}

	WriteSuccess(w, map[string]any{"content": contentToResponse(item)}, nil)
}
