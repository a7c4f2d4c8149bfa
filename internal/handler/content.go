// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/compassioncourse/ccms-go/internal/markup"
	"github.com/compassioncourse/ccms-go/internal/middleware"
	"github.com/compassioncourse/ccms-go/internal/model"
	"github.com/compassioncourse/ccms-go/internal/service"
	"github.com/compassioncourse/ccms-go/internal/store"
)

// ContentHandler serves the public content endpoints the site frontend
// renders from. Unauthenticated callers only ever see published items;
// admin sessions additionally see unpublished items on the section route.
type ContentHandler struct {
	content *service.ContentService
}

// NewContentHandler creates a new ContentHandler.
func NewContentHandler(content *service.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// wantRender reports whether the caller asked for rendered HTML bodies.
func wantRender(r *http.Request) bool {
	return r.URL.Query().Get("render") == "html"
}

// toResponses converts items, optionally attaching rendered HTML.
func toResponses(items []model.Content, render bool) []ContentResponse {
	out := make([]ContentResponse, 0, len(items))
	for _, item := range items {
		resp := contentToResponse(item)
		if render {
			html, err := markup.RenderHTML(item.Type, item.Body)
			if err != nil {
				slog.Warn("rendering content body", "error", err, "content_id", item.ID)
			} else {
				resp.HTML = html
			}
		}
		out = append(out, resp)
	}
	return out
}

// List handles GET /api/content, returning published items grouped by
// section for a single-request page render.
func (h *ContentHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.content.ListPublished(r.Context(), "")
	if err != nil {
		logAndInternalError(w, "listing content", err)
		return
	}

	grouped := make(map[string][]ContentResponse)
	render := wantRender(r)
	for _, item := range items {
		resp := contentToResponse(item)
		if render {
			html, err := markup.RenderHTML(item.Type, item.Body)
			if err != nil {
				slog.Warn("rendering content body", "error", err, "content_id", item.ID)
			} else {
				resp.HTML = html
			}
		}
		grouped[item.Section] = append(grouped[item.Section], resp)
	}

	WriteSuccess(w, map[string]any{"content": grouped}, nil)
}

// BySection handles GET /api/content/section/{section}. Admin sessions see
// unpublished items too, so the panel can preview a section before it goes
// live.
func (h *ContentHandler) BySection(w http.ResponseWriter, r *http.Request) {
	section := chi.URLParam(r, "section")
	if !model.ValidSection(section) {
		WriteBadRequest(w, "Invalid section")
		return
	}

	var items []model.Content
	var err error
	if user := middleware.GetUser(r); user != nil && user.IsAdmin() {
		items, err = h.content.ListAll(r.Context(), store.ListContentParams{Section: section})
	} else {
		items, err = h.content.ListPublished(r.Context(), section)
	}
	if err != nil {
		logAndInternalError(w, "listing section content", err, "section", section)
		return
	}

	WriteSuccess(w, map[string]any{"content": toResponses(items, wantRender(r))}, nil)
}

// ByKey handles GET /api/content/key/{key}, returning the unique published
// item with that key.
func (h *ContentHandler) ByKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	item, err := h.content.GetByKey(r.Context(), key)
	if err != nil {
		if errors.Is(err, service.ErrContentNotFound) {
			WriteNotFound(w, "Content not found")
			return
		}
		logAndInternalError(w, "fetching content by key", err, "key", key)
		return
	}

	resp := contentToResponse(item)
	if wantRender(r) {
		html, err := markup.RenderHTML(item.Type, item.Body)
		if err != nil {
			slog.Warn("rendering content body", "error", err, "content_id", item.ID)
		} else {
			resp.HTML = html
		}
	}

	WriteSuccess(w, map[string]any{"content": resp}, nil)
}
