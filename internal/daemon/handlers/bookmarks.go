// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tacogips/codexd/internal/repo"
)

// BookmarkHandler serves `/api/bookmarks`, gated by the `bookmark:*`
// permission domain.
type BookmarkHandler struct {
	bookmarks *repo.BookmarkRepository
}

// NewBookmarkHandler creates a BookmarkHandler.
func NewBookmarkHandler(bookmarks *repo.BookmarkRepository) *BookmarkHandler {
	return &BookmarkHandler{bookmarks: bookmarks}
}

// List answers `GET /api/bookmarks[?sessionId]`.
func (h *BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.bookmarks.List(r.URL.Query().Get("sessionId"))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// Get answers `GET /api/bookmarks/:id`.
func (h *BookmarkHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.bookmarks.Get(mux.Vars(r)["id"])
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Create answers `POST /api/bookmarks`, validating the posted shape
// against the per-type field rules before persisting.
func (h *BookmarkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rec repo.BookmarkRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := h.bookmarks.Create(rec)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, created)
}

// Delete answers `DELETE /api/bookmarks/:id`.
func (h *BookmarkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.bookmarks.Delete(mux.Vars(r)["id"]); err != nil {
		WriteRepoError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
