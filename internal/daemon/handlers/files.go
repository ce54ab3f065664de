// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tacogips/codexd/internal/repo"
)

// FileHandler serves `/api/files`, the changed-file index.
type FileHandler struct {
	index *repo.FileChangeIndex
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(index *repo.FileChangeIndex) *FileHandler {
	return &FileHandler{index: index}
}

// List answers `GET /api/files`.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.index.List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// Get answers `GET /api/files/:id`, where :id is the tracked file's path.
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["id"]
	rec, err := h.index.Find(path)
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Find answers `GET /api/files/find?path=`.
func (h *FileHandler) Find(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	rec, err := h.index.Find(path)
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Rebuild answers `POST /api/files/rebuild`: it replaces the index
// wholesale with the posted record set.
func (h *FileHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Files []repo.ChangedFileRecord `json:"files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.index.Rebuild(req.Files); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"count": len(req.Files)})
}
