// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package handlers implements codexd's REST, SSE and WebSocket endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tacogips/codexd/internal/repo"
)

// errorBody is the flat `{error: message}` error shape,
// not a nested {code,message,details} wrapper.
type errorBody struct {
	Error string `json:"error"`
}

// WriteJSON writes data as the raw JSON response body.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// WriteError writes the flat `{"error": message}` body.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: message})
}

// WriteRepoError maps a repo.ErrNotFound into 404 and anything else into
// 500.
func WriteRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, repo.ErrNotFound) {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error())
}
