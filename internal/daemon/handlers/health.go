// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"time"
)

// HealthHandler serves `GET /health` and `GET /status`.
type HealthHandler struct {
	startedAt time.Time
	mode      string
	port      int
}

// NewHealthHandler creates a HealthHandler. mode is "http" or
// "app-server".
func NewHealthHandler(mode string, port int) *HealthHandler {
	return &HealthHandler{startedAt: time.Now(), mode: mode, port: port}
}

// Health answers `GET /health` with 200 and `{"status":"ok"}`; it is exempt
// from auth so Server.Start's staleness check can poll it unconditionally.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status answers `GET /status` with the daemon's uptime, mode and port.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "running",
		"mode":      h.mode,
		"port":      h.port,
		"startedAt": h.startedAt,
		"uptime":    time.Since(h.startedAt).String(),
	})
}
