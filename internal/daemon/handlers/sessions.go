// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/tacogips/codexd/internal/index"
	"github.com/tacogips/codexd/internal/normalize"
	"github.com/tacogips/codexd/internal/repo"
	"github.com/tacogips/codexd/internal/runtime"
	"github.com/tacogips/codexd/internal/supervisor"
)

// SessionHandler serves the session listing, event-tailing, start and
// cancel routes.
type SessionHandler struct {
	idx    *index.Index
	runner *runtime.Runner
	files  *repo.FileChangeIndex

	mu   sync.Mutex
	live map[string]*runtime.RunningSession
}

// NewSessionHandler creates a SessionHandler. files may be nil to disable
// changed-file tracking.
func NewSessionHandler(idx *index.Index, runner *runtime.Runner, files *repo.FileChangeIndex) *SessionHandler {
	return &SessionHandler{idx: idx, runner: runner, files: files, live: make(map[string]*runtime.RunningSession)}
}

// recordFileChange feeds local_shell tool calls through the shell-command
// heuristic so the changed-file index accumulates as sessions run.
func (h *SessionHandler) recordFileChange(ev normalize.Event) {
	if h.files == nil || ev.Type != normalize.EventToolCall || ev.Name != "local_shell" {
		return
	}
	input, _ := ev.Input.(map[string]any)
	if input == nil {
		return
	}
	cmd := shellCommandString(input["command"])
	if cmd == "" {
		if action, _ := input["action"].(map[string]any); action != nil {
			cmd = shellCommandString(action["command"])
		}
	}
	if cmd == "" {
		return
	}
	if path, op, ok := repo.ClassifyShellCommand(cmd); ok {
		h.files.Record(path, op, time.Now())
	}
}

// shellCommandString flattens a command that may arrive as a string or an
// argv-style list.
func shellCommandString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		parts := make([]string, 0, len(c))
		for _, p := range c {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func (h *SessionHandler) track(id string, rs *runtime.RunningSession) {
	h.mu.Lock()
	h.live[id] = rs
	h.mu.Unlock()
}

func (h *SessionHandler) untrack(id string) {
	h.mu.Lock()
	delete(h.live, id)
	h.mu.Unlock()
}

// List answers `GET /api/sessions[?source,cwd,branch,limit,offset]`.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := index.ListOptions{
		Source:    q.Get("source"),
		Cwd:       q.Get("cwd"),
		GitBranch: q.Get("branch"),
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = offset
	}

	page, err := h.idx.List(opts)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// Get answers `GET /api/sessions/:id`.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, ok := h.idx.Find(id)
	if !ok {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("session not found: %s", id))
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

type startSessionRequest struct {
	Prompt          string          `json:"prompt"`
	ResumeSessionID string          `json:"resumeSessionId"`
	Granularity     string          `json:"granularity"`      // "event" (default) | "char"
	Replay          *bool           `json:"replay,omitempty"` // resume only; default true
	Opts            supervisor.Opts `json:"opts"`
}

// Create answers `POST /api/sessions` (SSE): it starts a new session (or
// resumes one when resumeSessionId is set), streams its normalized
// events, and closes with a `session.completed` event.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Prompt == "" {
		WriteError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	granularity := runtime.GranularityEvent
	if req.Granularity == string(runtime.GranularityChar) {
		granularity = runtime.GranularityChar
	}

	// Resumes replay the session's existing rollout lines unless the
	// caller opts out.
	replay := req.ResumeSessionID != ""
	if req.Replay != nil {
		replay = *req.Replay
	}

	rs, err := h.runner.StartSession(r.Context(), runtime.StartConfig{
		Prompt:          req.Prompt,
		ResumeSessionID: req.ResumeSessionID,
		ReplayExisting:  replay,
		Granularity:     granularity,
		Opts:            req.Opts,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Track under the current id, re-keying when a brand-new session's
	// placeholder id resolves to the rollout's real id.
	h.track(rs.SessionID(), rs)
	prevID := rs.SessionID()
	rs.OnSessionID(func(id string) {
		h.untrack(prevID)
		h.track(id, rs)
		prevID = id
	})
	defer func() { h.untrack(rs.SessionID()) }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	norm := normalize.New(normalize.IncludeStarted)
	for chunk := range rs.Messages() {
		for _, ev := range norm.Normalize(rs.SessionID(), chunk) {
			h.recordFileChange(ev)
			data, mErr := json.Marshal(ev)
			if mErr != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}

	result := <-rs.Completion()
	data, _ := json.Marshal(normalize.Completed(rs.SessionID(), result.ExitCode))
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// Cancel answers `POST /api/sessions/:id/cancel`: it kills the tracked
// running session's subprocess and stops its watcher.
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	h.mu.Lock()
	rs, ok := h.live[id]
	h.mu.Unlock()
	if !ok {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("no running session: %s", id))
		return
	}
	if err := rs.Cancel(); err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Events answers `GET /api/sessions/:id/events[?follow=true]` (SSE): it
// replays the session's rollout file as normalized events and, when
// follow is set, keeps the connection open and streams new appends.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	follow := r.URL.Query().Get("follow") == "true"

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	rs, err := h.runner.TailSession(r.Context(), id, follow)
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	norm := normalize.New(normalize.IncludeStarted)
	for chunk := range rs.Messages() {
		for _, ev := range norm.Normalize(id, chunk) {
			h.recordFileChange(ev)
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}

	result := <-rs.Completion()
	data, _ := json.Marshal(normalize.Completed(id, result.ExitCode))
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
