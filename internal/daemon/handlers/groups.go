// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tacogips/codexd/internal/dispatch"
	"github.com/tacogips/codexd/internal/events"
	"github.com/tacogips/codexd/internal/repo"
	"github.com/tacogips/codexd/internal/supervisor"
)

// GroupHandler serves `/api/groups`.
type GroupHandler struct {
	groups *repo.GroupRepository
	exec   dispatch.Exec
	bus    events.EventBus
}

// NewGroupHandler creates a GroupHandler.
func NewGroupHandler(groups *repo.GroupRepository, sup *supervisor.Supervisor, bus events.EventBus) *GroupHandler {
	return &GroupHandler{groups: groups, exec: dispatch.NewExec(sup), bus: bus}
}

type createGroupRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type addSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type runGroupRequest struct {
	Prompt string         `json:"prompt"`
	Opts   supervisor.Opts `json:"opts"`
}

// List answers `GET /api/groups`.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.groups.List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// Create answers `POST /api/groups`.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := h.groups.Create(req.Name, req.Description)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Get answers `GET /api/groups/:id`.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.groups.Get(mux.Vars(r)["id"])
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Delete answers `DELETE /api/groups/:id`.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.groups.Delete(mux.Vars(r)["id"]); err != nil {
		WriteRepoError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddSession answers `POST /api/groups/:id/sessions`.
func (h *GroupHandler) AddSession(w http.ResponseWriter, r *http.Request) {
	var req addSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := h.groups.AddSession(mux.Vars(r)["id"], req.SessionID)
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// RemoveSession answers `DELETE /api/groups/:id/sessions/:sid`.
func (h *GroupHandler) RemoveSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rec, err := h.groups.RemoveSession(vars["id"], vars["sid"])
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Pause answers `POST /api/groups/:id/pause`.
func (h *GroupHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

// Resume answers `POST /api/groups/:id/resume`.
func (h *GroupHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *GroupHandler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	rec, err := h.groups.SetPaused(mux.Vars(r)["id"], paused)
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Run answers `POST /api/groups/:id/run` (SSE): it fans prompt out across
// the group's sessions and streams each GroupEvent as it happens,
// publishing the same events onto the bus for any `/ws` subscriber.
func (h *GroupHandler) Run(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.groups.Get(id)
	if err != nil {
		WriteRepoError(w, err)
		return
	}

	var req runGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	group := dispatch.Group{
		Paused:        rec.Paused,
		SessionIDs:    rec.SessionIDs,
		MaxConcurrent: rec.MaxConcurrent,
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	err = dispatch.RunGroup(r.Context(), h.exec, group, req.Prompt, req.Opts, func(ev dispatch.GroupEvent) {
		h.publish(r.Context(), id, ev)
		data, mErr := json.Marshal(ev)
		if mErr != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	})
	if err != nil {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

func (h *GroupHandler) publish(ctx context.Context, groupID string, ev dispatch.GroupEvent) {
	if h.bus == nil {
		return
	}
	eventType := map[dispatch.GroupEventType]string{
		dispatch.GroupSessionStarted:   events.EventGroupSessionStarted,
		dispatch.GroupSessionCompleted: events.EventGroupSessionCompleted,
		dispatch.GroupSessionFailed:    events.EventGroupSessionFailed,
		dispatch.GroupCompleted:        events.EventGroupCompleted,
	}[ev.Type]
	if eventType == "" {
		return
	}
	h.bus.Publish(ctx, events.Event{
		Type:      eventType,
		SessionID: ev.SessionID,
		Payload: map[string]interface{}{
			"groupId":  groupID,
			"exitCode": ev.ExitCode,
			"snapshot": ev.Snapshot,
		},
	})
}
