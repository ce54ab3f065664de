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

// QueueHandler serves `/api/queues`.
type QueueHandler struct {
	queues *repo.QueueRepository
	exec   dispatch.Exec
	bus    events.EventBus
}

// NewQueueHandler creates a QueueHandler.
func NewQueueHandler(queues *repo.QueueRepository, sup *supervisor.Supervisor, bus events.EventBus) *QueueHandler {
	return &QueueHandler{queues: queues, exec: dispatch.NewExec(sup), bus: bus}
}

type createQueueRequest struct {
	Name        string `json:"name"`
	ProjectPath string `json:"projectPath"`
}

type addCommandRequest struct {
	Prompt string          `json:"prompt"`
	Images []string        `json:"images"`
	Mode   repo.PromptMode `json:"mode"`
}

type updateCommandRequest struct {
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
}

type moveCommandRequest struct {
	CommandID string `json:"commandId"`
	NewIndex  int    `json:"newIndex"`
}

type setCommandModeRequest struct {
	Mode repo.PromptMode `json:"mode"`
}

type runQueueRequest struct {
	Opts supervisor.Opts `json:"opts"`
}

// List answers `GET /api/queues`.
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.queues.List()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// Create answers `POST /api/queues`.
func (h *QueueHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := h.queues.Create(req.Name, req.ProjectPath)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Get answers `GET /api/queues/:id`.
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, err := h.queues.Get(mux.Vars(r)["id"])
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Delete answers `DELETE /api/queues/:id`.
func (h *QueueHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.queues.Delete(mux.Vars(r)["id"]); err != nil {
		WriteRepoError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddCommand answers `POST /api/queues/:id/commands`.
func (h *QueueHandler) AddCommand(w http.ResponseWriter, r *http.Request) {
	var req addCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Mode == "" {
		req.Mode = repo.ModeAuto
	}
	rec, err := h.queues.AddPrompt(mux.Vars(r)["id"], req.Prompt, req.Images, req.Mode)
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// RemoveCommand answers `DELETE /api/queues/:id/commands/:cid`.
func (h *QueueHandler) RemoveCommand(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rec, err := h.queues.RemoveCommand(vars["id"], vars["cid"])
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// UpdateCommand answers `PATCH /api/queues/:id/commands/:cid`.
func (h *QueueHandler) UpdateCommand(w http.ResponseWriter, r *http.Request) {
	var req updateCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	vars := mux.Vars(r)
	rec, err := h.queues.UpdatePrompt(vars["id"], vars["cid"], req.Prompt, req.Images)
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// MoveCommand answers `POST /api/queues/:id/commands/move`.
func (h *QueueHandler) MoveCommand(w http.ResponseWriter, r *http.Request) {
	var req moveCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rec, err := h.queues.MoveCommand(mux.Vars(r)["id"], req.CommandID, req.NewIndex)
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// SetCommandMode answers `POST /api/queues/:id/commands/:cid/mode`.
func (h *QueueHandler) SetCommandMode(w http.ResponseWriter, r *http.Request) {
	var req setCommandModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	vars := mux.Vars(r)
	rec, err := h.queues.SetCommandMode(vars["id"], vars["cid"], req.Mode)
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Stop answers `POST /api/queues/:id/stop`: a cooperative, between-prompts
// stop signal.
func (h *QueueHandler) Stop(w http.ResponseWriter, r *http.Request) {
	rec, err := h.queues.SetPaused(mux.Vars(r)["id"], true)
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Resume answers `POST /api/queues/:id/resume`.
func (h *QueueHandler) Resume(w http.ResponseWriter, r *http.Request) {
	rec, err := h.queues.SetPaused(mux.Vars(r)["id"], false)
	if err != nil {
		WriteRepoError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// alwaysRunning never signals a between-prompts stop; the stop route
// works by pausing the persisted record, which a future run checks up
// front instead of tearing down an in-flight run.
type alwaysRunning struct{}

func (alwaysRunning) Stopped() bool { return false }

// Run answers `POST /api/queues/:id/run` (SSE): runs the queue's pending
// prompts sequentially, persisting after every settled prompt and
// streaming each QueueEvent.
func (h *QueueHandler) Run(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.queues.Get(id)
	if err != nil {
		WriteRepoError(w, err)
		return
	}

	var req runQueueRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	queue := toDispatchQueue(rec)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	persist := func(q dispatch.Queue) error {
		return h.queues.Replace(fromDispatchQueue(id, rec, q))
	}

	_, err = dispatch.RunQueue(r.Context(), h.exec, queue, req.Opts, alwaysRunning{}, persist, func(ev dispatch.QueueEvent) {
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

func toDispatchQueue(rec repo.QueueRecord) dispatch.Queue {
	prompts := make([]dispatch.Prompt, len(rec.Prompts))
	for i, p := range rec.Prompts {
		prompts[i] = dispatch.Prompt{
			Prompt:      p.Prompt,
			Images:      p.Images,
			Status:      dispatch.PromptStatus(p.Status),
			StartedAt:   p.StartedAt,
			CompletedAt: p.CompletedAt,
		}
		if p.Result != nil {
			code := p.Result.ExitCode
			prompts[i].ExitCode = &code
		}
	}
	return dispatch.Queue{Paused: rec.Paused, ProjectPath: rec.ProjectPath, Prompts: prompts}
}

func fromDispatchQueue(id string, orig repo.QueueRecord, q dispatch.Queue) repo.QueueRecord {
	out := orig
	out.ID = id
	out.Paused = q.Paused
	out.Prompts = make([]repo.PromptRecord, len(q.Prompts))
	for i, p := range q.Prompts {
		rec := repo.PromptRecord{
			ID:          orig.Prompts[i].ID,
			Prompt:      p.Prompt,
			Images:      p.Images,
			Status:      repo.PromptRecordStatus(p.Status),
			Mode:        orig.Prompts[i].Mode,
			AddedAt:     orig.Prompts[i].AddedAt,
			StartedAt:   p.StartedAt,
			CompletedAt: p.CompletedAt,
		}
		if p.ExitCode != nil {
			rec.Result = &repo.PromptResult{ExitCode: *p.ExitCode}
		}
		out.Prompts[i] = rec
	}
	return out
}

func (h *QueueHandler) publish(ctx context.Context, queueID string, ev dispatch.QueueEvent) {
	if h.bus == nil {
		return
	}
	eventType := map[dispatch.QueueEventType]string{
		dispatch.QueueStopped:         events.EventQueueStopped,
		dispatch.QueuePromptStarted:   events.EventQueuePromptStarted,
		dispatch.QueuePromptCompleted: events.EventQueuePromptComplete,
		dispatch.QueuePromptFailed:    events.EventQueuePromptFailed,
		dispatch.QueueCompleted:       events.EventQueueCompleted,
	}[ev.Type]
	if eventType == "" {
		return
	}
	h.bus.Publish(ctx, events.Event{
		Type: eventType,
		Payload: map[string]interface{}{
			"queueId": queueID,
			"index":   ev.Index,
		},
	})
}
