// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package daemon implements codexd's HTTP+WebSocket surface and its
// pid-file lifecycle.
package daemon

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tacogips/codexd/internal/auth"
	"github.com/tacogips/codexd/internal/daemon/handlers"
	"github.com/tacogips/codexd/internal/daemon/middleware"
	"github.com/tacogips/codexd/internal/events"
	"github.com/tacogips/codexd/internal/index"
	"github.com/tacogips/codexd/internal/repo"
	"github.com/tacogips/codexd/internal/runtime"
	"github.com/tacogips/codexd/internal/supervisor"
)

// Dependencies holds all collaborators the route table needs.
type Dependencies struct {
	Index       *index.Index
	Runner      *runtime.Runner
	Supervisor  *supervisor.Supervisor
	EventBus    events.EventBus
	Groups      *repo.GroupRepository
	Queues      *repo.QueueRepository
	Bookmarks   *repo.BookmarkRepository
	FileChanges *repo.FileChangeIndex
	Tokens      *repo.TokenRepository

	// StaticToken, when non-empty, makes every non-health route require
	// exactly this bearer credential; otherwise presented bearers are
	// resolved as managed tokens against Tokens.
	StaticToken string

	Mode string
	Port int
}

// NewRouter builds the daemon's route table, with the global
// middleware chain and per-route permission declarations. The chain is
// applied outside the mux so `OPTIONS *` preflights and unknown routes
// still pass through CORS and logging.
func NewRouter(deps Dependencies) http.Handler {
	r := mux.NewRouter()

	perm := middleware.RequirePermission

	healthHandler := handlers.NewHealthHandler(deps.Mode, deps.Port)
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")
	r.HandleFunc("/status", healthHandler.Status).Methods("GET")

	eventHandler := handlers.NewEventHandler(deps.EventBus, deps.Index)
	r.HandleFunc("/events", perm(auth.PermSessionRead, eventHandler.History)).Methods("GET")
	r.HandleFunc("/ws", perm(auth.PermSessionRead, eventHandler.WebSocket)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	sessionHandler := handlers.NewSessionHandler(deps.Index, deps.Runner, deps.FileChanges)
	api.HandleFunc("/sessions", perm(auth.PermSessionRead, sessionHandler.List)).Methods("GET")
	api.HandleFunc("/sessions", perm(auth.PermSessionCreate, sessionHandler.Create)).Methods("POST")
	api.HandleFunc("/sessions/{id}", perm(auth.PermSessionRead, sessionHandler.Get)).Methods("GET")
	api.HandleFunc("/sessions/{id}/events", perm(auth.PermSessionRead, sessionHandler.Events)).Methods("GET")
	api.HandleFunc("/sessions/{id}/cancel", perm(auth.PermSessionCancel, sessionHandler.Cancel)).Methods("POST")

	groupHandler := handlers.NewGroupHandler(deps.Groups, deps.Supervisor, deps.EventBus)
	api.HandleFunc("/groups", perm("group:read", groupHandler.List)).Methods("GET")
	api.HandleFunc("/groups", perm("group:create", groupHandler.Create)).Methods("POST")
	api.HandleFunc("/groups/{id}", perm("group:read", groupHandler.Get)).Methods("GET")
	api.HandleFunc("/groups/{id}", perm("group:delete", groupHandler.Delete)).Methods("DELETE")
	api.HandleFunc("/groups/{id}/sessions", perm("group:update", groupHandler.AddSession)).Methods("POST")
	api.HandleFunc("/groups/{id}/sessions/{sid}", perm("group:update", groupHandler.RemoveSession)).Methods("DELETE")
	api.HandleFunc("/groups/{id}/run", perm("group:run", groupHandler.Run)).Methods("POST")
	api.HandleFunc("/groups/{id}/pause", perm("group:update", groupHandler.Pause)).Methods("POST")
	api.HandleFunc("/groups/{id}/resume", perm("group:update", groupHandler.Resume)).Methods("POST")

	queueHandler := handlers.NewQueueHandler(deps.Queues, deps.Supervisor, deps.EventBus)
	api.HandleFunc("/queues", perm("queue:read", queueHandler.List)).Methods("GET")
	api.HandleFunc("/queues", perm("queue:create", queueHandler.Create)).Methods("POST")
	api.HandleFunc("/queues/{id}", perm("queue:read", queueHandler.Get)).Methods("GET")
	api.HandleFunc("/queues/{id}", perm("queue:delete", queueHandler.Delete)).Methods("DELETE")
	api.HandleFunc("/queues/{id}/commands", perm("queue:update", queueHandler.AddCommand)).Methods("POST")
	api.HandleFunc("/queues/{id}/commands/move", perm("queue:update", queueHandler.MoveCommand)).Methods("POST")
	api.HandleFunc("/queues/{id}/commands/{cid}", perm("queue:update", queueHandler.UpdateCommand)).Methods("PATCH")
	api.HandleFunc("/queues/{id}/commands/{cid}", perm("queue:update", queueHandler.RemoveCommand)).Methods("DELETE")
	api.HandleFunc("/queues/{id}/commands/{cid}/mode", perm("queue:update", queueHandler.SetCommandMode)).Methods("POST")
	api.HandleFunc("/queues/{id}/run", perm("queue:run", queueHandler.Run)).Methods("POST")
	api.HandleFunc("/queues/{id}/stop", perm("queue:update", queueHandler.Stop)).Methods("POST")
	api.HandleFunc("/queues/{id}/resume", perm("queue:update", queueHandler.Resume)).Methods("POST")

	bookmarkHandler := handlers.NewBookmarkHandler(deps.Bookmarks)
	api.HandleFunc("/bookmarks", perm("bookmark:read", bookmarkHandler.List)).Methods("GET")
	api.HandleFunc("/bookmarks", perm("bookmark:create", bookmarkHandler.Create)).Methods("POST")
	api.HandleFunc("/bookmarks/{id}", perm("bookmark:read", bookmarkHandler.Get)).Methods("GET")
	api.HandleFunc("/bookmarks/{id}", perm("bookmark:delete", bookmarkHandler.Delete)).Methods("DELETE")

	fileHandler := handlers.NewFileHandler(deps.FileChanges)
	api.HandleFunc("/files", perm(auth.PermSessionRead, fileHandler.List)).Methods("GET")
	api.HandleFunc("/files/find", perm(auth.PermSessionRead, fileHandler.Find)).Methods("GET")
	api.HandleFunc("/files/rebuild", perm(auth.PermSessionCreate, fileHandler.Rebuild)).Methods("POST")
	api.HandleFunc("/files/{id:.+}", perm(auth.PermSessionRead, fileHandler.Get)).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, "not found")
	})

	authMW := middleware.Auth(deps.StaticToken, func(id string) (repo.TokenRecord, error) {
		return deps.Tokens.Get(id)
	})
	return middleware.Logging(middleware.Recovery(middleware.CORS(authMW(r))))
}
