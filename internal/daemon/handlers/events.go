// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tacogips/codexd/internal/events"
	"github.com/tacogips/codexd/internal/index"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHandler serves the event-history query route and the `/ws`
// subscribe protocol.
type EventHandler struct {
	bus events.EventBus
	idx *index.Index
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(bus events.EventBus, idx *index.Index) *EventHandler {
	return &EventHandler{bus: bus, idx: idx}
}

// History answers `GET /events`.
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := events.EventFilter{}

	if types := query["type"]; len(types) > 0 {
		filter.Types = types
	}
	if sid := query.Get("sessionId"); sid != "" {
		filter.SessionID = sid
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if sinceStr := query.Get("since"); sinceStr != "" {
		if t, err := time.Parse(time.RFC3339, sinceStr); err == nil {
			filter.Since = t
		}
	}
	if untilStr := query.Get("until"); untilStr != "" {
		if t, err := time.Parse(time.RFC3339, untilStr); err == nil {
			filter.Until = t
		}
	}

	list, err := h.bus.History(filter)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, list)
}

// wsClientMessage is one client→server frame of the `/ws` protocol.
type wsClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// wsServerMessage is one server→client frame of the `/ws` protocol.
type wsServerMessage struct {
	Type      string       `json:"type"`
	SessionID string       `json:"sessionId,omitempty"`
	Event     events.Event `json:"event,omitempty"`
	Path      string       `json:"path,omitempty"`
	Channel   string       `json:"channel,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// WebSocket implements the `/ws` subscribe protocol: clients
// subscribe/unsubscribe to individual sessions or to new-session
// notifications; the server relays matching bus events and the daemon's
// own `daemon.new_session` events as `session_event`/`new_session`
// frames.
func (h *EventHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	writeJSON := func(v wsServerMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	subscriptions := make(map[string]events.SubscriptionID)
	var subMu sync.Mutex

	outCh := make(chan wsServerMessage, 256)
	done := make(chan struct{})

	subscribeSession := func(sessionID string) {
		subMu.Lock()
		defer subMu.Unlock()
		if _, ok := subscriptions[sessionID]; ok {
			return
		}
		subID, err := h.bus.SubscribeAsync("*", func(_ context.Context, ev events.Event) error {
			if ev.SessionID != sessionID {
				return nil
			}
			select {
			case outCh <- wsServerMessage{Type: "session_event", SessionID: ev.SessionID, Event: ev}:
			case <-done:
			default:
			}
			return nil
		}, 100)
		if err != nil {
			return
		}
		subscriptions[sessionID] = subID
	}

	unsubscribeSession := func(sessionID string) {
		subMu.Lock()
		defer subMu.Unlock()
		if subID, ok := subscriptions[sessionID]; ok {
			h.bus.Unsubscribe(subID)
			delete(subscriptions, sessionID)
		}
	}

	subscribeNewSessions := func() {
		subMu.Lock()
		defer subMu.Unlock()
		const key = "__new_sessions__"
		if _, ok := subscriptions[key]; ok {
			return
		}
		subID, err := h.bus.SubscribeAsync(events.EventDaemonNewSession, func(_ context.Context, ev events.Event) error {
			path, _ := ev.Payload["path"].(string)
			select {
			case outCh <- wsServerMessage{Type: "new_session", Path: path}:
			case <-done:
			default:
			}
			return nil
		}, 100)
		if err != nil {
			return
		}
		subscriptions[key] = subID
	}

	defer func() {
		subMu.Lock()
		for _, subID := range subscriptions {
			h.bus.Unsubscribe(subID)
		}
		subMu.Unlock()
	}()

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	pingTicker := time.NewTicker(54 * time.Second)
	defer pingTicker.Stop()

	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg wsClientMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				writeJSON(wsServerMessage{Type: "error", Message: "invalid message"})
				continue
			}
			switch msg.Type {
			case "subscribe_session":
				subscribeSession(msg.SessionID)
				writeJSON(wsServerMessage{Type: "subscribed", Channel: "session:" + msg.SessionID})
			case "unsubscribe_session":
				unsubscribeSession(msg.SessionID)
			case "subscribe_new_sessions":
				subscribeNewSessions()
				writeJSON(wsServerMessage{Type: "subscribed", Channel: "new_sessions"})
			default:
				writeJSON(wsServerMessage{Type: "error", Message: "unknown message type"})
			}
		}
	}()

	for {
		select {
		case msg := <-outCh:
			if err := writeJSON(msg); err != nil {
				return
			}
		case <-pingTicker.C:
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
