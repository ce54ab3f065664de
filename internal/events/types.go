// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the in-memory pub/sub bus that carries
// dispatch-engine and session-runtime lifecycle events to the HTTP/WS
// daemon's SSE and /ws surface.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"sessionId,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types     []string  // Event types to match (supports wildcards)
	SessionID string    // Filter by session id
	Since     time.Time // Events after this time
	Until     time.Time // Events before this time
	Limit     int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Event types published by the dispatch engine, session runtime and
// daemon.
const (
	// Session runtime / normalized events
	EventSessionStarted   = "session.started"
	EventSessionMessage   = "session.message"
	EventSessionCompleted = "session.completed"
	EventSessionError     = "session.error"

	// Group runner events
	EventGroupSessionStarted   = "group.session_started"
	EventGroupSessionCompleted = "group.session_completed"
	EventGroupSessionFailed    = "group.session_failed"
	EventGroupCompleted        = "group.completed"

	// Queue runner events
	EventQueueStopped        = "queue.stopped"
	EventQueuePromptStarted  = "queue.prompt_started"
	EventQueuePromptComplete = "queue.prompt_completed"
	EventQueuePromptFailed   = "queue.prompt_failed"
	EventQueueCompleted      = "queue.completed"

	// Daemon lifecycle/index events
	EventDaemonNewSession = "daemon.new_session"
)
