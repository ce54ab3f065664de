// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package normalize maps the provider-specific Chunk stream produced by
// internal/runtime into a provider-agnostic event vocabulary.
package normalize

import (
	"encoding/json"
	"sync"

	"github.com/tacogips/codexd/internal/rollout"
	"github.com/tacogips/codexd/internal/runtime"
)

// EventType is the provider-agnostic event vocabulary a Normalizer emits.
type EventType string

const (
	EventSessionStarted   EventType = "session.started"
	EventSessionCompleted EventType = "session.completed"
	EventSessionError     EventType = "session.error"
	EventAssistantDelta   EventType = "assistant.delta"
	EventAssistantSnap    EventType = "assistant.snapshot"
	EventToolCall         EventType = "tool.call"
	EventToolResult       EventType = "tool.result"
	EventActivity         EventType = "activity"
)

// Completed builds the session.completed event emitted once a
// runtime.RunningSession finishes, so callers can push it through the same
// Event encoding used for chunk-derived events.
func Completed(sessionID string, exitCode int) Event {
	success := exitCode == 0
	return Event{Type: EventSessionCompleted, SessionID: sessionID, Success: &success, ExitCode: &exitCode}
}

// Event is one normalized, provider-agnostic event.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Text      string    `json:"text,omitempty"`
	Content   string    `json:"content,omitempty"`
	Message   string    `json:"message,omitempty"`
	Name      string    `json:"name,omitempty"`
	Input     any       `json:"input,omitempty"`
	Output    any       `json:"output,omitempty"`
	IsError   bool      `json:"isError,omitempty"`
	Resumed   bool      `json:"resumed,omitempty"`
	Success   *bool     `json:"success,omitempty"`
	ExitCode  *int      `json:"exitCode,omitempty"`
	Err       string    `json:"error,omitempty"`
}

// StartMode controls whether session.started is emitted at all.
type StartMode string

const (
	IncludeStarted StartMode = "include-started"
	OmitStarted    StartMode = "omit-started"
)

// Normalizer is a stateful Chunk → Event mapper. A fresh Normalizer must be
// used per run: it tracks which sessions have already emitted
// session.started, each session's accumulated assistant text, and the
// tool-call-id → name table needed to label function_call_output events.
type Normalizer struct {
	startMode StartMode

	mu               sync.Mutex
	startedSessions  map[string]bool
	snapshots        map[string]string
	toolNamesByCall  map[string]string
}

// New creates a Normalizer. The session id is passed to each Normalize
// call and attached to every event that call emits.
func New(startMode StartMode) *Normalizer {
	if startMode == "" {
		startMode = IncludeStarted
	}
	return &Normalizer{
		startMode:       startMode,
		startedSessions: make(map[string]bool),
		snapshots:       make(map[string]string),
		toolNamesByCall: make(map[string]string),
	}
}

// Normalize maps one Chunk to zero or more Events.
func (n *Normalizer) Normalize(sessionID string, c runtime.Chunk) []Event {
	switch c.Kind {
	case runtime.ChunkKindChar:
		return n.normalizeChar(sessionID, c.Char)
	case runtime.ChunkKindLine:
		return n.normalizeLine(sessionID, c.Line)
	}
	return nil
}

func (n *Normalizer) normalizeChar(sessionID string, cc *runtime.CharChunk) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snapshots[sessionID] += cc.Char
	return []Event{
		{Type: EventAssistantDelta, SessionID: sessionID, Text: cc.Char},
		{Type: EventAssistantSnap, SessionID: sessionID, Content: n.snapshots[sessionID]},
	}
}

func (n *Normalizer) normalizeLine(sessionID string, l *rollout.Line) []Event {
	switch l.Type {
	case rollout.TypeSessionMeta:
		return n.normalizeSessionMeta(sessionID)
	case rollout.TypeEventMsg:
		return n.normalizeEventMsg(sessionID, l.Payload)
	case rollout.TypeResponseItem:
		return n.normalizeResponseItem(sessionID, l.Payload)
	}
	return nil
}

func (n *Normalizer) normalizeSessionMeta(sessionID string) []Event {
	if n.startMode != IncludeStarted {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.startedSessions[sessionID] {
		return nil
	}
	n.startedSessions[sessionID] = true
	return []Event{{Type: EventSessionStarted, SessionID: sessionID, Resumed: false}}
}

func (n *Normalizer) normalizeEventMsg(sessionID string, payload map[string]any) []Event {
	msgType, _ := payload["type"].(string)
	switch msgType {
	case "AgentMessage":
		text, _ := payload["message"].(string)
		return n.assistantDeltaAndSnapshot(sessionID, text)
	case "AgentReasoning":
		text, _ := payload["text"].(string)
		return []Event{{Type: EventActivity, SessionID: sessionID, Message: text}}
	case "ExecCommandBegin":
		return []Event{{
			Type:      EventToolCall,
			SessionID: sessionID,
			Name:      "local_shell",
			Input: map[string]any{
				"callId":  payload["call_id"],
				"turnId":  payload["turn_id"],
				"cwd":     payload["cwd"],
				"command": payload["command"],
			},
		}}
	case "ExecCommandEnd":
		exitCode, isKnown := asInt(payload["exit_code"])
		return []Event{{
			Type:      EventToolResult,
			SessionID: sessionID,
			Name:      "local_shell",
			IsError:   isKnown && exitCode != 0,
			Output: map[string]any{
				"exitCode":         payload["exit_code"],
				"aggregatedOutput": payload["aggregated_output"],
			},
		}}
	case "Error":
		msg, _ := payload["message"].(string)
		return []Event{{Type: EventSessionError, SessionID: sessionID, Err: msg}}
	default:
		return []Event{{Type: EventActivity, SessionID: sessionID, Message: msgType}}
	}
}

func (n *Normalizer) normalizeResponseItem(sessionID string, payload map[string]any) []Event {
	// Canonical on-disk lines carry the item fields at the payload root;
	// only the folded item.completed shape wraps them under "item".
	item, _ := payload["item"].(map[string]any)
	if item == nil {
		item = payload
	}
	itemType, _ := item["type"].(string)

	switch itemType {
	case "function_call":
		callID, _ := item["call_id"].(string)
		name, _ := item["name"].(string)
		n.mu.Lock()
		n.toolNamesByCall[callID] = name
		n.mu.Unlock()
		argsRaw, _ := item["arguments"].(string)
		return []Event{{Type: EventToolCall, SessionID: sessionID, Name: name, Input: parseMaybeJSON(argsRaw)}}

	case "function_call_output":
		callID, _ := item["call_id"].(string)
		n.mu.Lock()
		name := n.toolNamesByCall[callID]
		n.mu.Unlock()
		if name == "" {
			name = "unknown-tool"
		}
		output, _ := item["output"].(map[string]any)
		isErr := false
		if output != nil {
			if v, ok := output["is_error"].(bool); ok && v {
				isErr = true
			}
			if s, ok := output["status"].(string); ok && s == "error" {
				isErr = true
			}
		}
		return []Event{{Type: EventToolResult, SessionID: sessionID, Name: name, IsError: isErr, Output: output}}

	case "local_shell_call":
		status, _ := item["status"].(string)
		switch status {
		case "completed", "failed", "error":
			return []Event{{
				Type:      EventToolResult,
				SessionID: sessionID,
				Name:      "local_shell",
				IsError:   status != "completed",
				Output: map[string]any{
					"callId": item["call_id"], "status": status,
					"action": item["action"], "output": item["output"],
				},
			}}
		default:
			return []Event{{
				Type:      EventToolCall,
				SessionID: sessionID,
				Name:      "local_shell",
				Input:     map[string]any{"callId": item["call_id"], "status": status, "action": item["action"]},
			}}
		}

	case "message":
		role, _ := item["role"].(string)
		if role != "assistant" {
			return nil
		}
		parts, _ := item["content"].([]any)
		var events []Event
		for _, p := range parts {
			part, _ := p.(map[string]any)
			if part == nil {
				continue
			}
			pt, _ := part["type"].(string)
			if pt != "output_text" && pt != "input_text" {
				continue
			}
			text, _ := part["text"].(string)
			events = append(events, n.assistantDeltaAndSnapshot(sessionID, text)...)
		}
		return events
	}
	return nil
}

func (n *Normalizer) assistantDeltaAndSnapshot(sessionID, text string) []Event {
	n.mu.Lock()
	n.snapshots[sessionID] += text
	snap := n.snapshots[sessionID]
	n.mu.Unlock()
	return []Event{
		{Type: EventAssistantDelta, SessionID: sessionID, Text: text},
		{Type: EventAssistantSnap, SessionID: sessionID, Content: snap},
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// parseMaybeJSON parses raw as JSON if possible, falling back to the raw
// string on failure.
func parseMaybeJSON(raw string) any {
	if raw == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
