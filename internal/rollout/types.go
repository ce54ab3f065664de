// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package rollout parses, normalizes and tails the append-only JSONL
// transcripts ("rollouts") written by the tool.
package rollout

import (
	"encoding/json"
	"time"
)

// LineType discriminates the closed union of rollout record shapes.
type LineType string

const (
	TypeSessionMeta  LineType = "session_meta"
	TypeResponseItem LineType = "response_item"
	TypeEventMsg     LineType = "event_msg"
	TypeTurnContext  LineType = "turn_context"
	TypeCompacted    LineType = "compacted"
)

// Origin classifies where a message ultimately came from.
type Origin string

const (
	OriginUserInput     Origin = "user_input"
	OriginSystemInject  Origin = "system_injected"
	OriginToolGenerated Origin = "tool_generated"
	OriginFrameworkEvt  Origin = "framework_event"
)

// Role is the optional conversational role attached to a provenance.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Provenance is the derived classification of a rollout line.
type Provenance struct {
	Role           Role   `json:"role,omitempty"`
	Origin         Origin `json:"origin"`
	DisplayDefault bool   `json:"display_default"`
	SourceTag      string `json:"source_tag,omitempty"`
}

// GitInfo carries the optional git context attached to a session_meta.
type GitInfo struct {
	SHA       string `json:"sha,omitempty"`
	Branch    string `json:"branch,omitempty"`
	OriginURL string `json:"origin_url,omitempty"`
}

// SessionMetaPayload is the payload of a session_meta line.
type SessionMetaPayload struct {
	Meta struct {
		ID         string `json:"id"`
		Timestamp  string `json:"timestamp"`
		Cwd        string `json:"cwd"`
		Originator string `json:"originator"`
		CLIVersion string `json:"cli_version"`
		Source     string `json:"source"`
	} `json:"meta"`
	Git *GitInfo `json:"git,omitempty"`
}

// Line is one parsed and classified rollout record.
type Line struct {
	Timestamp  time.Time      `json:"timestamp"`
	Type       LineType       `json:"type"`
	Payload    map[string]any `json:"payload"`
	Provenance *Provenance    `json:"provenance,omitempty"`
}

// SessionMeta returns the typed payload of a session_meta line, if this
// line is one.
func (l *Line) SessionMeta() (*SessionMetaPayload, bool) {
	if l == nil || l.Type != TypeSessionMeta {
		return nil, false
	}
	b, err := json.Marshal(l.Payload)
	if err != nil {
		return nil, false
	}
	var sm SessionMetaPayload
	if err := json.Unmarshal(b, &sm); err != nil {
		return nil, false
	}
	return &sm, true
}
