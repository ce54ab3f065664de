// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package rollout

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// wireRecord is the canonical on-disk shape: {timestamp, type, payload}.
type wireRecord struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// altRecord is the newer thread/turn/item wire shape.
type altRecord struct {
	Type      string          `json:"type"`
	ThreadID  string          `json:"thread_id"`
	Timestamp string          `json:"timestamp"`
	Item      json.RawMessage `json:"item"`
	TurnID    string          `json:"turn_id"`
	Usage     json.RawMessage `json:"usage"`
	Message   string          `json:"message"`
}

// Parse parses one rollout JSONL line. Empty/whitespace-only
// lines and JSON parse failures both yield (nil, nil): parse failures are
// never fatal.
func Parse(line []byte) (*Line, error) {
	trimmed := strings.TrimSpace(string(line))
	if trimmed == "" {
		return nil, nil
	}

	l, ok := normalize([]byte(trimmed))
	if !ok {
		return nil, nil
	}
	l.Provenance = deriveProvenance(l)
	return l, nil
}

// normalize accepts either the canonical {timestamp,type,payload} record or
// the alternate thread.*/item.*/turn.*/error shape and folds both into the
// five canonical Line variants.
func normalize(raw []byte) (*Line, bool) {
	var w wireRecord
	if err := json.Unmarshal(raw, &w); err == nil && w.Type != "" && isCanonicalType(w.Type) {
		var payload map[string]any
		if len(w.Payload) > 0 {
			if err := json.Unmarshal(w.Payload, &payload); err != nil {
				return nil, false
			}
		}
		ts := parseTimestamp(w.Timestamp)
		return &Line{Timestamp: ts, Type: LineType(w.Type), Payload: payload}, true
	}

	var a altRecord
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false
	}

	switch {
	case a.Type == "thread.started":
		id := a.ThreadID
		if id == "" {
			id = "unknown-session"
		}
		payload := map[string]any{
			"meta": map[string]any{
				"id":          id,
				"cwd":         "",
				"originator":  "codex",
				"cli_version": "unknown",
				"source":      "exec",
				"timestamp":   firstNonEmpty(a.Timestamp, time.Now().UTC().Format(time.RFC3339)),
			},
		}
		return &Line{Timestamp: parseTimestamp(a.Timestamp), Type: TypeSessionMeta, Payload: payload}, true

	case a.Type == "item.completed":
		var item map[string]any
		if len(a.Item) > 0 {
			_ = json.Unmarshal(a.Item, &item)
		}
		if itemType, _ := item["type"].(string); itemType == "agent_message" {
			if text, ok := item["text"].(string); ok {
				payload := map[string]any{"type": "AgentMessage", "message": text}
				return &Line{Timestamp: parseTimestamp(a.Timestamp), Type: TypeEventMsg, Payload: payload}, true
			}
		}
		return &Line{Timestamp: parseTimestamp(a.Timestamp), Type: TypeResponseItem, Payload: map[string]any{"item": item}}, true

	case a.Type == "turn.started":
		return &Line{Timestamp: parseTimestamp(a.Timestamp), Type: TypeEventMsg, Payload: map[string]any{"type": "TurnStarted", "turn_id": a.TurnID}}, true

	case a.Type == "turn.completed":
		payload := map[string]any{"type": "TurnComplete", "turn_id": a.TurnID}
		if len(a.Usage) > 0 {
			var usage any
			_ = json.Unmarshal(a.Usage, &usage)
			payload["usage"] = usage
		}
		return &Line{Timestamp: parseTimestamp(a.Timestamp), Type: TypeEventMsg, Payload: payload}, true

	case a.Type == "error":
		return &Line{Timestamp: parseTimestamp(a.Timestamp), Type: TypeEventMsg, Payload: map[string]any{"type": "Error", "message": a.Message}}, true
	}

	return nil, false
}

func isCanonicalType(t string) bool {
	switch LineType(t) {
	case TypeSessionMeta, TypeResponseItem, TypeEventMsg, TypeTurnContext, TypeCompacted:
		return true
	}
	return false
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

var (
	agentsInstructionsRe = regexp.MustCompile(`^#\s*AGENTS\.md instructions`)
)

// deriveProvenance classifies who authored a line and whether it is
// displayable by default.
func deriveProvenance(l *Line) *Provenance {
	switch l.Type {
	case TypeSessionMeta, TypeTurnContext, TypeCompacted:
		return &Provenance{Origin: OriginFrameworkEvt, DisplayDefault: false}
	case TypeEventMsg:
		return deriveEventMsgProvenance(l.Payload)
	case TypeResponseItem:
		return deriveResponseItemProvenance(l.Payload)
	}
	return &Provenance{Origin: OriginFrameworkEvt, DisplayDefault: false}
}

func eventMsgType(payload map[string]any) string {
	t, _ := payload["type"].(string)
	return t
}

func deriveEventMsgProvenance(payload map[string]any) *Provenance {
	switch eventMsgType(payload) {
	case "UserMessage":
		text, _ := payload["message"].(string)
		return classifyUserText(text)
	case "AgentMessage":
		return &Provenance{Role: RoleAssistant, Origin: OriginToolGenerated, DisplayDefault: true, SourceTag: "agent_message"}
	default:
		return &Provenance{Origin: OriginFrameworkEvt, DisplayDefault: false, SourceTag: snakeCase(eventMsgType(payload))}
	}
}

func classifyUserText(text string) *Provenance {
	trimmed := strings.TrimLeft(text, " \t\r\n")
	switch {
	case agentsInstructionsRe.MatchString(trimmed):
		return &Provenance{Role: RoleUser, Origin: OriginSystemInject, DisplayDefault: false, SourceTag: "agents_instructions"}
	case strings.HasPrefix(trimmed, "<environment_context>"):
		return &Provenance{Role: RoleUser, Origin: OriginSystemInject, DisplayDefault: false, SourceTag: "environment_context"}
	case strings.HasPrefix(trimmed, "<turn_aborted>"):
		return &Provenance{Origin: OriginFrameworkEvt, DisplayDefault: false, SourceTag: "turn_aborted"}
	default:
		return &Provenance{Role: RoleUser, Origin: OriginUserInput, DisplayDefault: true}
	}
}

func deriveResponseItemProvenance(payload map[string]any) *Provenance {
	item, _ := payload["item"].(map[string]any)
	if item == nil {
		item = payload
	}
	itemType, _ := item["type"].(string)

	switch itemType {
	case "message":
		role, _ := item["role"].(string)
		if role == "assistant" {
			return &Provenance{Role: RoleAssistant, Origin: OriginToolGenerated, DisplayDefault: true}
		}
		if role == "user" {
			text := extractMessageText(item)
			return classifyUserText(text)
		}
		return &Provenance{Origin: OriginFrameworkEvt, DisplayDefault: false}
	case "reasoning", "local_shell_call", "function_call", "function_call_output":
		return &Provenance{Origin: OriginToolGenerated, DisplayDefault: true, SourceTag: snakeCase(itemType)}
	default:
		return &Provenance{Origin: OriginFrameworkEvt, DisplayDefault: false, SourceTag: snakeCase(itemType)}
	}
}

func extractMessageText(item map[string]any) string {
	parts, _ := item["content"].([]any)
	var sb strings.Builder
	for _, p := range parts {
		part, _ := p.(map[string]any)
		if part == nil {
			continue
		}
		if text, ok := part["text"].(string); ok {
			sb.WriteString(text)
		}
	}
	return sb.String()
}

var snakeBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// snakeCase converts an unknown event/item type tag to snake_case so
// display-layer consumers get a stable tag.
func snakeCase(s string) string {
	if s == "" {
		return ""
	}
	s = snakeBoundary.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}
