// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"time"

	"github.com/tacogips/codexd/internal/rollout"
)

// ChunkKind discriminates the two shapes a RunningSession's queue can
// hold: a full rollout line or a single code point of assistant text.
type ChunkKind string

const (
	ChunkKindLine ChunkKind = "line"
	ChunkKindChar ChunkKind = "char"
)

// CharChunk is one code point of streamed assistant text, used when a
// session's streamGranularity is "char".
type CharChunk struct {
	Char       string    `json:"char"`
	SessionID  string    `json:"sessionId"`
	Timestamp  time.Time `json:"timestamp"`
	SourceType string    `json:"sourceType"`
}

// Chunk is a tagged union: exactly one of Line or Char is set, selected by
// Kind.
type Chunk struct {
	Kind ChunkKind
	Line *rollout.Line
	Char *CharChunk
}

func lineChunk(l *rollout.Line) Chunk {
	return Chunk{Kind: ChunkKindLine, Line: l}
}

func charChunk(c CharChunk) Chunk {
	cc := c
	return Chunk{Kind: ChunkKindChar, Char: &cc}
}

// assistantText reports whether l carries assistant-authored text and, if
// so, returns the text and a source-type tag: an event_msg AgentMessage,
// or a response_item.message with role=assistant and
// output_text|input_text parts.
func assistantText(l *rollout.Line) (string, string, bool) {
	switch l.Type {
	case rollout.TypeEventMsg:
		if t, _ := l.Payload["type"].(string); t == "AgentMessage" {
			text, _ := l.Payload["message"].(string)
			return text, "event_msg", true
		}
	case rollout.TypeResponseItem:
		// Canonical lines carry item fields at the payload root; the
		// folded item.completed shape wraps them under "item".
		item, _ := l.Payload["item"].(map[string]any)
		if item == nil {
			item = l.Payload
		}
		if itemType, _ := item["type"].(string); itemType != "message" {
			return "", "", false
		}
		if role, _ := item["role"].(string); role != "assistant" {
			return "", "", false
		}
		parts, _ := item["content"].([]any)
		var text string
		for _, p := range parts {
			part, _ := p.(map[string]any)
			if part == nil {
				continue
			}
			partType, _ := part["type"].(string)
			if partType != "output_text" && partType != "input_text" {
				continue
			}
			if s, ok := part["text"].(string); ok {
				text += s
			}
		}
		return text, "response_item", true
	}
	return "", "", false
}

// splitCodePoints splits s into one string per Unicode code point.
func splitCodePoints(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
