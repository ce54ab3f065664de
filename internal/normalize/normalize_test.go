// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacogips/codexd/internal/rollout"
	"github.com/tacogips/codexd/internal/runtime"
)

func lineChunk(t *testing.T, raw string) runtime.Chunk {
	t.Helper()
	l, err := rollout.Parse([]byte(raw))
	require.NoError(t, err)
	require.NotNil(t, l)
	return runtime.Chunk{Kind: runtime.ChunkKindLine, Line: l}
}

func TestNormalize_SessionStartedOnlyOncePerSession(t *testing.T) {
	n := New(IncludeStarted)
	meta := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"session_meta","payload":{"meta":{"id":"s1","cwd":"","originator":"codex","cli_version":"1","source":"exec"}}}`)

	events := n.Normalize("s1", meta)
	require.Len(t, events, 1)
	assert.Equal(t, EventSessionStarted, events[0].Type)

	assert.Empty(t, n.Normalize("s1", meta))
}

func TestNormalize_AssistantDeltaAccumulatesSnapshot(t *testing.T) {
	n := New(IncludeStarted)
	first := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"event_msg","payload":{"type":"AgentMessage","message":"foo"}}`)
	second := lineChunk(t, `{"timestamp":"2026-01-01T00:00:01Z","type":"event_msg","payload":{"type":"AgentMessage","message":"bar"}}`)

	ev1 := n.Normalize("s1", first)
	require.Len(t, ev1, 2)
	assert.Equal(t, "foo", ev1[0].Text)
	assert.Equal(t, "foo", ev1[1].Content)

	ev2 := n.Normalize("s1", second)
	require.Len(t, ev2, 2)
	assert.Equal(t, "bar", ev2[0].Text)
	assert.Equal(t, "foobar", ev2[1].Content)
}

func TestNormalize_CharChunkAccumulatesSnapshot(t *testing.T) {
	n := New(IncludeStarted)
	c1 := runtime.Chunk{Kind: runtime.ChunkKindChar, Char: &runtime.CharChunk{Char: "h"}}
	c2 := runtime.Chunk{Kind: runtime.ChunkKindChar, Char: &runtime.CharChunk{Char: "i"}}

	ev1 := n.Normalize("s1", c1)
	ev2 := n.Normalize("s1", c2)
	assert.Equal(t, "h", ev1[1].Content)
	assert.Equal(t, "hi", ev2[1].Content)
}

func TestNormalize_ExecCommandBeginAndEnd(t *testing.T) {
	n := New(IncludeStarted)
	begin := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"event_msg","payload":{"type":"ExecCommandBegin","call_id":"c1","turn_id":"t1","cwd":"/repo","command":["ls"]}}`)
	end := lineChunk(t, `{"timestamp":"2026-01-01T00:00:01Z","type":"event_msg","payload":{"type":"ExecCommandEnd","call_id":"c1","exit_code":0,"aggregated_output":"a.go\n"}}`)

	ev1 := n.Normalize("s1", begin)
	require.Len(t, ev1, 1)
	assert.Equal(t, EventToolCall, ev1[0].Type)
	assert.Equal(t, "local_shell", ev1[0].Name)

	ev2 := n.Normalize("s1", end)
	require.Len(t, ev2, 1)
	assert.Equal(t, EventToolResult, ev2[0].Type)
	assert.False(t, ev2[0].IsError)
}

func TestNormalize_ExecCommandEnd_NonZeroExitIsError(t *testing.T) {
	n := New(IncludeStarted)
	end := lineChunk(t, `{"timestamp":"2026-01-01T00:00:01Z","type":"event_msg","payload":{"type":"ExecCommandEnd","call_id":"c1","exit_code":1,"aggregated_output":"boom"}}`)
	ev := n.Normalize("s1", end)
	require.Len(t, ev, 1)
	assert.True(t, ev[0].IsError)
}

func TestNormalize_FunctionCallThenOutputUsesRememberedName(t *testing.T) {
	n := New(IncludeStarted)
	call := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"response_item","payload":{"item":{"type":"function_call","call_id":"c1","name":"read_file","arguments":"{\"path\":\"a.go\"}"}}}`)
	output := lineChunk(t, `{"timestamp":"2026-01-01T00:00:01Z","type":"response_item","payload":{"item":{"type":"function_call_output","call_id":"c1","output":{"status":"ok","content":"package main"}}}}`)

	ev1 := n.Normalize("s1", call)
	require.Len(t, ev1, 1)
	assert.Equal(t, "read_file", ev1[0].Name)
	assert.Equal(t, map[string]any{"path": "a.go"}, ev1[0].Input)

	ev2 := n.Normalize("s1", output)
	require.Len(t, ev2, 1)
	assert.Equal(t, "read_file", ev2[0].Name)
	assert.False(t, ev2[0].IsError)
}

func TestNormalize_FunctionCallOutputWithoutCallFallsBackToUnknown(t *testing.T) {
	n := New(IncludeStarted)
	output := lineChunk(t, `{"timestamp":"2026-01-01T00:00:01Z","type":"response_item","payload":{"item":{"type":"function_call_output","call_id":"missing","output":{"status":"error"}}}}`)
	ev := n.Normalize("s1", output)
	require.Len(t, ev, 1)
	assert.Equal(t, "unknown-tool", ev[0].Name)
	assert.True(t, ev[0].IsError)
}

func TestNormalize_LocalShellCallPendingEmitsToolCall(t *testing.T) {
	n := New(IncludeStarted)
	pending := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"response_item","payload":{"item":{"type":"local_shell_call","call_id":"c1","status":"in_progress","action":{"command":["ls"]}}}}`)
	ev := n.Normalize("s1", pending)
	require.Len(t, ev, 1)
	assert.Equal(t, EventToolCall, ev[0].Type)
}

func TestNormalize_LocalShellCallCompletedEmitsToolResult(t *testing.T) {
	n := New(IncludeStarted)
	done := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"response_item","payload":{"item":{"type":"local_shell_call","call_id":"c1","status":"completed","action":{"command":["ls"]},"output":"a.go"}}}`)
	ev := n.Normalize("s1", done)
	require.Len(t, ev, 1)
	assert.Equal(t, EventToolResult, ev[0].Type)
	assert.False(t, ev[0].IsError)
}

func TestNormalize_ErrorEventMsg(t *testing.T) {
	n := New(IncludeStarted)
	errLine := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"event_msg","payload":{"type":"Error","message":"boom"}}`)
	ev := n.Normalize("s1", errLine)
	require.Len(t, ev, 1)
	assert.Equal(t, EventSessionError, ev[0].Type)
	assert.Equal(t, "boom", ev[0].Err)
}

func TestNormalize_UnknownEventMsgBecomesActivity(t *testing.T) {
	n := New(IncludeStarted)
	unknown := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"event_msg","payload":{"type":"TokenCount","tokens":42}}`)
	ev := n.Normalize("s1", unknown)
	require.Len(t, ev, 1)
	assert.Equal(t, EventActivity, ev[0].Type)
	assert.Equal(t, "TokenCount", ev[0].Message)
}

func TestNormalize_ResponseItemAssistantMessageEmitsDeltaPerPart(t *testing.T) {
	n := New(IncludeStarted)
	msg := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"response_item","payload":{"item":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"foo"},{"type":"output_text","text":"bar"}]}}}`)
	ev := n.Normalize("s1", msg)
	require.Len(t, ev, 4)
	assert.Equal(t, "foo", ev[0].Text)
	assert.Equal(t, "foobar", ev[3].Content)
}

func TestNormalize_ResponseItemUserMessageIsIgnored(t *testing.T) {
	n := New(IncludeStarted)
	msg := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"response_item","payload":{"item":{"type":"message","role":"user","content":[{"type":"input_text","text":"hi"}]}}}`)
	assert.Empty(t, n.Normalize("s1", msg))
}

func TestParseMaybeJSON_FallsBackToRawOnInvalidJSON(t *testing.T) {
	assert.Equal(t, "not json", parseMaybeJSON("not json"))
	assert.Equal(t, map[string]any{"a": float64(1)}, parseMaybeJSON(`{"a":1}`))
	assert.Nil(t, parseMaybeJSON(""))
}

func TestNormalize_CanonicalResponseItemWithoutWrapper(t *testing.T) {
	n := New(OmitStarted)
	call := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"response_item","payload":{"type":"function_call","call_id":"c1","name":"read_file","arguments":"{\"path\":\"a.go\"}"}}`)
	output := lineChunk(t, `{"timestamp":"2026-01-01T00:00:01Z","type":"response_item","payload":{"type":"function_call_output","call_id":"c1","output":{"status":"ok"}}}`)

	events := n.Normalize("s1", call)
	require.Len(t, events, 1)
	assert.Equal(t, EventToolCall, events[0].Type)
	assert.Equal(t, "read_file", events[0].Name)

	events = n.Normalize("s1", output)
	require.Len(t, events, 1)
	assert.Equal(t, EventToolResult, events[0].Type)
	assert.Equal(t, "read_file", events[0].Name)
	assert.False(t, events[0].IsError)
}

func TestNormalize_CanonicalAssistantMessageWithoutWrapper(t *testing.T) {
	n := New(OmitStarted)
	msg := lineChunk(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"plain"}]}}`)

	events := n.Normalize("s1", msg)
	require.Len(t, events, 2)
	assert.Equal(t, EventAssistantDelta, events[0].Type)
	assert.Equal(t, "plain", events[0].Text)
	assert.Equal(t, "plain", events[1].Content)
}
