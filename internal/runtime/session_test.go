// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacogips/codexd/internal/rollout"
)

func parseLine(t *testing.T, raw string) *rollout.Line {
	t.Helper()
	l, err := rollout.Parse([]byte(raw))
	require.NoError(t, err)
	require.NotNil(t, l)
	return l
}

func TestPushLine_AdoptsSessionIDOnlyWhenAllowed(t *testing.T) {
	rs := newRunningSession("pending-1", true, GranularityEvent)

	var gotID string
	rs.OnSessionID(func(id string) { gotID = id })

	rs.pushLine(parseLine(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"session_meta","payload":{"meta":{"id":"s1","cwd":"","originator":"codex","cli_version":"1","source":"exec"}}}`))

	assert.Equal(t, "s1", gotID)
	assert.Equal(t, "s1", rs.SessionID())
}

func TestPushLine_ResumedSessionIgnoresNewSessionMetaID(t *testing.T) {
	rs := newRunningSession("s1", false, GranularityEvent)

	rs.pushLine(parseLine(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"session_meta","payload":{"meta":{"id":"s2","cwd":"","originator":"codex","cli_version":"1","source":"exec"}}}`))

	assert.Equal(t, "s1", rs.SessionID())
}

func TestPushLine_CharGranularitySplitsAssistantText(t *testing.T) {
	rs := newRunningSession("s1", false, GranularityChar)
	rs.pushLine(parseLine(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"event_msg","payload":{"type":"AgentMessage","message":"hi"}}`))
	rs.finish(0)

	var chunks []Chunk
	for c := range rs.Messages() {
		chunks = append(chunks, c)
	}
	require.Len(t, chunks, 2)
	assert.Equal(t, ChunkKindChar, chunks[0].Kind)
	assert.Equal(t, "h", chunks[0].Char.Char)
	assert.Equal(t, "i", chunks[1].Char.Char)
}

func TestPushLine_EventGranularityKeepsWholeLine(t *testing.T) {
	rs := newRunningSession("s1", false, GranularityEvent)
	rs.pushLine(parseLine(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"event_msg","payload":{"type":"AgentMessage","message":"hi"}}`))
	rs.finish(0)

	var chunks []Chunk
	for c := range rs.Messages() {
		chunks = append(chunks, c)
	}
	require.Len(t, chunks, 1)
	assert.Equal(t, ChunkKindLine, chunks[0].Kind)
}

func TestMessages_DrainsUntilCompletedAndEmpty(t *testing.T) {
	rs := newRunningSession("s1", false, GranularityEvent)

	done := make(chan struct{})
	var count int
	go func() {
		for range rs.Messages() {
			count++
		}
		close(done)
	}()

	for i := 0; i < 3; i++ {
		rs.pushLine(parseLine(t, `{"timestamp":"2026-01-01T00:00:00Z","type":"event_msg","payload":{"type":"AgentMessage","message":"x"}}`))
	}
	rs.finish(0)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("messages channel never closed")
	}
	assert.Equal(t, 3, count)
}

func TestFinish_IsIdempotent(t *testing.T) {
	rs := newRunningSession("s1", false, GranularityEvent)
	rs.finish(0)
	rs.finish(1)

	result := <-rs.Completion()
	assert.Equal(t, 0, result.ExitCode)
	assert.True(t, result.Success)
}

func TestFinish_NonZeroExitIsNotSuccess(t *testing.T) {
	rs := newRunningSession("s1", false, GranularityEvent)
	rs.finish(1)

	result := <-rs.Completion()
	assert.False(t, result.Success)
	assert.Equal(t, 1, result.ExitCode)
}
