// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacogips/codexd/internal/rollout"
)

func TestAssistantText_AgentMessage(t *testing.T) {
	l, err := rollout.Parse([]byte(`{"timestamp":"2026-01-01T00:00:00Z","type":"event_msg","payload":{"type":"AgentMessage","message":"hi there"}}`))
	require.NoError(t, err)
	require.NotNil(t, l)

	text, source, ok := assistantText(l)
	require.True(t, ok)
	assert.Equal(t, "hi there", text)
	assert.Equal(t, "event_msg", source)
}

func TestAssistantText_ResponseItemMessage(t *testing.T) {
	l, err := rollout.Parse([]byte(`{"timestamp":"2026-01-01T00:00:00Z","type":"response_item","payload":{"item":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"foo"},{"type":"output_text","text":"bar"}]}}}`))
	require.NoError(t, err)
	require.NotNil(t, l)

	text, source, ok := assistantText(l)
	require.True(t, ok)
	assert.Equal(t, "foobar", text)
	assert.Equal(t, "response_item", source)
}

func TestAssistantText_UserMessageIsNotAssistantText(t *testing.T) {
	l, err := rollout.Parse([]byte(`{"timestamp":"2026-01-01T00:00:00Z","type":"event_msg","payload":{"type":"UserMessage","message":"hi"}}`))
	require.NoError(t, err)
	require.NotNil(t, l)

	_, _, ok := assistantText(l)
	assert.False(t, ok)
}

func TestSplitCodePoints_HandlesMultiByteRunes(t *testing.T) {
	out := splitCodePoints("a😀b")
	assert.Equal(t, []string{"a", "😀", "b"}, out)
}
