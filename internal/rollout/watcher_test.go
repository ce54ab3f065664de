// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package rollout

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_AppendAfterOffset(t *testing.T) {
	if testing.Short() {
		t.Skip("filesystem watch integration test")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "rollout-s1.jsonl")
	seed := `{"timestamp":"2026-01-01T00:00:00Z","type":"session_meta","payload":{"meta":{"id":"s1","cwd":"","originator":"codex","cli_version":"1","source":"cli"}}}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	var mu sync.Mutex
	var seen []*Line
	w, err := NewWatcher(Config{
		OnLine: func(ev LineEvent) {
			mu.Lock()
			seen = append(seen, ev.Line)
			mu.Unlock()
		},
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.WatchFile(path, nil))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"timestamp":"2026-01-01T00:00:01Z","type":"event_msg","payload":{"type":"UserMessage","message":"hi"}}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, TypeEventMsg, seen[0].Type)
}

func TestWatcher_IdempotentWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rollout-s2.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	w, err := NewWatcher(Config{})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.WatchFile(path, nil))
	require.NoError(t, w.WatchFile(path, nil))

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Len(t, w.files, 1)
}

func TestIsRolloutName(t *testing.T) {
	assert.True(t, isRolloutName("/a/b/rollout-123.jsonl"))
	assert.False(t, isRolloutName("/a/b/other.jsonl"))
	assert.False(t, isRolloutName("/a/b/rollout-123.json"))
}
