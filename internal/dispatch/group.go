// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package dispatch runs one prompt across many sessions (the group
// runner) or a sequence of prompts in one project directory (the queue
// runner).
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/tacogips/codexd/internal/supervisor"
)

// ErrGroupPaused is returned by RunGroup's pre-check.
var ErrGroupPaused = errors.New("dispatch: group is paused")

// DefaultMaxConcurrent is the group runner's default fan-out bound.
const DefaultMaxConcurrent = 3

// Group is the subset of group state the runner needs.
type Group struct {
	Paused        bool
	SessionIDs    []string
	MaxConcurrent int
}

// GroupEventType enumerates the lifecycle events RunGroup emits.
type GroupEventType string

const (
	GroupSessionStarted   GroupEventType = "session_started"
	GroupSessionCompleted GroupEventType = "session_completed"
	GroupSessionFailed    GroupEventType = "session_failed"
	GroupCompleted        GroupEventType = "group_completed"
)

// GroupEvent is one lifecycle event from a group run.
type GroupEvent struct {
	Type      GroupEventType
	SessionID string
	ExitCode  int
	Snapshot  GroupSnapshot
}

// GroupSnapshot is the {running,completed,failed,pending} state carried by
// group_completed.
type GroupSnapshot struct {
	Running   []string
	Completed []string
	Failed    []string
	Pending   []string
}

// Exec is the subset of *supervisor.Supervisor the group runner needs,
// narrowed to ease testing without spawning real processes.
type Exec interface {
	SpawnExec(ctx context.Context, prompt string, opts supervisor.Opts) (int, []byte, error)
}

// spawnExecAdapter adapts *supervisor.Supervisor.SpawnExec (which returns
// parsed rollout lines) to the Exec interface's byte-count stand-in, since
// the group runner only needs the exit code, not the parsed lines.
type spawnExecAdapter struct{ sup *supervisor.Supervisor }

func (a spawnExecAdapter) SpawnExec(ctx context.Context, prompt string, opts supervisor.Opts) (int, []byte, error) {
	code, lines, err := a.sup.SpawnExec(ctx, prompt, opts)
	return code, []byte(fmt.Sprintf("%d lines", len(lines))), err
}

// NewExec wraps a *supervisor.Supervisor as an Exec.
func NewExec(sup *supervisor.Supervisor) Exec { return spawnExecAdapter{sup: sup} }

// RunGroup fans one prompt out across a group's sessions with bounded
// concurrency, emitting a lifecycle event per admission and settlement.
func RunGroup(ctx context.Context, exec Exec, group Group, prompt string, opts supervisor.Opts, emit func(GroupEvent)) error {
	if group.Paused {
		return ErrGroupPaused
	}

	maxConcurrent := group.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	var mu sync.Mutex
	var running, completed, failed []string
	pending := append([]string(nil), group.SessionIDs...)

	sem := semaphore.NewWeighted(int64(maxConcurrent))
	var wg sync.WaitGroup

	for len(pending) > 0 {
		id := pending[0]
		pending = pending[1:]

		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		mu.Lock()
		running = append(running, id)
		mu.Unlock()
		emit(GroupEvent{Type: GroupSessionStarted, SessionID: id})

		wg.Add(1)
		go func(sessionID string) {
			defer wg.Done()
			defer sem.Release(1)

			code, _, err := exec.SpawnExec(ctx, prompt, opts)
			if err != nil {
				code = 1
			}

			mu.Lock()
			running = removeID(running, sessionID)
			if code == 0 {
				completed = append(completed, sessionID)
			} else {
				failed = append(failed, sessionID)
			}
			mu.Unlock()

			if code == 0 {
				emit(GroupEvent{Type: GroupSessionCompleted, SessionID: sessionID, ExitCode: code})
			} else {
				emit(GroupEvent{Type: GroupSessionFailed, SessionID: sessionID, ExitCode: code})
			}
		}(id)
	}

	wg.Wait()

	mu.Lock()
	snapshot := GroupSnapshot{
		Running:   append([]string(nil), running...),
		Completed: append([]string(nil), completed...),
		Failed:    append([]string(nil), failed...),
		Pending:   append([]string(nil), pending...),
	}
	mu.Unlock()

	emit(GroupEvent{Type: GroupCompleted, Snapshot: snapshot})
	return nil
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
