// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/tacogips/codexd/internal/index"
	"github.com/tacogips/codexd/internal/rollout"
	"github.com/tacogips/codexd/internal/supervisor"
)

// attachRetryInterval and attachMaxAttempts pace the background attacher:
// the rollout file may not exist yet when `resume` is spawned, so the
// lookup is retried for up to two seconds.
const (
	attachRetryInterval = 100 * time.Millisecond
	attachMaxAttempts   = 20
	exitPollInterval    = 50 * time.Millisecond
)

// StartConfig configures a new or resumed session.
type StartConfig struct {
	Prompt          string
	ResumeSessionID string
	ReplayExisting  bool
	Granularity     StreamGranularity
	Opts            supervisor.Opts
}

// Runner starts and resumes sessions by composing a Supervisor with a
// session Index.
type Runner struct {
	sup *supervisor.Supervisor
	idx *index.Index
}

// NewRunner creates a Runner.
func NewRunner(sup *supervisor.Supervisor, idx *index.Index) *Runner {
	return &Runner{sup: sup, idx: idx}
}

// StartSession spawns a streaming exec invocation and wires its lines and
// exit into a new RunningSession. A set ResumeSessionID delegates to
// ResumeSession.
func (r *Runner) StartSession(ctx context.Context, cfg StartConfig) (*RunningSession, error) {
	if cfg.ResumeSessionID != "" {
		return r.ResumeSession(ctx, cfg.ResumeSessionID, cfg.Prompt, cfg)
	}

	handle, err := r.sup.SpawnExecStream(ctx, cfg.Prompt, cfg.Opts)
	if err != nil {
		return nil, fmt.Errorf("spawn exec: %w", err)
	}

	placeholder := fmt.Sprintf("pending-%d", time.Now().UnixMilli())
	rs := newRunningSession(placeholder, true, cfg.Granularity)
	rs.sup = r.sup
	rs.procID = handle.ID

	go func() {
		for l := range handle.Lines {
			rs.pushLine(l)
		}
		rec := handle.Result()
		code := 0
		if rec.ExitCode != nil {
			code = *rec.ExitCode
		}
		rs.finish(code)
	}()

	return rs, nil
}

// ResumeSession resumes an existing session: look up
// the session, optionally replay its existing lines, tail the rollout
// file for new ones, spawn `resume`, and poll the supervisor for exit.
func (r *Runner) ResumeSession(ctx context.Context, sessionID, prompt string, cfg StartConfig) (*RunningSession, error) {
	rs := newRunningSession(sessionID, false, cfg.Granularity)
	rs.sup = r.sup

	w, err := rollout.NewWatcher(rollout.Config{
		OnLine: func(ev rollout.LineEvent) { rs.pushLine(ev.Line) },
	})
	if err != nil {
		return nil, fmt.Errorf("create tail watcher: %w", err)
	}
	rs.stopHook = func() { w.Stop() }

	attached := r.attach(rs, w, sessionID, cfg.ReplayExisting)

	handle, err := r.sup.SpawnResume(ctx, sessionID, prompt, cfg.Opts)
	if err != nil {
		w.Stop()
		return nil, fmt.Errorf("spawn resume: %w", err)
	}
	rs.procID = handle.ID

	if !attached {
		go r.backgroundAttach(rs, w, sessionID, cfg.ReplayExisting)
	}

	go r.watchExit(rs, w, handle.ID)

	return rs, nil
}

// TailSession attaches a read-only RunningSession to sessionID's existing
// rollout file for observation:
// it replays the file's existing lines and, when follow is true, tails
// new appends until ctx is done. It never spawns a subprocess and the
// caller controls the session's lifetime via ctx, not a process exit.
func (r *Runner) TailSession(ctx context.Context, sessionID string, follow bool) (*RunningSession, error) {
	rs := newRunningSession(sessionID, false, GranularityEvent)

	if !follow {
		rec, ok := r.idx.Find(sessionID)
		if !ok {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		lines, err := rollout.ReadAll(rec.RolloutPath)
		if err != nil {
			return nil, fmt.Errorf("read rollout: %w", err)
		}
		for _, l := range lines {
			rs.pushLine(l)
		}
		rs.finish(0)
		return rs, nil
	}

	w, err := rollout.NewWatcher(rollout.Config{
		OnLine: func(ev rollout.LineEvent) { rs.pushLine(ev.Line) },
	})
	if err != nil {
		return nil, fmt.Errorf("create tail watcher: %w", err)
	}

	if !r.attach(rs, w, sessionID, true) {
		w.Stop()
		return nil, fmt.Errorf("session not found: %s", sessionID)
	}

	go func() {
		<-ctx.Done()
		w.Stop()
		rs.finish(0)
	}()

	return rs, nil
}

// attach looks up sessionID once; on success it optionally replays
// existing lines and arms the file tail. Returns whether it succeeded.
func (r *Runner) attach(rs *RunningSession, w *rollout.Watcher, sessionID string, replay bool) bool {
	rec, ok := r.idx.Find(sessionID)
	if !ok {
		return false
	}
	if replay {
		if lines, err := rollout.ReadAll(rec.RolloutPath); err == nil {
			for _, l := range lines {
				rs.pushLine(l)
			}
		}
	}
	_ = w.WatchFile(rec.RolloutPath, nil)
	return true
}

// backgroundAttach retries the lookup for up to attachMaxAttempts,
// handling the race where the tool creates the rollout file after the
// resume process has already started.
func (r *Runner) backgroundAttach(rs *RunningSession, w *rollout.Watcher, sessionID string, replay bool) {
	for i := 0; i < attachMaxAttempts; i++ {
		time.Sleep(attachRetryInterval)
		if r.attach(rs, w, sessionID, replay) {
			return
		}
	}
}

// watchExit polls the supervisor until the process leaves "running", then
// stops the file watcher and finishes the session.
func (r *Runner) watchExit(rs *RunningSession, w *rollout.Watcher, procID string) {
	ticker := time.NewTicker(exitPollInterval)
	defer ticker.Stop()
	for range ticker.C {
		rec, ok := r.sup.Get(procID)
		if !ok || rec.Status == supervisor.StatusRunning {
			continue
		}
		w.Stop()
		code := 0
		if rec.ExitCode != nil {
			code = *rec.ExitCode
		}
		rs.finish(code)
		return
	}
}
