// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package runtime fuses a supervised subprocess with a rollout-file tail
// into one ordered event stream per session.
package runtime

import (
	"sync"
	"time"

	"github.com/tacogips/codexd/internal/rollout"
)

// StreamGranularity selects whether assistant text streams whole lines or
// individual code points.
type StreamGranularity string

const (
	GranularityEvent StreamGranularity = "event"
	GranularityChar  StreamGranularity = "char"
)

// Stats summarizes a finished session.
type Stats struct {
	StartedAt    time.Time `json:"startedAt"`
	CompletedAt  time.Time `json:"completedAt"`
	MessageCount int       `json:"messageCount"`
}

// Result is the resolved value of a RunningSession's completion future.
type Result struct {
	Success  bool  `json:"success"`
	ExitCode int   `json:"exitCode"`
	Stats    Stats `json:"stats"`
}

// RunningSession fuses a supervised subprocess with a rollout tail into one
// ordered Chunk stream. Each start or resume maps to exactly one child
// invocation; the stream drains after the child exits.
type RunningSession struct {
	mu                   sync.Mutex
	sessionID            string
	allowSessionIDUpdate bool
	granularity          StreamGranularity
	stopHook             func()

	queue  []Chunk
	wakeCh chan struct{}

	completed    bool
	completionCh chan Result
	messageCount int
	startedAt    time.Time
	completedAt  time.Time

	onSessionID func(id string)
	onMessage   func(Chunk)
	onComplete  func(Result)

	sup interface {
		Kill(id string) error
		WriteInput(id string, data []byte) error
	}
	procID string
}

func newRunningSession(id string, allowUpdate bool, granularity StreamGranularity) *RunningSession {
	if granularity == "" {
		granularity = GranularityEvent
	}
	return &RunningSession{
		sessionID:            id,
		allowSessionIDUpdate: allowUpdate,
		granularity:          granularity,
		wakeCh:               make(chan struct{}, 1),
		completionCh:         make(chan Result, 1),
		startedAt:            time.Now(),
	}
}

// SessionID returns the session's current id. For a brand-new session
// this starts as a "pending-<epochMs>" placeholder and is replaced by the
// first session_meta's id.
func (rs *RunningSession) SessionID() string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.sessionID
}

// OnSessionID registers a callback fired when the placeholder id is
// resolved to a real one.
func (rs *RunningSession) OnSessionID(fn func(id string)) { rs.onSessionID = fn }

// OnMessage registers a callback fired for every pushed line, independent
// of streamGranularity.
func (rs *RunningSession) OnMessage(fn func(Chunk)) { rs.onMessage = fn }

// OnComplete registers a callback fired exactly once when the session
// finishes.
func (rs *RunningSession) OnComplete(fn func(Result)) { rs.onComplete = fn }

func (rs *RunningSession) wake() {
	select {
	case rs.wakeCh <- struct{}{}:
	default:
	}
}

// pushLine appends one rollout line to the stream, reconciling the
// session id and splitting assistant text when char granularity is on.
func (rs *RunningSession) pushLine(l *rollout.Line) {
	rs.mu.Lock()

	if rs.allowSessionIDUpdate && l.Type == rollout.TypeSessionMeta {
		if sm, ok := l.SessionMeta(); ok && sm.Meta.ID != "" && sm.Meta.ID != rs.sessionID {
			rs.sessionID = sm.Meta.ID
			if fn := rs.onSessionID; fn != nil {
				rs.mu.Unlock()
				fn(sm.Meta.ID)
				rs.mu.Lock()
			}
		}
	}

	rs.messageCount++
	msgFn := rs.onMessage

	if rs.granularity == GranularityChar {
		if text, sourceType, ok := assistantText(l); ok {
			for _, ch := range splitCodePoints(text) {
				rs.queue = append(rs.queue, charChunk(CharChunk{
					Char:       ch,
					SessionID:  rs.sessionID,
					Timestamp:  l.Timestamp,
					SourceType: sourceType,
				}))
			}
		} else {
			rs.queue = append(rs.queue, lineChunk(l))
		}
	} else {
		rs.queue = append(rs.queue, lineChunk(l))
	}

	rs.mu.Unlock()

	if msgFn != nil {
		msgFn(lineChunk(l))
	}
	rs.wake()
}

// Messages returns a channel that yields queued chunks until the session
// completes and the queue drains.
func (rs *RunningSession) Messages() <-chan Chunk {
	out := make(chan Chunk, 64)
	go rs.drain(out)
	return out
}

func (rs *RunningSession) drain(out chan<- Chunk) {
	defer close(out)
	for {
		rs.mu.Lock()
		for len(rs.queue) == 0 && !rs.completed {
			rs.mu.Unlock()
			<-rs.wakeCh
			rs.mu.Lock()
		}
		if len(rs.queue) == 0 {
			rs.mu.Unlock()
			return
		}
		c := rs.queue[0]
		rs.queue = rs.queue[1:]
		rs.mu.Unlock()
		out <- c
	}
}

// finish is idempotent; it resolves the completion future and wakes any
// waiting consumer.
func (rs *RunningSession) finish(exitCode int) {
	rs.mu.Lock()
	if rs.completed {
		rs.mu.Unlock()
		return
	}
	rs.completed = true
	rs.completedAt = time.Now()
	result := Result{
		Success:  exitCode == 0,
		ExitCode: exitCode,
		Stats: Stats{
			StartedAt:    rs.startedAt,
			CompletedAt:  rs.completedAt,
			MessageCount: rs.messageCount,
		},
	}
	completeFn := rs.onComplete
	rs.mu.Unlock()

	rs.completionCh <- result
	if completeFn != nil {
		completeFn(result)
	}
	rs.wake()
}

// Completion returns a channel receiving exactly one Result once the
// session finishes.
func (rs *RunningSession) Completion() <-chan Result { return rs.completionCh }

// Cancel invokes the stop hook (if any), then kills the underlying
// process.
func (rs *RunningSession) Cancel() error {
	rs.mu.Lock()
	hook := rs.stopHook
	sup := rs.sup
	id := rs.procID
	rs.mu.Unlock()
	if hook != nil {
		hook()
	}
	if sup == nil {
		return nil
	}
	return sup.Kill(id)
}

// Interrupt writes an ETX (0x03) byte to the process's stdin.
func (rs *RunningSession) Interrupt() error {
	rs.mu.Lock()
	sup := rs.sup
	id := rs.procID
	rs.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.WriteInput(id, []byte{0x03})
}
