// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"time"

	"github.com/tacogips/codexd/internal/supervisor"
)

// PromptStatus is a queue prompt's lifecycle state.
type PromptStatus string

const (
	PromptPending   PromptStatus = "pending"
	PromptRunning   PromptStatus = "running"
	PromptCompleted PromptStatus = "completed"
	PromptFailed    PromptStatus = "failed"
)

// Prompt is one entry in a queue's ordered prompt list.
type Prompt struct {
	Prompt      string
	Images      []string
	Status      PromptStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	ExitCode    *int
}

// Queue is the subset of queue state the runner needs.
type Queue struct {
	Paused      bool
	ProjectPath string
	Prompts     []Prompt
}

// QueueEventType enumerates the lifecycle events RunQueue emits.
type QueueEventType string

const (
	QueueStopped         QueueEventType = "queue_stopped"
	QueuePromptStarted   QueueEventType = "prompt_started"
	QueuePromptCompleted QueueEventType = "prompt_completed"
	QueuePromptFailed    QueueEventType = "prompt_failed"
	QueueCompleted        QueueEventType = "queue_completed"
)

// QueueEvent is one lifecycle event from a queue run.
type QueueEvent struct {
	Type  QueueEventType
	Index int
	Queue Queue
}

// StopSignal is checked only between prompts: an in-flight
// prompt always runs to completion.
type StopSignal interface {
	Stopped() bool
}

// Persist is called with the full queue after every prompt settles so a
// crash leaves an accurate resumable state.
type Persist func(Queue) error

// RunQueue drives a queue to completion: sequential prompt execution
// with a between-prompts stop signal and persist-after-every-prompt.
// State is written only after a definitive outcome, never on admission.
func RunQueue(ctx context.Context, exec Exec, queue Queue, opts supervisor.Opts, stop StopSignal, persist Persist, emit func(QueueEvent)) (Queue, error) {
	if queue.Paused {
		emit(QueueEvent{Type: QueueStopped, Queue: queue})
		return queue, nil
	}

	for i := range queue.Prompts {
		if queue.Prompts[i].Status != PromptPending {
			continue
		}
		if stop != nil && stop.Stopped() {
			emit(QueueEvent{Type: QueueStopped, Queue: queue})
			return queue, nil
		}

		now := time.Now()
		queue.Prompts[i].Status = PromptRunning
		queue.Prompts[i].StartedAt = &now
		emit(QueueEvent{Type: QueuePromptStarted, Index: i, Queue: queue})

		promptOpts := opts
		promptOpts.Cwd = queue.ProjectPath
		promptOpts.Images = mergeImages(queue.Prompts[i].Images, opts.Images)

		code, _, err := exec.SpawnExec(ctx, queue.Prompts[i].Prompt, promptOpts)
		if err != nil {
			code = 1
		}

		completedAt := time.Now()
		queue.Prompts[i].CompletedAt = &completedAt
		queue.Prompts[i].ExitCode = &code
		if code == 0 {
			queue.Prompts[i].Status = PromptCompleted
		} else {
			queue.Prompts[i].Status = PromptFailed
		}

		if persist != nil {
			if err := persist(queue); err != nil {
				return queue, err
			}
		}

		if code == 0 {
			emit(QueueEvent{Type: QueuePromptCompleted, Index: i, Queue: queue})
		} else {
			emit(QueueEvent{Type: QueuePromptFailed, Index: i, Queue: queue})
		}
	}

	emit(QueueEvent{Type: QueueCompleted, Queue: queue})
	return queue, nil
}

func mergeImages(a, b []string) []string {
	out := append([]string(nil), a...)
	out = append(out, b...)
	return out
}
