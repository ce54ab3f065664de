// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"time"

	"github.com/google/uuid"
)

// PromptMode distinguishes prompts the queue admits on its own schedule
// from ones that wait for an operator to advance them.
type PromptMode string

const (
	ModeAuto   PromptMode = "auto"
	ModeManual PromptMode = "manual"
)

// PromptRecordStatus is a queue prompt's persisted lifecycle state; a
// prompt moves `pending`, `running`, then `completed` or `failed`,
// exactly once per run.
type PromptRecordStatus string

const (
	PromptRecordPending   PromptRecordStatus = "pending"
	PromptRecordRunning   PromptRecordStatus = "running"
	PromptRecordCompleted PromptRecordStatus = "completed"
	PromptRecordFailed    PromptRecordStatus = "failed"
)

// PromptResult carries the outcome of a settled prompt.
type PromptResult struct {
	ExitCode int `json:"exitCode"`
}

// PromptRecord is one entry in a queue's ordered prompt list.
type PromptRecord struct {
	ID          string             `json:"id"`
	Prompt      string             `json:"prompt"`
	Images      []string           `json:"images,omitempty"`
	Status      PromptRecordStatus `json:"status"`
	Mode        PromptMode         `json:"mode"`
	Result      *PromptResult      `json:"result,omitempty"`
	AddedAt     time.Time          `json:"addedAt"`
	StartedAt   *time.Time         `json:"startedAt,omitempty"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
}

// QueueRecord is the persisted shape of a queue: a named
// sequence of prompts executed serially against a project directory.
type QueueRecord struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ProjectPath string         `json:"projectPath"`
	Paused      bool           `json:"paused"`
	Prompts     []PromptRecord `json:"prompts"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// QueuesDocument is the on-disk shape of queues.json.
type QueuesDocument struct {
	Queues []QueueRecord `json:"queues"`
}

// QueueRepository persists QueueRecords to queues.json.
type QueueRepository struct {
	store *Store[QueuesDocument]
}

// NewQueueRepository opens the queue repository at path.
func NewQueueRepository(path string) *QueueRepository {
	return &QueueRepository{store: NewStore(path, func() QueuesDocument { return QueuesDocument{} })}
}

// List returns every persisted queue.
func (r *QueueRepository) List() ([]QueueRecord, error) {
	doc, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	return doc.Queues, nil
}

// Get returns the queue with the given id.
func (r *QueueRepository) Get(id string) (QueueRecord, error) {
	doc, err := r.store.Load()
	if err != nil {
		return QueueRecord{}, err
	}
	for _, q := range doc.Queues {
		if q.ID == id {
			return q, nil
		}
	}
	return QueueRecord{}, ErrNotFound
}

// Create appends a new queue, assigning it a uuid and a creation time.
func (r *QueueRepository) Create(name, projectPath string) (QueueRecord, error) {
	rec := QueueRecord{
		ID:          uuid.NewString(),
		Name:        name,
		ProjectPath: projectPath,
		Prompts:     []PromptRecord{},
		CreatedAt:   time.Now(),
	}
	_, err := r.store.Update(func(doc QueuesDocument) (QueuesDocument, error) {
		doc.Queues = append(doc.Queues, rec)
		return doc, nil
	})
	return rec, err
}

// Delete removes the queue with the given id.
func (r *QueueRepository) Delete(id string) error {
	_, err := r.store.Update(func(doc QueuesDocument) (QueuesDocument, error) {
		out := doc.Queues[:0]
		for _, q := range doc.Queues {
			if q.ID != id {
				out = append(out, q)
			}
		}
		doc.Queues = out
		return doc, nil
	})
	return err
}

// AddPrompt appends a prompt to the queue's command list.
func (r *QueueRepository) AddPrompt(id, prompt string, images []string, mode PromptMode) (QueueRecord, error) {
	return r.mutate(id, func(q *QueueRecord) error {
		q.Prompts = append(q.Prompts, PromptRecord{
			ID:      uuid.NewString(),
			Prompt:  prompt,
			Images:  images,
			Status:  PromptRecordPending,
			Mode:    mode,
			AddedAt: time.Now(),
		})
		return nil
	})
}

// RemoveCommand removes the prompt identified by commandID from the
// queue's prompt list.
func (r *QueueRepository) RemoveCommand(id, commandID string) (QueueRecord, error) {
	return r.mutate(id, func(q *QueueRecord) error {
		out := q.Prompts[:0]
		for _, p := range q.Prompts {
			if p.ID != commandID {
				out = append(out, p)
			}
		}
		q.Prompts = out
		return nil
	})
}

// UpdatePrompt edits a pending prompt's text and images (`PATCH
// /api/queues/:id/commands/:cid`).
func (r *QueueRepository) UpdatePrompt(id, commandID, prompt string, images []string) (QueueRecord, error) {
	return r.mutate(id, func(q *QueueRecord) error {
		for i := range q.Prompts {
			if q.Prompts[i].ID == commandID {
				q.Prompts[i].Prompt = prompt
				q.Prompts[i].Images = images
				return nil
			}
		}
		return ErrNotFound
	})
}

// MoveCommand relocates the prompt identified by commandID to newIndex
// within its queue's prompt list (`POST /api/queues/commands/move`).
func (r *QueueRepository) MoveCommand(id, commandID string, newIndex int) (QueueRecord, error) {
	return r.mutate(id, func(q *QueueRecord) error {
		idx := -1
		for i, p := range q.Prompts {
			if p.ID == commandID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotFound
		}
		if newIndex < 0 {
			newIndex = 0
		}
		if newIndex > len(q.Prompts)-1 {
			newIndex = len(q.Prompts) - 1
		}
		p := q.Prompts[idx]
		q.Prompts = append(q.Prompts[:idx], q.Prompts[idx+1:]...)
		head := append([]PromptRecord(nil), q.Prompts[:newIndex]...)
		head = append(head, p)
		q.Prompts = append(head, q.Prompts[newIndex:]...)
		return nil
	})
}

// SetCommandMode updates a single prompt's admission mode.
func (r *QueueRepository) SetCommandMode(id, commandID string, mode PromptMode) (QueueRecord, error) {
	return r.mutate(id, func(q *QueueRecord) error {
		for i := range q.Prompts {
			if q.Prompts[i].ID == commandID {
				q.Prompts[i].Mode = mode
				return nil
			}
		}
		return ErrNotFound
	})
}

// SetPaused updates the queue's paused flag (used by the stop endpoint).
func (r *QueueRepository) SetPaused(id string, paused bool) (QueueRecord, error) {
	return r.mutate(id, func(q *QueueRecord) error {
		q.Paused = paused
		return nil
	})
}

// Replace overwrites the queue record with rec, used by the queue runner
// to persist state after every prompt settles.
func (r *QueueRepository) Replace(rec QueueRecord) error {
	_, err := r.store.Update(func(doc QueuesDocument) (QueuesDocument, error) {
		for i := range doc.Queues {
			if doc.Queues[i].ID == rec.ID {
				doc.Queues[i] = rec
				return doc, nil
			}
		}
		return doc, ErrNotFound
	})
	return err
}

func (r *QueueRepository) mutate(id string, fn func(*QueueRecord) error) (QueueRecord, error) {
	var updated QueueRecord
	_, err := r.store.Update(func(doc QueuesDocument) (QueuesDocument, error) {
		for i := range doc.Queues {
			if doc.Queues[i].ID != id {
				continue
			}
			if err := fn(&doc.Queues[i]); err != nil {
				return doc, err
			}
			updated = doc.Queues[i]
			return doc, nil
		}
		return doc, ErrNotFound
	})
	return updated, err
}
