// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookmarkType discriminates the three allowed bookmark shapes.
type BookmarkType string

const (
	BookmarkSession BookmarkType = "session"
	BookmarkMessage BookmarkType = "message"
	BookmarkRange   BookmarkType = "range"
)

// BookmarkRecord is the persisted shape of a bookmark.
// Validation (enforced by Create, not by the struct alone):
// `session` allows only the base fields; `message` requires MessageID;
// `range` requires both FromMessageID and ToMessageID; no cross
// contamination between the three shapes.
type BookmarkRecord struct {
	ID            string     `json:"id"`
	Type          BookmarkType `json:"type"`
	SessionID     string     `json:"sessionId"`
	MessageID     string     `json:"messageId,omitempty"`
	FromMessageID string     `json:"fromMessageId,omitempty"`
	ToMessageID   string     `json:"toMessageId,omitempty"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Validate enforces the per-type field requirements and rejects
// cross-contamination between bookmark shapes.
func (b BookmarkRecord) Validate() error {
	switch b.Type {
	case BookmarkSession:
		if b.MessageID != "" || b.FromMessageID != "" || b.ToMessageID != "" {
			return fmt.Errorf("repo: session bookmark must not carry message fields")
		}
	case BookmarkMessage:
		if b.MessageID == "" {
			return fmt.Errorf("repo: message bookmark requires messageId")
		}
		if b.FromMessageID != "" || b.ToMessageID != "" {
			return fmt.Errorf("repo: message bookmark must not carry range fields")
		}
	case BookmarkRange:
		if b.FromMessageID == "" || b.ToMessageID == "" {
			return fmt.Errorf("repo: range bookmark requires fromMessageId and toMessageId")
		}
		if b.MessageID != "" {
			return fmt.Errorf("repo: range bookmark must not carry messageId")
		}
	default:
		return fmt.Errorf("repo: unknown bookmark type %q", b.Type)
	}
	return nil
}

// dedupedTags trims, drops empty, and deduplicates tags.
func dedupedTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// BookmarksDocument is the on-disk shape of bookmarks.json.
type BookmarksDocument struct {
	Bookmarks []BookmarkRecord `json:"bookmarks"`
}

// BookmarkRepository persists BookmarkRecords to bookmarks.json.
type BookmarkRepository struct {
	store *Store[BookmarksDocument]
}

// NewBookmarkRepository opens the bookmark repository at path.
func NewBookmarkRepository(path string) *BookmarkRepository {
	return &BookmarkRepository{store: NewStore(path, func() BookmarksDocument { return BookmarksDocument{} })}
}

// List returns every persisted bookmark, optionally filtered to sessionID
// when non-empty.
func (r *BookmarkRepository) List(sessionID string) ([]BookmarkRecord, error) {
	doc, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	if sessionID == "" {
		return doc.Bookmarks, nil
	}
	out := make([]BookmarkRecord, 0, len(doc.Bookmarks))
	for _, b := range doc.Bookmarks {
		if b.SessionID == sessionID {
			out = append(out, b)
		}
	}
	return out, nil
}

// Get returns the bookmark with the given id.
func (r *BookmarkRepository) Get(id string) (BookmarkRecord, error) {
	doc, err := r.store.Load()
	if err != nil {
		return BookmarkRecord{}, err
	}
	for _, b := range doc.Bookmarks {
		if b.ID == id {
			return b, nil
		}
	}
	return BookmarkRecord{}, ErrNotFound
}

// Create validates and persists a new bookmark.
func (r *BookmarkRepository) Create(b BookmarkRecord) (BookmarkRecord, error) {
	now := time.Now()
	b.ID = uuid.NewString()
	b.Tags = dedupedTags(b.Tags)
	b.CreatedAt = now
	b.UpdatedAt = now
	if err := b.Validate(); err != nil {
		return BookmarkRecord{}, err
	}
	_, err := r.store.Update(func(doc BookmarksDocument) (BookmarksDocument, error) {
		doc.Bookmarks = append(doc.Bookmarks, b)
		return doc, nil
	})
	return b, err
}

// Delete removes the bookmark with the given id.
func (r *BookmarkRepository) Delete(id string) error {
	_, err := r.store.Update(func(doc BookmarksDocument) (BookmarksDocument, error) {
		out := doc.Bookmarks[:0]
		for _, b := range doc.Bookmarks {
			if b.ID != id {
				out = append(out, b)
			}
		}
		doc.Bookmarks = out
		return doc, nil
	})
	return err
}
