// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup by id finds no matching record.
var ErrNotFound = errors.New("repo: not found")

// GroupRecord is the persisted shape of a group: a named set of
// session ids over which one prompt is fanned out.
type GroupRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Paused        bool      `json:"paused"`
	SessionIDs    []string  `json:"sessionIds"`
	MaxConcurrent int       `json:"maxConcurrent,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// GroupsDocument is the on-disk shape of groups.json.
type GroupsDocument struct {
	Groups []GroupRecord `json:"groups"`
}

// GroupRepository persists GroupRecords to groups.json.
type GroupRepository struct {
	store *Store[GroupsDocument]
}

// NewGroupRepository opens (without reading) the group repository at path.
func NewGroupRepository(path string) *GroupRepository {
	return &GroupRepository{store: NewStore(path, func() GroupsDocument { return GroupsDocument{} })}
}

// List returns every persisted group.
func (r *GroupRepository) List() ([]GroupRecord, error) {
	doc, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	return doc.Groups, nil
}

// Get returns the group with the given id.
func (r *GroupRepository) Get(id string) (GroupRecord, error) {
	doc, err := r.store.Load()
	if err != nil {
		return GroupRecord{}, err
	}
	for _, g := range doc.Groups {
		if g.ID == id {
			return g, nil
		}
	}
	return GroupRecord{}, ErrNotFound
}

// Create appends a new group, assigning it a uuid and timestamps.
func (r *GroupRepository) Create(name, description string) (GroupRecord, error) {
	now := time.Now()
	rec := GroupRecord{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		SessionIDs:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := r.store.Update(func(doc GroupsDocument) (GroupsDocument, error) {
		doc.Groups = append(doc.Groups, rec)
		return doc, nil
	})
	return rec, err
}

// Delete removes the group with the given id. Deleting a missing id is a
// no-op (repository writes don't fail on a no-op delete).
func (r *GroupRepository) Delete(id string) error {
	_, err := r.store.Update(func(doc GroupsDocument) (GroupsDocument, error) {
		doc.Groups = removeGroup(doc.Groups, id)
		return doc, nil
	})
	return err
}

// AddSession appends sessionID to the group's ordered-unique session list.
func (r *GroupRepository) AddSession(id, sessionID string) (GroupRecord, error) {
	return r.mutate(id, func(g *GroupRecord) error {
		for _, existing := range g.SessionIDs {
			if existing == sessionID {
				return nil
			}
		}
		g.SessionIDs = append(g.SessionIDs, sessionID)
		return nil
	})
}

// RemoveSession removes sessionID from the group's session list.
func (r *GroupRepository) RemoveSession(id, sessionID string) (GroupRecord, error) {
	return r.mutate(id, func(g *GroupRecord) error {
		out := g.SessionIDs[:0]
		for _, existing := range g.SessionIDs {
			if existing != sessionID {
				out = append(out, existing)
			}
		}
		g.SessionIDs = out
		return nil
	})
}

// SetPaused updates the group's paused flag.
func (r *GroupRepository) SetPaused(id string, paused bool) (GroupRecord, error) {
	return r.mutate(id, func(g *GroupRecord) error {
		g.Paused = paused
		return nil
	})
}

// mutate loads the group, applies fn, stamps UpdatedAt, and persists.
func (r *GroupRepository) mutate(id string, fn func(*GroupRecord) error) (GroupRecord, error) {
	var updated GroupRecord
	_, err := r.store.Update(func(doc GroupsDocument) (GroupsDocument, error) {
		for i := range doc.Groups {
			if doc.Groups[i].ID != id {
				continue
			}
			if err := fn(&doc.Groups[i]); err != nil {
				return doc, err
			}
			doc.Groups[i].UpdatedAt = time.Now()
			updated = doc.Groups[i]
			return doc, nil
		}
		return doc, ErrNotFound
	})
	return updated, err
}

func removeGroup(groups []GroupRecord, id string) []GroupRecord {
	out := groups[:0]
	for _, g := range groups {
		if g.ID != id {
			out = append(out, g)
		}
	}
	return out
}
