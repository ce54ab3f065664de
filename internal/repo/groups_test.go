// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupRepository_CreateAndList(t *testing.T) {
	r := NewGroupRepository(filepath.Join(t.TempDir(), "groups.json"))

	g, err := r.Create("alpha", "first group")
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "alpha", g.Name)
	assert.Empty(t, g.SessionIDs)

	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, g.ID, list[0].ID)
}

func TestGroupRepository_Get_NotFound(t *testing.T) {
	r := NewGroupRepository(filepath.Join(t.TempDir(), "groups.json"))
	_, err := r.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGroupRepository_AddSession_Dedup(t *testing.T) {
	r := NewGroupRepository(filepath.Join(t.TempDir(), "groups.json"))
	g, err := r.Create("alpha", "")
	require.NoError(t, err)

	_, err = r.AddSession(g.ID, "s1")
	require.NoError(t, err)
	updated, err := r.AddSession(g.ID, "s1")
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, updated.SessionIDs)
}

func TestGroupRepository_RemoveSession(t *testing.T) {
	r := NewGroupRepository(filepath.Join(t.TempDir(), "groups.json"))
	g, err := r.Create("alpha", "")
	require.NoError(t, err)

	r.AddSession(g.ID, "s1")
	r.AddSession(g.ID, "s2")
	updated, err := r.RemoveSession(g.ID, "s1")
	require.NoError(t, err)

	assert.Equal(t, []string{"s2"}, updated.SessionIDs)
}

func TestGroupRepository_SetPaused(t *testing.T) {
	r := NewGroupRepository(filepath.Join(t.TempDir(), "groups.json"))
	g, err := r.Create("alpha", "")
	require.NoError(t, err)
	assert.False(t, g.Paused)

	updated, err := r.SetPaused(g.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Paused)
}

func TestGroupRepository_Delete(t *testing.T) {
	r := NewGroupRepository(filepath.Join(t.TempDir(), "groups.json"))
	g, err := r.Create("alpha", "")
	require.NoError(t, err)

	require.NoError(t, r.Delete(g.ID))

	list, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGroupRepository_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "groups.json")
	r1 := NewGroupRepository(path)
	g, err := r1.Create("alpha", "")
	require.NoError(t, err)

	r2 := NewGroupRepository(path)
	got, err := r2.Get(g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Name, got.Name)
}
