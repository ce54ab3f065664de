// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestStore_LoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "widget.json"), func() widget { return widget{Name: "empty"} })

	v, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "empty"}, v)
}

func TestStore_SaveThenLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widget.json")
	s := NewStore(path, func() widget { return widget{} })

	require.NoError(t, s.Save(widget{Name: "a", Count: 3}))

	v, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "a", Count: 3}, v)
}

func TestStore_SaveWritesTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widget.json")
	s := NewStore(path, func() widget { return widget{} })

	require.NoError(t, s.Save(widget{Name: "a"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widget.json")
	s := NewStore(path, func() widget { return widget{} })

	require.NoError(t, s.Save(widget{Name: "a"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "widget.json", entries[0].Name())
}

func TestStore_LoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widget.json")
	require.NoError(t, os.WriteFile(path, []byte{}, 0o644))

	s := NewStore(path, func() widget { return widget{Name: "zero"} })
	v, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "zero"}, v)
}

func TestStore_LoadCorruptFileYieldsZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widget.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	s := NewStore(path, func() widget { return widget{Name: "zero"} })
	v, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, widget{Name: "zero"}, v)
}

func TestStore_Update(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widget.json")
	s := NewStore(path, func() widget { return widget{} })

	v, err := s.Update(func(w widget) (widget, error) {
		w.Count++
		return w, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v.Count)

	v, err = s.Update(func(w widget) (widget, error) {
		w.Count++
		return w, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Count)
}

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widget.json")
	s := NewStore(path, func() widget { return widget{} })

	want := widget{Name: "round-trip", Count: 42}
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStore_ConcurrentUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "widget.json")
	s := NewStore(path, func() widget { return widget{} })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(w widget) (widget, error) {
				w.Count++
				return w, nil
			})
		}()
	}
	wg.Wait()

	v, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, 50, v.Count)
}
