// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package index

// Index discovers sessions with a two-tier lookup:
// the optional SQLite index is tried first; any failure (missing
// ${home}/state, missing threads table, query error) falls through to the
// filesystem scan.
type Index struct {
	home   string
	sqlite *sqliteIndex
	fs     *FSIndex
}

// New creates an Index rooted at home (CODEX_HOME).
func New(home string) *Index {
	idx := &Index{home: home, fs: NewFSIndex(home)}
	if s, ok := newSQLiteIndex(home); ok {
		idx.sqlite = s
	}
	return idx
}

// List filters, sorts and paginates the discoverable sessions.
func (idx *Index) List(opts ListOptions) (Page, error) {
	if idx.sqlite != nil {
		if page, ok := idx.sqlite.List(opts); ok {
			return page, nil
		}
	}
	return idx.fs.List(opts)
}

// Find is findSession(id).
func (idx *Index) Find(id string) (Record, bool) {
	if idx.sqlite != nil {
		if page, ok := idx.sqlite.List(ListOptions{Limit: 1 << 30}); ok {
			for _, r := range page.Sessions {
				if r.ID == id {
					return r, true
				}
			}
			return Record{}, false
		}
	}
	return idx.fs.Find(id)
}

// FindLatest is findLatestSession(cwd?).
func (idx *Index) FindLatest(cwd string) (Record, bool) {
	if idx.sqlite != nil {
		opts := ListOptions{Cwd: cwd, SortBy: SortCreatedAt, SortOrder: SortDesc, Limit: 1}
		if page, ok := idx.sqlite.List(opts); ok {
			if len(page.Sessions) == 0 {
				return Record{}, false
			}
			return page.Sessions[0], true
		}
	}
	return idx.fs.FindLatest(cwd)
}
