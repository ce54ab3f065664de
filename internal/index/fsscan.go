// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tacogips/codexd/internal/rollout"
)

// FSIndex walks the ${home}/sessions and ${home}/archived_sessions
// directory layout, building session records from each rollout's first
// line and first user message.
type FSIndex struct {
	home string
}

// NewFSIndex creates a filesystem-backed index rooted at home (CODEX_HOME).
func NewFSIndex(home string) *FSIndex {
	return &FSIndex{home: home}
}

func (idx *FSIndex) sessionsDir() string { return filepath.Join(idx.home, "sessions") }
func (idx *FSIndex) archivedDir() string { return filepath.Join(idx.home, "archived_sessions") }

func isRolloutFile(name string) bool {
	return strings.HasPrefix(name, "rollout-") && strings.HasSuffix(name, ".jsonl")
}

// scan walks both directory roots and builds one record per discoverable
// rollout file. Rollouts without a session_meta as their first line are
// silently skipped.
func (idx *FSIndex) scan() []Record {
	var records []Record

	walk := func(root string, archived bool) {
		_ = filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if !isRolloutFile(d.Name()) {
				return nil
			}
			rec, ok := buildRecord(p, archived)
			if !ok {
				return nil
			}
			records = append(records, rec)
			return nil
		})
	}

	walk(idx.sessionsDir(), false)
	walk(idx.archivedDir(), true)
	return records
}

func buildRecord(path string, archived bool) (Record, bool) {
	line, err := rollout.ParseSessionMeta(path)
	if err != nil || line == nil {
		return Record{}, false
	}
	meta, ok := line.SessionMeta()
	if !ok {
		return Record{}, false
	}

	fi, err := os.Stat(path)
	if err != nil {
		return Record{}, false
	}

	rec := Record{
		ID:          meta.Meta.ID,
		RolloutPath: path,
		CreatedAt:   line.Timestamp,
		UpdatedAt:   fi.ModTime(),
		Source:      meta.Meta.Source,
		Cwd:         meta.Meta.Cwd,
		CLIVersion:  meta.Meta.CLIVersion,
	}
	if meta.Git != nil {
		rec.GitSHA = meta.Git.SHA
		rec.GitBranch = meta.Git.Branch
		rec.GitOriginURL = meta.Git.OriginURL
	}
	if archived {
		t := fi.ModTime()
		rec.ArchivedAt = &t
	}

	if text, ok := rollout.ExtractFirstUserMessage(path); ok {
		rec.FirstUserMessage = text
		rec.Title = text
	} else {
		rec.Title = rec.ID
	}

	return rec, true
}

// List filters, sorts and paginates the filesystem scan in memory.
func (idx *FSIndex) List(opts ListOptions) (Page, error) {
	opts = opts.WithDefaults()
	all := idx.scan()

	filtered := all[:0:0]
	for _, r := range all {
		if opts.Source != "" && r.Source != opts.Source {
			continue
		}
		if opts.Cwd != "" && r.Cwd != opts.Cwd {
			continue
		}
		if opts.GitBranch != "" && r.GitBranch != opts.GitBranch {
			continue
		}
		filtered = append(filtered, r)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		var less bool
		switch opts.SortBy {
		case SortUpdatedAt:
			less = filtered[i].UpdatedAt.Before(filtered[j].UpdatedAt)
		default:
			less = filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
		}
		if opts.SortOrder == SortDesc {
			return !less
		}
		return less
	})

	total := len(filtered)
	start := opts.Offset
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	return Page{Sessions: filtered[start:end], Total: total, Offset: opts.Offset, Limit: opts.Limit}, nil
}

// Find returns the record for id, or (Record{}, false) if not found.
func (idx *FSIndex) Find(id string) (Record, bool) {
	for _, r := range idx.scan() {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// FindLatest returns the most recently created session, optionally
// filtered by cwd.
func (idx *FSIndex) FindLatest(cwd string) (Record, bool) {
	all := idx.scan()
	var best Record
	found := false
	for _, r := range all {
		if cwd != "" && r.Cwd != cwd {
			continue
		}
		if !found || r.CreatedAt.After(best.CreatedAt) {
			best = r
			found = true
		}
	}
	return best, found
}
