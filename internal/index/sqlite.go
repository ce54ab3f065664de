// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// sqliteIndex is the optional read-only `threads` table backend. It is
// used only when ${home}/state exists and matches
// the expected schema; any failure falls through to the filesystem scan.
type sqliteIndex struct {
	path string
}

func newSQLiteIndex(home string) (*sqliteIndex, bool) {
	path := filepath.Join(home, "state")
	if _, err := os.Stat(path); err != nil {
		return nil, false
	}
	return &sqliteIndex{path: path}, true
}

func (s *sqliteIndex) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+s.path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	var name string
	row := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='threads'`)
	if err := row.Scan(&name); err != nil {
		db.Close()
		return nil, fmt.Errorf("no threads table: %w", err)
	}
	return db, nil
}

func (s *sqliteIndex) List(opts ListOptions) (Page, bool) {
	opts = opts.WithDefaults()
	db, err := s.open()
	if err != nil {
		return Page{}, false
	}
	defer db.Close()

	where := "1=1"
	var args []any
	if opts.Source != "" {
		where += " AND source = ?"
		args = append(args, opts.Source)
	}
	if opts.Cwd != "" {
		where += " AND cwd = ?"
		args = append(args, opts.Cwd)
	}
	if opts.GitBranch != "" {
		where += " AND git_branch = ?"
		args = append(args, opts.GitBranch)
	}

	order := "created_at"
	if opts.SortBy == SortUpdatedAt {
		order = "updated_at"
	}
	dir := "DESC"
	if opts.SortOrder == SortAsc {
		dir = "ASC"
	}

	var total int
	countArgs := append([]any{}, args...)
	row := db.QueryRow(`SELECT COUNT(*) FROM threads WHERE `+where, countArgs...)
	if err := row.Scan(&total); err != nil {
		return Page{}, false
	}

	query := fmt.Sprintf(`SELECT id, rollout_path, created_at, updated_at, source, cwd, cli_version, title, first_user_message, git_sha, git_branch, git_origin_url
		FROM threads WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?`, where, order, dir)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return Page{}, false
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var createdAt, updatedAt int64
		var title, firstUserMessage, gitSHA, gitBranch, gitOriginURL sql.NullString
		if err := rows.Scan(&r.ID, &r.RolloutPath, &createdAt, &updatedAt, &r.Source, &r.Cwd, &r.CLIVersion,
			&title, &firstUserMessage, &gitSHA, &gitBranch, &gitOriginURL); err != nil {
			return Page{}, false
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		r.UpdatedAt = time.UnixMilli(updatedAt)
		r.FirstUserMessage = firstUserMessage.String
		r.Title = title.String
		if r.Title == "" {
			r.Title = firstNonEmpty(firstUserMessage.String, r.ID)
		}
		r.GitSHA = gitSHA.String
		r.GitBranch = gitBranch.String
		r.GitOriginURL = gitOriginURL.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return Page{}, false
	}

	return Page{Sessions: records, Total: total, Offset: opts.Offset, Limit: opts.Limit}, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
