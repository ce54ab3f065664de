// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package repo

import (
	"regexp"
	"strings"
	"time"
)

// FileOperation classifies what a shell command did to a path.
type FileOperation string

const (
	FileCreated  FileOperation = "created"
	FileModified FileOperation = "modified"
	FileDeleted  FileOperation = "deleted"
)

// ChangedFileRecord summarizes every observed change to one path,
// accumulated across exec-command/local-shell-call heuristics.
type ChangedFileRecord struct {
	Path         string        `json:"path"`
	Operation    FileOperation `json:"operation"`
	ChangeCount  int           `json:"changeCount"`
	LastModified time.Time     `json:"lastModified"`
}

// FileChangesDocument is the on-disk shape of file-changes-index.json
// persisted at ${configDir}/file-changes-index.json.
type FileChangesDocument struct {
	Files []ChangedFileRecord `json:"files"`
}

// FileChangeIndex persists ChangedFileRecords to file-changes-index.json.
type FileChangeIndex struct {
	store *Store[FileChangesDocument]
}

// NewFileChangeIndex opens the changed-file index at path.
func NewFileChangeIndex(path string) *FileChangeIndex {
	return &FileChangeIndex{store: NewStore(path, func() FileChangesDocument { return FileChangesDocument{} })}
}

// List returns every tracked changed-file record.
func (idx *FileChangeIndex) List() ([]ChangedFileRecord, error) {
	doc, err := idx.store.Load()
	if err != nil {
		return nil, err
	}
	return doc.Files, nil
}

// Find returns the record for path, if any.
func (idx *FileChangeIndex) Find(path string) (ChangedFileRecord, error) {
	doc, err := idx.store.Load()
	if err != nil {
		return ChangedFileRecord{}, err
	}
	for _, f := range doc.Files {
		if f.Path == path {
			return f, nil
		}
	}
	return ChangedFileRecord{}, ErrNotFound
}

// Rebuild replaces the index wholesale with files, used by
// `POST /api/files/rebuild`.
func (idx *FileChangeIndex) Rebuild(files []ChangedFileRecord) error {
	return idx.store.Save(FileChangesDocument{Files: files})
}

// Record applies one observed (path, operation) pair, creating or
// updating the matching record and bumping its change count.
func (idx *FileChangeIndex) Record(path string, op FileOperation, when time.Time) (ChangedFileRecord, error) {
	var updated ChangedFileRecord
	_, err := idx.store.Update(func(doc FileChangesDocument) (FileChangesDocument, error) {
		for i := range doc.Files {
			if doc.Files[i].Path == path {
				doc.Files[i].Operation = op
				doc.Files[i].ChangeCount++
				doc.Files[i].LastModified = when
				updated = doc.Files[i]
				return doc, nil
			}
		}
		updated = ChangedFileRecord{Path: path, Operation: op, ChangeCount: 1, LastModified: when}
		doc.Files = append(doc.Files, updated)
		return doc, nil
	})
	return updated, err
}

// pathWithExtension requires a filename component with a dotted
// extension, e.g. "src/main.go" or "./README.md", not "bin/codex" or
// a bare directory.
var pathWithExtension = regexp.MustCompile(`[^/\s]+\.[A-Za-z0-9]+$`)

// ClassifyShellCommand applies the operation prefix table to a raw shell
// command line, returning the path it touched, the inferred operation,
// and whether the command matched a recognized file-mutating shape at
// all. The prefix table: `rm` →
// deleted; `touch`, `cat >`, `echo >` → created; anything else that
// still names a file with an extension → modified.
func ClassifyShellCommand(command string) (path string, op FileOperation, ok bool) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", "", false
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", "", false
	}

	switch {
	case fields[0] == "rm":
		op = FileDeleted
	case strings.HasPrefix(command, "touch") || strings.HasPrefix(command, "cat >") || strings.HasPrefix(command, "echo >"):
		op = FileCreated
	default:
		op = FileModified
	}

	for _, f := range fields[1:] {
		f = strings.TrimPrefix(f, ">")
		f = strings.TrimPrefix(f, ">>")
		f = strings.Trim(f, "\"'")
		if pathWithExtension.MatchString(f) {
			return f, op, true
		}
	}
	return "", "", false
}
