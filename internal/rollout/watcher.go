// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package rollout

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// LineEvent is emitted for every newly-appended, successfully-parsed line.
type LineEvent struct {
	Path string
	Line *Line
}

// Watcher tails one or many append-only rollout files and watches
// directories for newly-created rollout files.
type Watcher struct {
	onLine       func(LineEvent)
	onNewSession func(path string)
	onError      func(path string, err error)

	fsw       *fsnotify.Watcher
	debouncer *debouncer

	mu      sync.Mutex
	files   map[string]*fileState
	dirs    map[string]int // ref-counted directory watches
	closed  bool
	started bool
}

type fileState struct {
	mu        sync.Mutex
	offset    int64
	reading   bool
	pending   bool
	directory bool
}

// Config configures a Watcher's callbacks. All fields are optional.
type Config struct {
	OnLine       func(LineEvent)
	OnNewSession func(path string)
	OnError      func(path string, err error)
}

// NewWatcher creates a Watcher and starts its fsnotify event loop.
func NewWatcher(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		onLine:       cfg.OnLine,
		onNewSession: cfg.OnNewSession,
		onError:      cfg.OnError,
		fsw:          fsw,
		debouncer:    newDebouncer(0),
		files:        make(map[string]*fileState),
		dirs:         make(map[string]int),
	}
	w.started = true
	go w.processEvents()
	return w, nil
}

// WatchFile arms a debounced tail on path. Idempotent if already watching.
// If startOffset is nil, the offset is initialized to the file's current
// size so pre-existing content is NOT emitted.
func (w *Watcher) WatchFile(path string, startOffset *int64) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	if _, exists := w.files[path]; exists {
		w.mu.Unlock()
		return nil
	}

	var offset int64
	if startOffset != nil {
		offset = *startOffset
	} else {
		if fi, err := os.Stat(path); err == nil {
			offset = fi.Size()
		}
	}

	w.files[path] = &fileState{offset: offset}
	w.mu.Unlock()

	if err := w.fsw.Add(path); err != nil {
		return fmt.Errorf("watch file %s: %w", path, err)
	}
	return nil
}

// UnwatchFile detaches a file's tail.
func (w *Watcher) UnwatchFile(path string) {
	w.mu.Lock()
	delete(w.files, path)
	w.mu.Unlock()
	w.debouncer.cancel(path)
	_ = w.fsw.Remove(path)
}

// WatchDirectory watches dir recursively for new rollout-*.jsonl files.
func (w *Watcher) WatchDirectory(dir string) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.dirs[dir]++
	refs := w.dirs[dir]
	w.mu.Unlock()

	if refs > 1 {
		return nil
	}

	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return w.fsw.Add(p)
		}
		return nil
	})
}

// UnwatchDirectory decrements the directory's watch reference count.
func (w *Watcher) UnwatchDirectory(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] <= 1 {
		delete(w.dirs, dir)
		_ = w.fsw.Remove(dir)
		return
	}
	w.dirs[dir]--
}

func (w *Watcher) processEvents() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.onError != nil {
				w.onError("", err)
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.mu.Lock()
	_, isWatchedFile := w.files[ev.Name]
	w.mu.Unlock()

	if isWatchedFile {
		w.debouncer.debounce(ev.Name, func() { w.readDelta(ev.Name) })
		return
	}

	if ev.Op&fsnotify.Create == 0 {
		return
	}

	// New date directories appear under watched roots as sessions are
	// created; they must be added so their rollouts are seen too.
	if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
		_ = w.fsw.Add(ev.Name)
		return
	}

	if isRolloutName(ev.Name) {
		if w.onNewSession != nil {
			w.onNewSession(ev.Name)
		}
	}
}

func isRolloutName(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "rollout-") && strings.HasSuffix(base, ".jsonl")
}

// readDelta enforces the single-outstanding-read-per-file invariant: if
// a change fires while a read is already in flight, a pending
// flag is set instead of starting a second read; the in-flight read
// re-checks the flag when it finishes and reads again if needed.
func (w *Watcher) readDelta(path string) {
	w.mu.Lock()
	fs, ok := w.files[path]
	w.mu.Unlock()
	if !ok {
		return
	}

	fs.mu.Lock()
	if fs.reading {
		fs.pending = true
		fs.mu.Unlock()
		return
	}
	fs.reading = true
	fs.mu.Unlock()

	for {
		w.doRead(path, fs)

		fs.mu.Lock()
		if fs.pending {
			fs.pending = false
			fs.mu.Unlock()
			continue
		}
		fs.reading = false
		fs.mu.Unlock()
		return
	}
}

func (w *Watcher) doRead(path string, fs *fileState) {
	fi, err := os.Stat(path)
	if err != nil {
		if w.onError != nil {
			w.onError(path, err)
		}
		return
	}

	fs.mu.Lock()
	offset := fs.offset
	fs.mu.Unlock()

	size := fi.Size()
	if size <= offset {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if w.onError != nil {
			w.onError(path, err)
		}
		return
	}
	defer f.Close()

	if _, err := f.Seek(offset, 0); err != nil {
		if w.onError != nil {
			w.onError(path, err)
		}
		return
	}

	buf := make([]byte, size-offset)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		if w.onError != nil {
			w.onError(path, err)
		}
		return
	}

	fs.mu.Lock()
	fs.offset = offset + int64(n)
	fs.mu.Unlock()

	sc := bufio.NewScanner(bytes.NewReader(buf[:n]))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		l, _ := Parse(sc.Bytes())
		if l != nil && w.onLine != nil {
			w.onLine(LineEvent{Path: path, Line: l})
		}
	}
}

// Stop clears all timers, closes the fsnotify watcher, and detaches all
// listeners.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.debouncer.stop()
	_ = w.fsw.Close()
}
