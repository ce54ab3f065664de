// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package rollout

import (
	"bufio"
	"fmt"
	"os"
)

const maxLineSize = 4 * 1024 * 1024

// ReadAll reads the whole file, parses every line, and drops nils. I/O
// errors propagate; parse errors never do.
func ReadAll(path string) ([]*Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rollout: %w", err)
	}
	defer f.Close()

	var lines []*Line
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		l, _ := Parse(sc.Bytes())
		if l != nil {
			lines = append(lines, l)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read rollout: %w", err)
	}
	return lines, nil
}

// ParseSessionMeta returns the first session_meta record in the file. If
// the first successfully-parsed line is not a session_meta, the file has
// no discoverable metadata and (nil, nil) is returned; the file is never
// scanned further.
func ParseSessionMeta(path string) (*Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rollout: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		l, _ := Parse(sc.Bytes())
		if l == nil {
			continue
		}
		if l.Type != TypeSessionMeta {
			return nil, nil
		}
		return l, nil
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read rollout: %w", err)
	}
	return nil, nil
}

// StreamEvents yields every successfully-parsed line to fn, in file order,
// stopping at the first error fn returns. It is a finite, single-pass,
// non-restartable sequence.
func StreamEvents(path string, fn func(*Line) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open rollout: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		l, _ := Parse(sc.Bytes())
		if l == nil {
			continue
		}
		if err := fn(l); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read rollout: %w", err)
	}
	return nil
}

// ExtractFirstUserMessage returns the text of the first event_msg whose
// payload is a UserMessage with user_input provenance.
func ExtractFirstUserMessage(path string) (string, bool) {
	var found string
	var ok bool
	_ = StreamEvents(path, func(l *Line) error {
		if ok || l.Type != TypeEventMsg {
			return nil
		}
		if eventMsgType(l.Payload) != "UserMessage" {
			return nil
		}
		text, _ := l.Payload["message"].(string)
		if l.Provenance != nil && l.Provenance.Origin != OriginUserInput {
			return nil
		}
		found = text
		ok = true
		return nil
	})
	return found, ok
}
