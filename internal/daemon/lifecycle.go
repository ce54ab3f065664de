// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mitchellh/go-ps"
)

// Mode is the transport the daemon is driving sessions through.
type Mode string

const (
	ModeHTTP      Mode = "http"
	ModeAppServer Mode = "app-server"
)

// PidFile is the persisted shape of daemon.pid.
type PidFile struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"startedAt"`
	Mode      Mode      `json:"mode"`
}

// LifecycleStatus is the pid-file's tri-state.
type LifecycleStatus string

const (
	StatusRunning LifecycleStatus = "running"
	StatusStale   LifecycleStatus = "stale"
	StatusStopped LifecycleStatus = "stopped"
)

// Lifecycle manages daemon.pid: writing it on start, reading/classifying
// it for `codexd status`/Server.Start's staleness check, and removing it
// on clean stop.
type Lifecycle struct {
	path string
}

// NewLifecycle opens the pid-file at path (typically `${configDir}/daemon.pid`).
func NewLifecycle(path string) *Lifecycle {
	return &Lifecycle{path: path}
}

// Write persists the pid-file for the current process.
func (l *Lifecycle) Write(port int, mode Mode) error {
	pf := PidFile{PID: os.Getpid(), Port: port, StartedAt: time.Now(), Mode: mode}
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	tmp := fmt.Sprintf("%s.%d.tmp", l.path, os.Getpid())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Remove deletes the pid-file on clean stop. A missing file is not an
// error.
func (l *Lifecycle) Remove() error {
	err := os.Remove(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Read loads the pid-file, returning (nil, nil) if it doesn't exist.
func (l *Lifecycle) Read() (*PidFile, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pf PidFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, nil
	}
	return &pf, nil
}

// Status classifies the current pid-file state: `stopped` if absent,
// `running` if its pid is alive, `stale` otherwise. Uses a process-table
// lookup rather than a signal-0 probe so the target need not be a child
// of this process.
func (l *Lifecycle) Status() (LifecycleStatus, *PidFile, error) {
	pf, err := l.Read()
	if err != nil {
		return StatusStopped, nil, err
	}
	if pf == nil {
		return StatusStopped, nil, nil
	}

	proc, err := ps.FindProcess(pf.PID)
	if err != nil || proc == nil {
		return StatusStale, pf, nil
	}
	return StatusRunning, pf, nil
}

// HealthPollBudget and HealthPollInterval are the daemon-start health
// poll's defaults.
const (
	HealthPollBudget   = 10 * time.Second
	HealthPollInterval = 200 * time.Millisecond
)

// HealthPoll polls url at the given interval until it answers 2xx or the
// budget elapses.
func HealthPoll(url string, budget, interval time.Duration) bool {
	client := &http.Client{Timeout: interval}
	deadline := time.Now().Add(budget)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return true
			}
		}
		time.Sleep(interval)
	}
	return false
}

// ErrAlreadyRunning is returned by Server.Start's staleness check when a
// running daemon already answers its health endpoint.
var ErrAlreadyRunning = fmt.Errorf("daemon: already running")
