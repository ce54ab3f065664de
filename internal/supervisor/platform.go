// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

var errNotRunning = errors.New("supervisor: process is not running")

// procAttr puts the child in its own process group so kill() can signal
// the whole tree, not just the immediate child.
func procAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup signals the process group rooted at pid. A vanished group
// is not an error.
func signalGroup(pid int, sig unix.Signal) error {
	err := unix.Kill(-pid, sig)
	if err != nil && err == unix.ESRCH {
		return nil
	}
	return err
}
