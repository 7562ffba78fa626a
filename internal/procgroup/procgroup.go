// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts recorder processes in their own process group and
// tears the whole group down when needed.
package procgroup

import (
	"errors"
	"os/exec"
)

// ErrNotStarted is returned when a command has no process.
var ErrNotStarted = errors.New("process not started")

// Set configures the command to start in a new process group.
// Mandatory for Kill and Terminate to reach child processes.
func Set(cmd *exec.Cmd) {
	set(cmd)
}
