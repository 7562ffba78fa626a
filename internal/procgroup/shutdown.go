// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package procgroup

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/yanagi/internal/metrics"
)

// Terminate stops a process group: SIGTERM, then SIGKILL once grace has
// elapsed. It consumes waitCh and returns the process's wait error.
// Nil commands are a no-op.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	recordKill("SIGTERM", Kill(cmd, syscall.SIGTERM))

	select {
	case err := <-waitCh:
		if err == nil {
			metrics.IncProcWait("exit0")
		} else {
			metrics.IncProcWait("exit_nonzero")
		}
		return err
	case <-time.After(grace):
		recordKill("SIGKILL", Kill(cmd, syscall.SIGKILL))

		// SIGKILL frees a blocked process, so this returns.
		err := <-waitCh
		if err == nil {
			metrics.IncProcWait("forced_exit0")
		} else {
			metrics.IncProcWait("forced_error")
		}
		return err
	}
}

func recordKill(signal string, err error) {
	if err == nil {
		metrics.IncProcTerminate(signal, "sent")
		return
	}
	metrics.IncProcTerminate(signal, "error")
}
