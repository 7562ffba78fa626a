// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	xglog "github.com/ManuGH/yanagi/internal/log"
	"github.com/ManuGH/yanagi/internal/procgroup"
)

// ErrOverrun is returned when a recorder keeps running well past its duration.
var ErrOverrun = errors.New("recorder: overran its duration")

// Runner executes one recorder invocation to completion.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExecRunner runs the recorder as a child process in its own process group.
type ExecRunner struct {
	// OverrunGrace, when positive, is how long past the requested duration
	// the process may keep running before its group is terminated. Zero
	// awaits the process however long it takes.
	OverrunGrace time.Duration
	// KillGrace is the SIGTERM to SIGKILL delay.
	KillGrace time.Duration
}

// NewExecRunner returns a runner that awaits every recording without a
// deadline.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{KillGrace: 10 * time.Second}
}

// Run starts the recorder and waits for it. A non-zero exit is returned as an
// error carrying the tail of stderr.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	logger := xglog.WithComponentFromContext(ctx, "recorder")

	cmd := exec.Command(inv.Command, inv.Args...)
	procgroup.Set(cmd)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", inv.Command, err)
	}
	logger.Debug().
		Str(xglog.FieldEvent, "recorder.exec").
		Int("os_pid", cmd.Process.Pid).
		Strs("args", inv.Args).
		Msg("recorder process started")

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var overrun <-chan time.Time
	if r.OverrunGrace > 0 {
		deadline := time.NewTimer(inv.Duration + r.OverrunGrace)
		defer deadline.Stop()
		overrun = deadline.C
	}

	var err error
	select {
	case err = <-waitCh:
	case <-overrun:
		logger.Warn().
			Str(xglog.FieldEvent, "recorder.overrun").
			Dur("grace", r.OverrunGrace).
			Msg("recorder overran its duration, terminating process group")
		_ = procgroup.Terminate(cmd, waitCh, r.KillGrace)
		return ErrOverrun
	case <-ctx.Done():
		_ = procgroup.Terminate(cmd, waitCh, r.KillGrace)
		return ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return fmt.Errorf("wait %s: %w", inv.Command, err)
	}
	return nil
}

// ExitError reports a recorder that exited unsuccessfully.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("recorder exited with code %d", e.Code)
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		msg += ": " + lastLine(tail)
	}
	return msg
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
