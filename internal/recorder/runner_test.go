// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shInvocation(script string, d time.Duration) Invocation {
	return Invocation{Command: "sh", Args: []string{"-c", script}, Duration: d}
}

func TestExecRunnerSuccess(t *testing.T) {
	r := NewExecRunner()
	require.NoError(t, r.Run(context.Background(), shInvocation("exit 0", time.Second)))
}

func TestExecRunnerExitError(t *testing.T) {
	r := NewExecRunner()
	err := r.Run(context.Background(), shInvocation("echo 'no tuner available' >&2; exit 3", time.Second))

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "recorder exited with code 3: no tuner available", err.Error())
}

func TestExecRunnerAwaitsPastDuration(t *testing.T) {
	r := NewExecRunner()
	require.Zero(t, r.OverrunGrace)

	start := time.Now()
	err := r.Run(context.Background(), shInvocation("sleep 1", 100*time.Millisecond))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestExecRunnerOverrunOptIn(t *testing.T) {
	r := &ExecRunner{OverrunGrace: 50 * time.Millisecond, KillGrace: 100 * time.Millisecond}
	err := r.Run(context.Background(), shInvocation("sleep 30", 0))
	assert.ErrorIs(t, err, ErrOverrun)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	r := NewExecRunner()
	err := r.Run(context.Background(), Invocation{Command: "/nonexistent/recpt1"})
	assert.Error(t, err)
}

func TestTailBufferKeepsEnd(t *testing.T) {
	b := &tailBuffer{max: 4}
	_, _ = b.Write([]byte("abc"))
	_, _ = b.Write([]byte("def"))
	assert.Equal(t, "cdef", b.String())
}
