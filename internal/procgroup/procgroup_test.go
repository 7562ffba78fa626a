// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux

package procgroup

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startGroup(t *testing.T, script string) (*exec.Cmd, <-chan error) {
	t.Helper()
	cmd := exec.Command("sh", "-c", script)
	Set(cmd)
	require.NoError(t, cmd.Start())

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()
	return cmd, waitCh
}

func TestSetMakesGroupLeader(t *testing.T) {
	cmd, waitCh := startGroup(t, "sleep 10")
	defer func() { _ = Terminate(cmd, waitCh, 100*time.Millisecond) }()

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	require.NoError(t, err)
	assert.Equal(t, cmd.Process.Pid, pgid)
}

func TestTerminateKillsWholeGroup(t *testing.T) {
	cmd, waitCh := startGroup(t, "sleep 100 & sleep 100")
	pgid := cmd.Process.Pid
	time.Sleep(100 * time.Millisecond)

	err := Terminate(cmd, waitCh, 500*time.Millisecond)
	require.Error(t, err, "terminated process reports a signal exit")

	require.Eventually(t, func() bool {
		return syscall.Kill(-pgid, syscall.Signal(0)) == syscall.ESRCH
	}, 2*time.Second, 20*time.Millisecond, "process group should be gone")
}

func TestTerminateEscalatesToSIGKILL(t *testing.T) {
	cmd, waitCh := startGroup(t, "trap '' TERM; sleep 100")
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	err := Terminate(cmd, waitCh, 200*time.Millisecond)
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestKillAfterExit(t *testing.T) {
	cmd, waitCh := startGroup(t, "true")
	require.NoError(t, <-waitCh)
	assert.NoError(t, Kill(cmd, syscall.SIGTERM))
}

func TestNilCommand(t *testing.T) {
	assert.NoError(t, Terminate(nil, nil, time.Millisecond))
	assert.ErrorIs(t, Kill(&exec.Cmd{}, syscall.SIGTERM), ErrNotStarted)
}
