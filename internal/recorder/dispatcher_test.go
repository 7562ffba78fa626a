// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/yanagi/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakePrograms struct {
	mu       sync.Mutex
	programs map[int]store.Program
	finished map[int]time.Time
}

func newFakePrograms(ps ...store.Program) *fakePrograms {
	f := &fakePrograms{programs: map[int]store.Program{}, finished: map[int]time.Time{}}
	for _, p := range ps {
		f.programs[p.PID] = p
	}
	return f
}

func (f *fakePrograms) Program(_ context.Context, pid int) (store.Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.programs[pid]
	if !ok {
		return store.Program{}, fmt.Errorf("program %d: %w", pid, store.ErrNotFound)
	}
	return p, nil
}

func (f *fakePrograms) MarkJobFinished(_ context.Context, pid int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[pid] = at
	return nil
}

func (f *fakePrograms) isFinished(pid int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.finished[pid]
	return ok
}

// gatedRunner blocks each recording until its pid is released.
type gatedRunner struct {
	mu       sync.Mutex
	gates    map[int]chan error
	launched chan Invocation
}

func newGatedRunner() *gatedRunner {
	return &gatedRunner{gates: map[int]chan error{}, launched: make(chan Invocation, 16)}
}

func (r *gatedRunner) gate(pid int) chan error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gates[pid]
	if !ok {
		g = make(chan error, 1)
		r.gates[pid] = g
	}
	return g
}

func (r *gatedRunner) release(pid int, err error) { r.gate(pid) <- err }

func (r *gatedRunner) Run(_ context.Context, inv Invocation) error {
	r.launched <- inv
	return <-r.gate(inv.PID)
}

type collector struct {
	mu      sync.Mutex
	results []Result
	seen    chan int
}

func newCollector() *collector { return &collector{seen: make(chan int, 16)} }

func (c *collector) add(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	c.seen <- r.PID
}

func newTestDispatcher(t *testing.T, capacity int, ps ...store.Program) (*Dispatcher, *gatedRunner, *collector, *fakePrograms) {
	t.Helper()
	cfg := recorderConfig()
	cfg.OutputDir = t.TempDir()
	programs := newFakePrograms(ps...)
	runner := newGatedRunner()
	col := newCollector()
	d := NewDispatcher(programs, StaticConfig(cfg), runner, Options{Capacity: capacity, OnResult: col.add})
	return d, runner, col, programs
}

func expectLaunch(t *testing.T, r *gatedRunner, pid int) Invocation {
	t.Helper()
	select {
	case inv := <-r.launched:
		require.Equal(t, pid, inv.PID)
		return inv
	case <-time.After(time.Second):
		t.Fatalf("pid %d not launched", pid)
		return Invocation{}
	}
}

func TestDrainReportsInSubmissionOrder(t *testing.T) {
	d, runner, col, _ := newTestDispatcher(t, 10, program(1, "A"), program(2, "B"))
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, 1))
	require.NoError(t, d.Dispatch(ctx, 2))
	expectLaunch(t, runner, 1)
	expectLaunch(t, runner, 2)

	// B finishes first, but A must be reported first.
	runner.release(2, nil)
	select {
	case pid := <-col.seen:
		t.Fatalf("pid %d reported before A finished", pid)
	case <-time.After(50 * time.Millisecond):
	}
	runner.release(1, nil)

	assert.Equal(t, 1, <-col.seen)
	assert.Equal(t, 2, <-col.seen)
	require.NoError(t, d.Shutdown(ctx))
}

func TestCompletionQueueFullFailsFast(t *testing.T) {
	d, runner, _, _ := newTestDispatcher(t, 2, program(1, "A"), program(2, "B"), program(3, "C"))
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, 1))
	require.NoError(t, d.Dispatch(ctx, 2))
	expectLaunch(t, runner, 1)
	expectLaunch(t, runner, 2)
	assert.Equal(t, 2, d.Pending())

	err := d.Dispatch(ctx, 3)
	require.ErrorIs(t, err, ErrCompletionQueueFull)
	select {
	case inv := <-runner.launched:
		t.Fatalf("pid %d launched despite full queue", inv.PID)
	case <-time.After(50 * time.Millisecond):
	}

	runner.release(1, nil)
	runner.release(2, nil)
	require.NoError(t, d.Shutdown(ctx))
}

func TestDispatchUnknownProgramIsFatal(t *testing.T) {
	d, runner, _, _ := newTestDispatcher(t, 2)
	err := d.Dispatch(context.Background(), 404)
	require.ErrorIs(t, err, ErrProgramNotFound)
	assert.Empty(t, runner.launched)
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestSuccessMarksFinishedAndWritesSidecar(t *testing.T) {
	d, runner, col, programs := newTestDispatcher(t, 2, program(10, "NHK General"), program(11, "TBS"))
	ctx := context.Background()

	require.NoError(t, d.Dispatch(ctx, 10))
	require.NoError(t, d.Dispatch(ctx, 11))
	inv := expectLaunch(t, runner, 10)
	expectLaunch(t, runner, 11)
	assert.Equal(t, 1825, inv.Seconds())

	runner.release(10, nil)
	runner.release(11, errors.New("tuner busy"))
	require.NoError(t, d.Shutdown(ctx))

	assert.True(t, programs.isFinished(10))
	assert.False(t, programs.isFinished(11))
	_, err := os.Stat(SidecarPath(inv.Path))
	assert.NoError(t, err)

	col.mu.Lock()
	defer col.mu.Unlock()
	require.Len(t, col.results, 2)
	assert.NoError(t, col.results[0].Err)
	assert.EqualError(t, col.results[1].Err, "tuner busy")
}

func TestShutdownWaitsForRecordings(t *testing.T) {
	d, runner, col, _ := newTestDispatcher(t, 2, program(1, "A"))
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, d.Dispatch(ctx, 1))
	expectLaunch(t, runner, 1)
	cancel()

	done := make(chan error, 1)
	go func() { done <- d.Shutdown(context.Background()) }()
	select {
	case <-done:
		t.Fatal("shutdown returned with a recording in flight")
	case <-time.After(50 * time.Millisecond):
	}

	runner.release(1, nil)
	require.NoError(t, <-done)
	assert.Equal(t, 1, <-col.seen)

	assert.ErrorIs(t, d.Dispatch(context.Background(), 1), ErrDispatcherClosed)
	require.NoError(t, d.Shutdown(context.Background()))
}

func TestShutdownHonoursContext(t *testing.T) {
	d, runner, _, _ := newTestDispatcher(t, 2, program(1, "A"))
	require.NoError(t, d.Dispatch(context.Background(), 1))
	expectLaunch(t, runner, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Shutdown(ctx), context.DeadlineExceeded)

	runner.release(1, nil)
	require.NoError(t, d.Shutdown(context.Background()))
}
