// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	xglog "github.com/ManuGH/yanagi/internal/log"
	"github.com/ManuGH/yanagi/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu    sync.Mutex
	jobs  []store.Job
	err   error
	calls int
	since []time.Time
}

func (s *fakeSource) set(jobs ...store.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = jobs
}

func (s *fakeSource) DueJobs(_ context.Context, since time.Time) ([]store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.since = append(s.since, since)
	if s.err != nil {
		return nil, s.err
	}
	var out []store.Job
	for _, j := range s.jobs {
		if !j.EnqueuedAt.Before(since) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeDispatcher struct {
	mu        sync.Mutex
	fired     chan int
	err       error
	shutdowns int
	ctxs      []context.Context
	// draining, when set, is closed on Shutdown which then blocks on release.
	draining chan struct{}
	release  chan struct{}
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{fired: make(chan int, 64)}
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, pid int) error {
	d.mu.Lock()
	d.ctxs = append(d.ctxs, ctx)
	err := d.err
	d.mu.Unlock()
	d.fired <- pid
	return err
}

func (d *fakeDispatcher) Shutdown(context.Context) error {
	d.mu.Lock()
	d.shutdowns++
	draining, release := d.draining, d.release
	d.mu.Unlock()
	if draining != nil {
		close(draining)
		<-release
	}
	return nil
}

func (d *fakeDispatcher) shutdownCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdowns
}

func job(pid int, at time.Time) store.Job {
	return store.Job{PID: pid, TID: 55, EnqueuedAt: at, StartTime: at.Add(15 * time.Second)}
}

type harness struct {
	clock      *fakeClock
	source     *fakeSource
	dispatcher *fakeDispatcher
	registry   *Registry
	signals    *Signals
	engine     *Engine
	done       chan error
}

func startEngine(t *testing.T, grace time.Duration, jobs ...store.Job) *harness {
	t.Helper()
	h := &harness{
		clock:      newFakeClock(t0),
		source:     &fakeSource{},
		dispatcher: newFakeDispatcher(),
		registry:   NewRegistry(),
		signals:    NewSignals(),
		done:       make(chan error, 1),
	}
	h.source.set(jobs...)
	h.engine = NewEngine(h.source, h.dispatcher, h.registry, h.signals, Options{ReloadGrace: grace, Clock: h.clock})
	return h
}

func (h *harness) run(ctx context.Context) {
	go func() { h.done <- h.engine.Run(ctx) }()
}

func (h *harness) waitCycles(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.source.callCount() >= n }, time.Second, time.Millisecond)
}

func (h *harness) expectFired(t *testing.T, pid int) {
	t.Helper()
	select {
	case got := <-h.dispatcher.fired:
		assert.Equal(t, pid, got)
	case <-time.After(time.Second):
		t.Fatalf("pid %d was not dispatched", pid)
	}
}

func (h *harness) expectQuiet(t *testing.T) {
	t.Helper()
	select {
	case got := <-h.dispatcher.fired:
		t.Fatalf("unexpected dispatch of pid %d", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func (h *harness) stop(t *testing.T) error {
	t.Helper()
	h.signals.RequestShutdown()
	select {
	case err := <-h.done:
		return err
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
		return nil
	}
}

func TestEngineDispatchesEachJobOnceInOrder(t *testing.T) {
	h := startEngine(t, time.Minute,
		job(101, t0.Add(10*time.Second)),
		job(102, t0.Add(20*time.Second)),
	)
	h.run(context.Background())
	h.waitCycles(t, 1)

	h.clock.Advance(10 * time.Second)
	h.expectFired(t, 101)
	h.expectQuiet(t)

	h.clock.Advance(10 * time.Second)
	h.expectFired(t, 102)

	h.clock.Advance(time.Hour)
	h.expectQuiet(t)

	require.NoError(t, h.stop(t))
	assert.Equal(t, 1, h.dispatcher.shutdownCount())
}

func TestEngineDispatchContextCarriesPID(t *testing.T) {
	h := startEngine(t, 0, job(7, t0))
	h.run(context.Background())
	h.expectFired(t, 7)
	require.NoError(t, h.stop(t))

	h.dispatcher.mu.Lock()
	defer h.dispatcher.mu.Unlock()
	require.Len(t, h.dispatcher.ctxs, 1)
	assert.NoError(t, h.dispatcher.ctxs[0].Err())
	pid, ok := xglog.PIDFromContext(h.dispatcher.ctxs[0])
	assert.True(t, ok)
	assert.Equal(t, 7, pid)
}

func TestEngineRegistryMatchesReconciliation(t *testing.T) {
	jobs := []store.Job{
		job(101, t0.Add(10*time.Second)),
		job(102, t0.Add(20*time.Second)),
	}
	h := startEngine(t, time.Minute, jobs...)
	h.run(context.Background())
	h.waitCycles(t, 1)
	require.Eventually(t, func() bool { return h.registry.Len() == 2 }, time.Second, time.Millisecond)
	first := h.registry.Snapshot()
	if diff := cmp.Diff(jobs, first); diff != "" {
		t.Fatalf("registry mismatch (-want +got):\n%s", diff)
	}

	h.signals.RequestReload()
	h.waitCycles(t, 2)
	require.NoError(t, h.stop(t))

	if diff := cmp.Diff(first, h.registry.Snapshot()); diff != "" {
		t.Fatalf("reconciliation not idempotent (-first +second):\n%s", diff)
	}
}

func TestEngineReloadKeepsDispatchedAndFiresRemaining(t *testing.T) {
	h := startEngine(t, time.Minute,
		job(101, t0.Add(10*time.Second)),
		job(102, t0.Add(20*time.Second)),
	)
	h.run(context.Background())
	h.waitCycles(t, 1)

	h.clock.Advance(10 * time.Second)
	h.expectFired(t, 101)

	h.signals.RequestReload()
	h.waitCycles(t, 2)
	h.expectQuiet(t)
	assert.Equal(t, 0, h.dispatcher.shutdownCount())

	h.clock.Advance(10 * time.Second)
	h.expectFired(t, 102)
	h.expectQuiet(t)

	require.NoError(t, h.stop(t))
}

func TestEngineReloadGraceWindow(t *testing.T) {
	t.Run("strict", func(t *testing.T) {
		h := startEngine(t, 0, job(101, t0.Add(-5*time.Second)))
		h.run(context.Background())
		h.waitCycles(t, 1)
		h.expectQuiet(t)
		require.NoError(t, h.stop(t))
		assert.Equal(t, t0, h.source.since[0])
	})

	t.Run("grace", func(t *testing.T) {
		h := startEngine(t, time.Minute, job(101, t0.Add(-5*time.Second)))
		h.run(context.Background())
		h.expectFired(t, 101)
		require.NoError(t, h.stop(t))
		assert.Equal(t, t0.Add(-time.Minute), h.source.since[0])
	})
}

func TestEngineRescheduledJobFiresAgain(t *testing.T) {
	h := startEngine(t, time.Minute, job(101, t0.Add(time.Second)))
	h.run(context.Background())
	h.waitCycles(t, 1)
	h.clock.Advance(time.Second)
	h.expectFired(t, 101)

	h.source.set(job(101, t0.Add(10*time.Second)))
	h.signals.RequestReload()
	h.waitCycles(t, 2)
	h.clock.Advance(9 * time.Second)
	h.expectFired(t, 101)

	require.NoError(t, h.stop(t))
}

func TestEnginePendingReloadBeforeRun(t *testing.T) {
	h := startEngine(t, 0)
	h.signals.RequestReload()
	h.run(context.Background())
	h.waitCycles(t, 2)
	require.NoError(t, h.stop(t))
}

func TestEngineStopsOnContextCancel(t *testing.T) {
	h := startEngine(t, 0, job(101, t0.Add(time.Hour)))
	ctx, cancel := context.WithCancel(context.Background())
	h.run(ctx)
	h.waitCycles(t, 1)
	cancel()

	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Equal(t, 1, h.dispatcher.shutdownCount())
}

func TestEngineShutdownBeforeRun(t *testing.T) {
	h := startEngine(t, 0, job(101, t0))
	require.True(t, h.signals.RequestShutdown())
	h.run(context.Background())
	require.NoError(t, <-h.done)
	assert.Equal(t, 0, h.source.callCount())
	assert.Equal(t, 1, h.dispatcher.shutdownCount())
}

func TestEngineDispatchErrorIsFatal(t *testing.T) {
	errBoom := errors.New("program vanished")
	h := startEngine(t, 0, job(101, t0))
	h.dispatcher.err = errBoom
	h.run(context.Background())
	h.expectFired(t, 101)

	select {
	case err := <-h.done:
		require.ErrorIs(t, err, errBoom)
	case <-time.After(time.Second):
		t.Fatal("engine did not fail")
	}
	assert.Equal(t, 1, h.dispatcher.shutdownCount())
}

func TestEngineSignalsShutdownBeforeDrain(t *testing.T) {
	h := startEngine(t, 0)
	h.source.err = errors.New("database is locked")
	h.dispatcher.draining = make(chan struct{})
	h.dispatcher.release = make(chan struct{})
	h.run(context.Background())

	select {
	case <-h.dispatcher.draining:
	case <-time.After(time.Second):
		t.Fatal("engine did not start draining")
	}
	select {
	case <-h.signals.Done():
	default:
		t.Fatal("shutdown not signalled while draining")
	}
	assert.True(t, h.signals.ShutdownRequested())

	close(h.dispatcher.release)
	require.Error(t, <-h.done)
}

func TestEngineStoreErrorIsFatal(t *testing.T) {
	errStore := errors.New("database is locked")
	h := startEngine(t, 0)
	h.source.err = errStore
	h.run(context.Background())

	select {
	case err := <-h.done:
		require.ErrorIs(t, err, errStore)
	case <-time.After(time.Second):
		t.Fatal("engine did not fail")
	}
	assert.Equal(t, 1, h.dispatcher.shutdownCount())
}

func TestTaskKindString(t *testing.T) {
	assert.Equal(t, "start_recorder", TaskStartRecorder.String())
	assert.Equal(t, "reload", TaskReload.String())
	assert.Equal(t, "shutdown", TaskShutdown.String())
}
