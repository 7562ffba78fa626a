// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scheduler runs the reconciliation loop that turns stored jobs
// into recorder dispatches at their deadlines.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	xglog "github.com/ManuGH/yanagi/internal/log"
	"github.com/ManuGH/yanagi/internal/metrics"
	"github.com/ManuGH/yanagi/internal/store"
	"github.com/rs/zerolog"
)

// JobSource loads unfinished jobs with a deadline at or after since,
// ordered by deadline.
type JobSource interface {
	DueJobs(ctx context.Context, since time.Time) ([]store.Job, error)
}

// Dispatcher starts recordings and collects their outcomes.
type Dispatcher interface {
	// Dispatch decides and launches the recording for pid. An error is fatal
	// to the engine.
	Dispatch(ctx context.Context, pid int) error
	// Shutdown stops accepting work and waits until every launched recording
	// has been collected.
	Shutdown(ctx context.Context) error
}

// TaskKind enumerates what a wait step produced.
type TaskKind int

const (
	TaskStartRecorder TaskKind = iota
	TaskReload
	TaskShutdown
)

func (k TaskKind) String() string {
	switch k {
	case TaskStartRecorder:
		return "start_recorder"
	case TaskReload:
		return "reload"
	case TaskShutdown:
		return "shutdown"
	}
	return "unknown"
}

// Task is one item of the engine's merged event stream.
type Task struct {
	Kind       TaskKind
	PID        int
	EnqueuedAt time.Time
}

// Options tunes the engine.
type Options struct {
	// ReloadGrace extends reconciliation into the past so that jobs whose
	// deadline passed during a reload are still dispatched once.
	ReloadGrace time.Duration
	Clock       Clock
}

// Engine is the scheduling loop. Run must be called at most once.
type Engine struct {
	source     JobSource
	dispatcher Dispatcher
	registry   *Registry
	signals    *Signals
	clock      Clock
	grace      time.Duration
	logger     zerolog.Logger

	// dispatched remembers the deadline each pid was fired for, so a reload
	// inside the grace window does not fire it again.
	dispatched map[int]time.Time
	cycle      int
}

// NewEngine wires an engine. registry and signals are shared with the
// control plane.
func NewEngine(source JobSource, dispatcher Dispatcher, registry *Registry, signals *Signals, opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	grace := opts.ReloadGrace
	if grace < 0 {
		grace = 0
	}
	return &Engine{
		source:     source,
		dispatcher: dispatcher,
		registry:   registry,
		signals:    signals,
		clock:      clock,
		grace:      grace,
		logger:     xglog.WithComponent("scheduler"),
		dispatched: make(map[int]time.Time),
	}
}

// Run reconciles and waits until shutdown is requested, ctx is cancelled or
// a fatal error occurs. It always drains the dispatcher before returning.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info().
		Str("event", "engine.start").
		Dur("reload_grace", e.grace).
		Msg("scheduling engine started")

	runErr := e.loop(ctx)
	if runErr != nil {
		e.logger.Error().Err(runErr).Str("event", "engine.fatal").Msg("scheduling engine failed")
	}
	// Whatever ended the loop, the control plane stops accepting work now.
	e.signals.RequestShutdown()

	e.logger.Info().Str("event", "engine.drain").Msg("waiting for in-flight recordings")
	drainErr := e.dispatcher.Shutdown(context.WithoutCancel(ctx))
	if drainErr != nil {
		drainErr = fmt.Errorf("drain recorder: %w", drainErr)
	}

	e.logger.Info().Str("event", "engine.stopped").Msg("scheduling engine stopped")
	return errors.Join(runErr, drainErr)
}

func (e *Engine) loop(ctx context.Context) error {
	for {
		if e.stopping(ctx) {
			return nil
		}

		queue, err := e.reconcile(ctx)
		if err != nil {
			if e.stopping(ctx) {
				return nil
			}
			return fmt.Errorf("reconcile: %w", err)
		}

		reload, err := e.wait(ctx, queue)
		queue.Stop()
		if err != nil || !reload {
			return err
		}
	}
}

func (e *Engine) stopping(ctx context.Context) bool {
	return ctx.Err() != nil || e.signals.ShutdownRequested()
}

// reconcile loads due jobs into a fresh deadline queue and publishes them.
func (e *Engine) reconcile(ctx context.Context) (*DeadlineQueue, error) {
	e.cycle++
	metrics.IncEngineCycle()

	now := e.clock.Now()
	since := now.Add(-e.grace)
	jobs, err := e.source.DueJobs(ctx, since)
	if err != nil {
		return nil, err
	}

	for pid, at := range e.dispatched {
		if at.Before(since) {
			delete(e.dispatched, pid)
		}
	}

	queue := NewDeadlineQueue(e.clock)
	skipped := 0
	for _, j := range jobs {
		if at, ok := e.dispatched[j.PID]; ok && at.Equal(j.EnqueuedAt) {
			skipped++
			continue
		}
		queue.Insert(j.PID, j.EnqueuedAt)
	}
	e.registry.Replace(jobs)

	metrics.SetRegistryJobs(e.registry.Len())
	metrics.SetPendingJobs(queue.Len())
	e.logger.Info().
		Str("event", "engine.reconciled").
		Int(xglog.FieldCycle, e.cycle).
		Int(xglog.FieldJobs, len(jobs)).
		Int("pending", queue.Len()).
		Int("already_dispatched", skipped).
		Msg("jobs reconciled")
	return queue, nil
}

// wait consumes the merged event stream until a reload or shutdown. It
// reports whether a new cycle should start.
func (e *Engine) wait(ctx context.Context, queue *DeadlineQueue) (bool, error) {
	for {
		for _, task := range e.next(ctx, queue) {
			switch task.Kind {
			case TaskShutdown:
				metrics.IncEngineSignal("shutdown")
				e.logger.Info().Str("event", "engine.shutdown").Msg("shutdown requested")
				return false, nil
			case TaskReload:
				metrics.IncEngineSignal("reload")
				e.logger.Info().
					Str("event", "engine.reload").
					Int("discarded", queue.Len()).
					Msg("reload requested")
				return true, nil
			case TaskStartRecorder:
				if err := e.startRecorder(ctx, task); err != nil {
					return false, err
				}
				metrics.SetPendingJobs(queue.Len())
			}
		}
	}
}

func (e *Engine) next(ctx context.Context, queue *DeadlineQueue) []Task {
	select {
	case <-ctx.Done():
		return []Task{{Kind: TaskShutdown}}
	case <-e.signals.Done():
		return []Task{{Kind: TaskShutdown}}
	case <-e.signals.Reload():
		return []Task{{Kind: TaskReload}}
	case <-queue.C():
		expired := queue.PopExpired(e.clock.Now())
		tasks := make([]Task, 0, len(expired))
		for _, d := range expired {
			tasks = append(tasks, Task{Kind: TaskStartRecorder, PID: d.PID, EnqueuedAt: d.At})
		}
		return tasks
	}
}

func (e *Engine) startRecorder(ctx context.Context, task Task) error {
	e.dispatched[task.PID] = task.EnqueuedAt
	lateness := e.clock.Now().Sub(task.EnqueuedAt)
	metrics.ObserveLateness(lateness)

	e.logger.Info().
		Str("event", "engine.dispatch").
		Int(xglog.FieldPID, task.PID).
		Time(xglog.FieldEnqueuedAt, task.EnqueuedAt).
		Dur("lateness", lateness).
		Msg("deadline reached, starting recorder")

	if err := e.dispatcher.Dispatch(xglog.ContextWithPID(ctx, task.PID), task.PID); err != nil {
		metrics.IncDispatch("failed")
		return fmt.Errorf("dispatch pid %d: %w", task.PID, err)
	}
	metrics.IncDispatch("launched")
	return nil
}
