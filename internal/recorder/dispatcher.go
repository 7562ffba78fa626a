// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package recorder launches recordings for due jobs and collects their
// outcomes through a bounded completion queue.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ManuGH/yanagi/internal/config"
	xglog "github.com/ManuGH/yanagi/internal/log"
	"github.com/ManuGH/yanagi/internal/metrics"
	"github.com/ManuGH/yanagi/internal/store"
	"github.com/ManuGH/yanagi/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultQueueCapacity bounds recordings submitted but not yet collected.
const DefaultQueueCapacity = 100

// ProgramSource provides program metadata and records finished jobs.
type ProgramSource interface {
	Program(ctx context.Context, pid int) (store.Program, error)
	MarkJobFinished(ctx context.Context, pid int, at time.Time) error
}

// ConfigSource returns the recorder settings in effect right now.
// *config.ConfigHolder satisfies it.
type ConfigSource interface {
	Recorder() config.RecorderConfig
}

// StaticConfig is a ConfigSource that never changes.
type StaticConfig config.RecorderConfig

func (c StaticConfig) Recorder() config.RecorderConfig { return config.RecorderConfig(c) }

// Result is the collected outcome of one recording.
type Result struct {
	PID        int
	TID        int
	Label      string
	Path       string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Options tunes a Dispatcher.
type Options struct {
	// Capacity of the completion queue. Zero means DefaultQueueCapacity.
	Capacity int
	// OnResult is called by the drain worker for every collected result, in
	// submission order.
	OnResult func(Result)
	Now      func() time.Time
}

type pending struct {
	pid   int
	tid   int
	label string
	path  string
	start time.Time
	done  chan Result
}

// Dispatcher decides and launches recordings. Dispatch is called by a single
// engine goroutine; Shutdown may be called from anywhere.
type Dispatcher struct {
	programs ProgramSource
	cfg      ConfigSource
	runner   Runner
	onResult func(Result)
	now      func() time.Time
	tracer   trace.Tracer
	logger   zerolog.Logger

	slots chan struct{}
	queue chan *pending

	mu      sync.Mutex
	closed  bool
	drained chan struct{}
	running sync.WaitGroup
	depth   atomic.Int64
}

// NewDispatcher starts the drain worker. Callers must call Shutdown.
func NewDispatcher(programs ProgramSource, cfg ConfigSource, runner Runner, opts Options) *Dispatcher {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	d := &Dispatcher{
		programs: programs,
		cfg:      cfg,
		runner:   runner,
		onResult: opts.OnResult,
		now:      now,
		tracer:   telemetry.Tracer("yanagi/recorder"),
		logger:   xglog.WithComponent("recorder"),
		slots:    make(chan struct{}, capacity),
		queue:    make(chan *pending, capacity),
		drained:  make(chan struct{}),
	}
	go d.drain()
	return d
}

// Dispatch looks up the program for pid, reserves a completion slot and
// launches the recording in the background. The recording is not bound to
// ctx's cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, pid int) error {
	ctx, span := d.tracer.Start(ctx, "recorder.dispatch")
	defer span.End()

	p, err := d.programs.Program(ctx, pid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = fmt.Errorf("pid %d: %w", pid, ErrProgramNotFound)
		} else {
			err = fmt.Errorf("load program %d: %w", pid, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "program lookup failed")
		return err
	}
	span.SetAttributes(telemetry.ProgramAttributes(p.PID, p.TID, p.ChannelName)...)

	inv := BuildInvocation(d.cfg.Recorder(), p)
	pend := &pending{
		pid:   p.PID,
		tid:   p.TID,
		label: Label(p),
		path:  inv.Path,
		start: d.now(),
		done:  make(chan Result, 1),
	}

	if err := d.submit(pend); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	d.logger.Info().
		Str(xglog.FieldEvent, "recorder.start").
		Int(xglog.FieldPID, p.PID).
		Int(xglog.FieldTID, p.TID).
		Int(xglog.FieldChannel, inv.Channel).
		Int(xglog.FieldDuration, inv.Seconds()).
		Str(xglog.FieldPath, inv.Path).
		Str("label", pend.label).
		Msg("recording started")

	d.running.Add(1)
	go d.record(context.WithoutCancel(ctx), p, inv, pend)
	return nil
}

// submit reserves a slot without blocking and enqueues pend for the drain
// worker.
func (d *Dispatcher) submit(pend *pending) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.slots <- struct{}{}:
	default:
		return fmt.Errorf("pid %d: %w (capacity %d)", pend.pid, ErrCompletionQueueFull, cap(d.slots))
	}
	d.queue <- pend
	metrics.SetCompletionQueueDepth(int(d.depth.Add(1)))
	return nil
}

func (d *Dispatcher) record(ctx context.Context, p store.Program, inv Invocation, pend *pending) {
	defer d.running.Done()

	ctx, span := d.tracer.Start(ctx, "recorder.record")
	defer span.End()
	span.SetAttributes(telemetry.ProgramAttributes(p.PID, p.TID, p.ChannelName)...)
	span.SetAttributes(telemetry.RecordingAttributes(inv.Channel, inv.Seconds(), inv.Path)...)

	metrics.IncRecordingsActive()
	err := d.runner.Run(ctx, inv)
	metrics.DecRecordingsActive()
	finished := d.now()

	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			span.SetAttributes(telemetry.RecordingExitCodeAttribute(exitErr.Code))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "recording failed")
	} else {
		d.finish(ctx, p, inv, finished)
	}

	pend.done <- Result{
		PID:        pend.pid,
		TID:        pend.tid,
		Label:      pend.label,
		Path:       pend.path,
		Err:        err,
		StartedAt:  pend.start,
		FinishedAt: finished,
	}
}

// finish persists the bookkeeping of a successful recording. Failures here
// are logged; the recording itself is on disk.
func (d *Dispatcher) finish(ctx context.Context, p store.Program, inv Invocation, at time.Time) {
	logger := d.logger.With().Int(xglog.FieldPID, p.PID).Logger()

	if err := writeSidecar(SidecarPath(inv.Path), newSidecar(p, inv, at)); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "recorder.sidecar_failed").Msg("could not write metadata sidecar")
	}
	if err := d.programs.MarkJobFinished(ctx, p.PID, at); err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "recorder.mark_failed").Msg("could not mark job finished")
	}
}

// drain collects results strictly in submission order.
func (d *Dispatcher) drain() {
	defer close(d.drained)
	for pend := range d.queue {
		res := <-pend.done
		<-d.slots
		metrics.SetCompletionQueueDepth(int(d.depth.Add(-1)))
		metrics.RecordRecording(res.Err == nil, res.FinishedAt.Sub(res.StartedAt))

		ev := d.logger.Info()
		if res.Err != nil {
			ev = d.logger.Error().Err(res.Err)
		}
		ev.Str(xglog.FieldEvent, "recorder.finished").
			Int(xglog.FieldPID, res.PID).
			Int(xglog.FieldTID, res.TID).
			Str(xglog.FieldPath, res.Path).
			Dur("took", res.FinishedAt.Sub(res.StartedAt)).
			Bool("success", res.Err == nil).
			Msg("recording collected")

		if d.onResult != nil {
			d.onResult(res)
		}
	}
}

// Pending returns the number of recordings submitted and not yet collected.
func (d *Dispatcher) Pending() int {
	return int(d.depth.Load())
}

// Shutdown stops accepting recordings and waits until every launched one has
// been collected, or ctx ends.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
		d.logger.Info().
			Str(xglog.FieldEvent, "recorder.shutdown").
			Int(xglog.FieldQueueSize, d.Pending()).
			Msg("waiting for recordings to finish")
	}
	d.mu.Unlock()

	select {
	case <-d.drained:
		d.running.Wait()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
