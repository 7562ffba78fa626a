// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package refresh reconciles the job store with the broadcast calendar.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	xglog "github.com/ManuGH/yanagi/internal/log"
	"github.com/ManuGH/yanagi/internal/metrics"
	"github.com/ManuGH/yanagi/internal/store"
	"github.com/ManuGH/yanagi/internal/syoboi"
	"github.com/ManuGH/yanagi/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// DefaultLeadGap is how long before air time a job fires.
const DefaultLeadGap = 15 * time.Second

// Store is the persistence surface used by a refresh.
type Store interface {
	ChannelIDsBySyoboi(ctx context.Context) (map[int]int, error)
	TrackedTIDs(ctx context.Context) (map[int]struct{}, error)
	JobPIDs(ctx context.Context) (map[int]struct{}, error)
	ApplyCalendar(ctx context.Context, batch store.CalendarBatch) error
	DeleteJob(ctx context.Context, pid int) error
}

// Calendar fetches the upcoming program list.
type Calendar interface {
	CalChk(ctx context.Context) ([]syoboi.ProgItem, error)
}

// Result summarises one refresh.
type Result struct {
	Programs int `json:"programs"`
	Jobs     int `json:"jobs"`
	Deleted  int `json:"deleted"`
}

// Status is the outcome of the most recent refresh.
type Status struct {
	At     time.Time
	Took   time.Duration
	Result Result
	Err    error
}

// Refresher runs the refresh procedure. Concurrent calls share one run.
type Refresher struct {
	store    Store
	calendar Calendar
	leadGap  time.Duration
	now      func() time.Time
	tracer   trace.Tracer
	logger   zerolog.Logger
	group    singleflight.Group

	mu          sync.RWMutex
	last        Status
	lastSuccess time.Time
}

// New returns a Refresher. A non-positive leadGap means DefaultLeadGap.
func New(s Store, cal Calendar, leadGap time.Duration) *Refresher {
	if leadGap <= 0 {
		leadGap = DefaultLeadGap
	}
	return &Refresher{
		store:    s,
		calendar: cal,
		leadGap:  leadGap,
		now:      time.Now,
		tracer:   telemetry.Tracer("yanagi/refresh"),
		logger:   xglog.WithComponent("refresh"),
	}
}

// Refresh fetches the calendar and applies it to the store. Callers that
// arrive while a refresh is running receive its result.
func (r *Refresher) Refresh(ctx context.Context) (Result, error) {
	v, err, shared := r.group.Do("refresh", func() (any, error) {
		return r.run(ctx)
	})
	if shared {
		r.logger.Debug().Str(xglog.FieldEvent, "refresh.coalesced").Msg("joined running refresh")
	}
	res, _ := v.(Result)
	return res, err
}

// Last returns the status of the most recent refresh.
func (r *Refresher) Last() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// LastSuccess returns when the last successful refresh finished.
func (r *Refresher) LastSuccess() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSuccess
}

func (r *Refresher) run(ctx context.Context) (res Result, err error) {
	ctx, span := r.tracer.Start(ctx, "refresh.run")
	defer span.End()
	logger := xglog.WithContext(ctx, r.logger)

	started := r.now()
	defer func() {
		took := r.now().Sub(started)
		metrics.RecordRefresh(err, res.Programs, res.Jobs, res.Deleted, took, r.now())
		span.SetAttributes(telemetry.RefreshAttributes(res.Programs, res.Jobs, res.Deleted)...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "refresh failed")
		}

		r.mu.Lock()
		r.last = Status{At: started, Took: took, Result: res, Err: err}
		if err == nil {
			r.lastSuccess = r.now()
		}
		r.mu.Unlock()
	}()

	channels, err := r.store.ChannelIDsBySyoboi(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load channels: %w", err)
	}
	tracked, err := r.store.TrackedTIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load tracked titles: %w", err)
	}
	vanished, err := r.store.JobPIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load job pids: %w", err)
	}

	items, err := r.calendar.CalChk(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch calendar: %w", err)
	}

	batch := r.plan(items, channels, tracked, vanished)
	if err := r.store.ApplyCalendar(ctx, batch); err != nil {
		return Result{}, fmt.Errorf("apply calendar: %w", err)
	}
	res = Result{Programs: len(batch.Programs), Jobs: len(batch.Jobs)}

	// Jobs whose program left the calendar. Programs are kept.
	for pid := range vanished {
		if err := r.store.DeleteJob(ctx, pid); err != nil {
			return res, fmt.Errorf("delete job %d: %w", pid, err)
		}
		res.Deleted++
		logger.Info().
			Str(xglog.FieldEvent, "refresh.job_deleted").
			Int(xglog.FieldPID, pid).
			Msg("program has gone away, job deleted")
	}

	logger.Info().
		Str(xglog.FieldEvent, "refresh.done").
		Int("items", len(items)).
		Int("programs", res.Programs).
		Int(xglog.FieldJobs, res.Jobs).
		Int("deleted", res.Deleted).
		Dur("took", r.now().Sub(started)).
		Msg("calendar refreshed")
	return res, nil
}

// plan builds the write batch and removes every fetched pid from vanished.
func (r *Refresher) plan(items []syoboi.ProgItem, channels map[int]int, tracked, vanished map[int]struct{}) store.CalendarBatch {
	var batch store.CalendarBatch
	for _, it := range items {
		delete(vanished, it.PID)

		channelID, ok := channels[it.ChannelID]
		if !ok {
			continue
		}
		batch.Programs = append(batch.Programs, store.ProgramRecord{
			PID:         it.PID,
			TID:         it.TID,
			StartTime:   it.StartTime,
			EndTime:     it.EndTime,
			ChannelID:   channelID,
			Count:       it.Count,
			StartOffset: int(it.StartOffset),
			Subtitle:    it.SubTitle,
			Title:       it.Title,
			Comment:     it.ProgComment,
		})
		if _, ok := tracked[it.TID]; ok {
			batch.Jobs = append(batch.Jobs, store.JobRecord{
				PID:        it.PID,
				EnqueuedAt: EnqueuedAt(it.StartTime, it.StartOffset, r.leadGap),
			})
		}
	}
	return batch
}

// EnqueuedAt is the deadline of a job: air time plus offset minus lead gap.
func EnqueuedAt(start time.Time, offsetSeconds int64, leadGap time.Duration) time.Time {
	return start.Add(time.Duration(offsetSeconds)*time.Second - leadGap)
}
