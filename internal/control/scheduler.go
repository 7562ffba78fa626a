// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package control implements the runtime control operations exposed by the
// daemon: inspecting scheduled jobs, tracking titles and steering the engine.
package control

import (
	"context"
	"fmt"

	xglog "github.com/ManuGH/yanagi/internal/log"
	"github.com/ManuGH/yanagi/internal/store"
)

// JobSnapshot returns the jobs loaded by the latest reconciliation.
type JobSnapshot interface {
	Snapshot() []store.Job
}

// TitleLookup resolves a title id against the calendar.
type TitleLookup interface {
	TitleMedium(ctx context.Context, tid int) (title string, ok bool, err error)
}

// TitleTracker persists tracking markers.
type TitleTracker interface {
	TrackTitle(ctx context.Context, tid int, title string) error
	TrackedTitles(ctx context.Context) ([]store.TrackedTitle, error)
}

// SchedulerService answers job queries and title tracking requests.
type SchedulerService struct {
	jobs    JobSnapshot
	titles  TitleLookup
	tracker TitleTracker
}

// NewSchedulerService wires the scheduler operations.
func NewSchedulerService(jobs JobSnapshot, titles TitleLookup, tracker TitleTracker) *SchedulerService {
	return &SchedulerService{jobs: jobs, titles: titles, tracker: tracker}
}

// GetJobs returns the current registry snapshot in wire form. It never
// mutates state.
func (s *SchedulerService) GetJobs(_ context.Context) JobList {
	snap := s.jobs.Snapshot()
	out := JobList{Jobs: make([]Job, 0, len(snap))}
	for _, j := range snap {
		out.Jobs = append(out.Jobs, toWire(j))
	}
	return out
}

// TrackTid looks tid up in the calendar and, when found, marks it as
// tracked. Tracking an already tracked title succeeds.
func (s *SchedulerService) TrackTid(ctx context.Context, tid int) (TrackedTitle, error) {
	if tid <= 0 {
		return TrackedTitle{}, fmt.Errorf("%w: %d", ErrInvalidTID, tid)
	}
	ctx = xglog.ContextWithTID(ctx, tid)

	title, ok, err := s.titles.TitleMedium(ctx, tid)
	if err != nil {
		return TrackedTitle{}, fmt.Errorf("lookup title %d: %w", tid, err)
	}
	if !ok {
		return TrackedTitle{}, fmt.Errorf("tid %d: %w", tid, ErrTitleNotFound)
	}
	if err := s.tracker.TrackTitle(ctx, tid, title); err != nil {
		return TrackedTitle{}, fmt.Errorf("track title %d: %w", tid, err)
	}

	logger := xglog.WithComponentFromContext(ctx, "control")
	logger.Info().
		Str(xglog.FieldEvent, "control.track").
		Str("title", title).
		Msg("title tracked")
	return TrackedTitle{TID: tid, Title: title}, nil
}

// ListTracked returns every tracked title ordered by title id.
func (s *SchedulerService) ListTracked(ctx context.Context) (TrackedList, error) {
	rows, err := s.tracker.TrackedTitles(ctx)
	if err != nil {
		return TrackedList{}, fmt.Errorf("list tracked titles: %w", err)
	}
	out := TrackedList{Titles: make([]TrackedTitle, 0, len(rows))}
	for _, t := range rows {
		out.Titles = append(out.Titles, TrackedTitle{TID: t.TID, Title: t.Title, Since: t.CreatedAt})
	}
	return out, nil
}
