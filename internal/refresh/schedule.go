// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/yanagi/internal/config"
	xglog "github.com/ManuGH/yanagi/internal/log"
	"github.com/robfig/cron/v3"
)

// Schedule runs a job on a cron expression.
type Schedule struct {
	c    *cron.Cron
	spec string

	mu  sync.Mutex
	ctx context.Context
}

// NewSchedule parses spec in loc. Overlapping runs are skipped.
func NewSchedule(spec string, loc *time.Location, job func(ctx context.Context)) (*Schedule, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	s := &Schedule{c: c, spec: spec, ctx: context.Background()}
	if _, err := c.AddFunc(spec, func() { job(s.runContext()) }); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Schedule) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running job to return. Jobs see ctx, so an in-flight refresh is cancelled
// with it.
func (s *Schedule) Run(ctx context.Context) error {
	logger := xglog.WithComponent("refresh")
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.c.Start()
	entries := s.c.Entries()
	ev := logger.Info().Str(xglog.FieldEvent, "refresh.schedule_started").Str("schedule", s.spec)
	if len(entries) > 0 {
		ev = ev.Time("next", entries[0].Next)
	}
	ev.Msg("refresh schedule started")

	<-ctx.Done()
	<-s.c.Stop().Done()
	return nil
}

// Next returns the next activation after t.
func (s *Schedule) Next(t time.Time) time.Time {
	entries := s.c.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(t)
}
