// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package control

import (
	"context"

	xglog "github.com/ManuGH/yanagi/internal/log"
	"github.com/ManuGH/yanagi/internal/refresh"
)

// EngineSignals steers the scheduling engine.
type EngineSignals interface {
	RequestReload() bool
	RequestShutdown() bool
	ShutdownRequested() bool
}

// Refresher runs the calendar refresh procedure.
type Refresher interface {
	Refresh(ctx context.Context) (refresh.Result, error)
}

// SystemService stops, reloads and refreshes the daemon.
type SystemService struct {
	signals   EngineSignals
	refresher Refresher
}

// NewSystemService wires the system operations.
func NewSystemService(signals EngineSignals, refresher Refresher) *SystemService {
	return &SystemService{signals: signals, refresher: refresher}
}

// Stop requests engine shutdown. Repeated calls succeed without effect.
func (s *SystemService) Stop(ctx context.Context) Ack {
	logger := xglog.WithComponentFromContext(ctx, "control")
	if s.signals.RequestShutdown() {
		logger.Info().Str(xglog.FieldEvent, "control.stop").Msg("shutdown requested")
	} else {
		logger.Debug().Str(xglog.FieldEvent, "control.stop").Msg("shutdown already requested")
	}
	return Ack{}
}

// Reload asks the engine to reconcile with the store. A pending reload
// absorbs this one.
func (s *SystemService) Reload(ctx context.Context) Ack {
	logger := xglog.WithComponentFromContext(ctx, "control")
	queued := s.signals.RequestReload()
	logger.Info().
		Str(xglog.FieldEvent, "control.reload").
		Bool("coalesced", !queued).
		Msg("reload requested")
	return Ack{}
}

// Refresh runs the refresh procedure and then reloads the engine. On
// failure the engine is left untouched. Once shutdown was requested the
// store is no longer written.
func (s *SystemService) Refresh(ctx context.Context) (RefreshResult, error) {
	if s.signals.ShutdownRequested() {
		return RefreshResult{}, ErrShuttingDown
	}
	res, err := s.refresher.Refresh(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	s.Reload(ctx)
	return RefreshResult{Programs: res.Programs, Jobs: res.Jobs, Deleted: res.Deleted}, nil
}
