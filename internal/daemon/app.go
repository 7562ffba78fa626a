// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/yanagi/internal/config"
	"github.com/ManuGH/yanagi/internal/refresh"
	"github.com/rs/zerolog"
)

// Engine is the scheduling loop owned by the App.
type Engine interface {
	Run(ctx context.Context) error
}

// Reloader asks the engine to reconcile again. Done is closed once the
// engine has left its loop; serving stops there, before recordings drain.
type Reloader interface {
	RequestReload() bool
	Done() <-chan struct{}
}

// Refresher runs one calendar refresh.
type Refresher interface {
	Refresh(ctx context.Context) (refresh.Result, error)
}

// AppOptions are the optional parts of an App.
type AppOptions struct {
	ConfigHolder *config.ConfigHolder
	// RefreshSchedule is a cron expression for periodic refreshes; empty
	// disables them.
	RefreshSchedule string
	RefreshLocation *time.Location
	// RefreshOnStart runs one refresh before the first scheduled one.
	RefreshOnStart bool
	Refresher      Refresher
	// ReloadSignal defaults to SIGHUP.
	ReloadSignal os.Signal
}

// App owns the long-lived runtime lifecycle (engine, watchers, reload
// wiring, schedules) and delegates server management to Manager.
type App struct {
	logger         zerolog.Logger
	manager        Manager
	engine         Engine
	signals        Reloader
	cfgHolder      *config.ConfigHolder
	scheduleSpec   string
	location       *time.Location
	refresher      Refresher
	refreshOnStart bool
	reloadSignal   os.Signal
}

// NewApp creates a new App orchestrator.
func NewApp(logger zerolog.Logger, manager Manager, engine Engine, signals Reloader, opts AppOptions) *App {
	sig := opts.ReloadSignal
	if sig == nil {
		sig = syscall.SIGHUP
	}
	return &App{
		logger:         logger,
		manager:        manager,
		engine:         engine,
		signals:        signals,
		cfgHolder:      opts.ConfigHolder,
		scheduleSpec:   opts.RefreshSchedule,
		location:       opts.RefreshLocation,
		refresher:      opts.Refresher,
		refreshOnStart: opts.RefreshOnStart,
		reloadSignal:   sig,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled, the
// engine stops or a fatal error occurs. The engine's error is the daemon's
// exit status.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.engine == nil {
		return ErrMissingEngine
	}

	var schedule *refresh.Schedule
	if a.scheduleSpec != "" && a.refresher != nil {
		var err error
		schedule, err = refresh.NewSchedule(a.scheduleSpec, a.location, a.refreshAndReload)
		if err != nil {
			return err
		}
	}

	// The engine stopping on its own (System.Stop) takes everything else down.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best-effort: startup should not fail if watcher cannot be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	if a.reloadSignal != nil {
		hupChan := make(chan os.Signal, 1)
		signal.Notify(hupChan, a.reloadSignal)
		defer signal.Stop(hupChan)
		g.Go(func() error {
			a.watchReloadSignal(ctx, hupChan)
			return nil
		})
	}

	if schedule != nil {
		g.Go(func() error { return schedule.Run(ctx) })
	}

	if a.refreshOnStart && a.refresher != nil {
		g.Go(func() error {
			a.refreshAndReload(ctx)
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		err := a.engine.Run(ctx)
		if err != nil {
			a.logger.Error().Err(err).Str("event", "engine.failed").Msg("scheduling engine stopped with error")
		} else {
			a.logger.Info().Str("event", "engine.stopped").Msg("scheduling engine stopped")
		}
		return err
	})

	serveCtx, stopServing := context.WithCancel(ctx)
	defer stopServing()
	if a.signals != nil {
		g.Go(func() error {
			select {
			case <-a.signals.Done():
				a.logger.Info().Str("event", "api.stop_accepting").Msg("shutdown requested, closing control plane")
				stopServing()
			case <-serveCtx.Done():
			}
			return nil
		})
	}

	g.Go(func() error {
		err := a.manager.Start(serveCtx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

func (a *App) watchReloadSignal(ctx context.Context, hupChan <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-hupChan:
			a.logger.Info().
				Str("event", "config.reload_signal").
				Str("signal", a.reloadSignal.String()).
				Msg("received reload signal, reloading config and jobs")

			if a.cfgHolder != nil {
				if err := a.cfgHolder.Reload(ctx); err != nil {
					a.logger.Warn().
						Err(err).
						Str("event", "config.reload_failed").
						Msg("config reload failed")
				}
			}
			if a.signals != nil {
				a.signals.RequestReload()
			}
		}
	}
}

// refreshAndReload is the body of every non-interactive refresh. Failures
// keep the previous calendar; the next run heals them.
func (a *App) refreshAndReload(ctx context.Context) {
	res, err := a.refresher.Refresh(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn().Err(err).Str("event", "refresh.failed").Msg("calendar refresh failed")
		}
		return
	}
	a.logger.Info().
		Str("event", "refresh.applied").
		Int("programs", res.Programs).
		Int("jobs", res.Jobs).
		Int("deleted", res.Deleted).
		Msg("calendar refreshed")
	if a.signals != nil {
		a.signals.RequestReload()
	}
}
