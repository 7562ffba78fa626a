// SPDX-License-Identifier: MIT

// Package daemon wires yanagi's components together and owns their lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/yanagi/internal/api"
	"github.com/ManuGH/yanagi/internal/config"
	"github.com/ManuGH/yanagi/internal/control"
	"github.com/ManuGH/yanagi/internal/health"
	"github.com/ManuGH/yanagi/internal/recorder"
	"github.com/ManuGH/yanagi/internal/refresh"
	"github.com/ManuGH/yanagi/internal/scheduler"
	"github.com/ManuGH/yanagi/internal/store"
	"github.com/ManuGH/yanagi/internal/syoboi"
	"github.com/ManuGH/yanagi/internal/telemetry"
)

// ServiceName identifies the daemon in traces and logs.
const ServiceName = "yanagi"

// A scheduled refresh older than this turns the readiness probe degraded.
const refreshMaxAge = 26 * time.Hour

// Runtime is the fully wired daemon before it starts running.
type Runtime struct {
	Config     *config.ConfigHolder
	Store      *store.Store
	Calendar   *syoboi.Client
	Signals    *scheduler.Signals
	Registry   *scheduler.Registry
	Engine     *scheduler.Engine
	Dispatcher *recorder.Dispatcher
	Refresher  *refresh.Refresher
	Health     *health.Manager
	API        *api.Server
	Telemetry  *telemetry.Provider
}

// Bootstrap opens the store and builds every component from the current
// configuration. The caller owns the returned Runtime and must Close it.
func Bootstrap(ctx context.Context, holder *config.ConfigHolder) (*Runtime, error) {
	cfg := holder.Get()

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Tracing.Environment,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open store: %w", err), tp.Shutdown(ctx))
	}
	if _, err := SeedChannels(ctx, st, cfg.Channels); err != nil {
		return nil, errors.Join(err, st.Close(), tp.Shutdown(ctx))
	}

	cal := syoboi.NewClient(cfg.Syoboi.BaseURL, syoboi.Options{
		Days:              cfg.Syoboi.Days,
		Timeout:           cfg.Syoboi.Timeout,
		RequestsPerSecond: cfg.Syoboi.RequestsPerSecond,
		UserAgent:         cfg.Syoboi.UserAgent,
	})

	signals := scheduler.NewSignals()
	registry := scheduler.NewRegistry()
	refresher := refresh.New(st, cal, cfg.Scheduler.LeadGap)
	dispatcher := recorder.NewDispatcher(st, holder, recorder.NewExecRunner(), recorder.Options{
		Capacity: cfg.Recorder.QueueCapacity,
	})
	engine := scheduler.NewEngine(st, dispatcher, registry, signals, scheduler.Options{
		ReloadGrace: cfg.Scheduler.ReloadGrace,
	})

	maxAge := time.Duration(0)
	if cfg.Refresh.Schedule != "" {
		maxAge = refreshMaxAge
	}
	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewPingChecker("store", st.Ping))
	hm.RegisterChecker(health.NewDirChecker("output_dir", cfg.Recorder.OutputDir))
	hm.RegisterChecker(health.NewRefreshChecker(refresher.LastSuccess, func() error { return refresher.Last().Err }, maxAge))
	hm.RegisterChecker(health.NewEngineChecker(signals.ShutdownRequested))

	srv := api.New(
		control.NewSchedulerService(registry, cal, st),
		control.NewSystemService(signals, refresher),
		hm,
		api.Options{
			RefreshRateLimit: cfg.API.RefreshRateLimit,
			EnableMetrics:    true,
			TracingService:   ServiceName,
		},
	)

	return &Runtime{
		Config:     holder,
		Store:      st,
		Calendar:   cal,
		Signals:    signals,
		Registry:   registry,
		Engine:     engine,
		Dispatcher: dispatcher,
		Refresher:  refresher,
		Health:     hm,
		API:        srv,
		Telemetry:  tp,
	}, nil
}

// App builds the lifecycle owner for rt. A socket passed in by systemd
// replaces the configured API listen address.
func (rt *Runtime) App(logger zerolog.Logger) (*App, error) {
	cfg := rt.Config.Get()

	ln, err := ActivationListener()
	if err != nil {
		return nil, err
	}

	mgr, err := NewManager(config.ServerConfigFor(cfg), Deps{
		Logger:         logger,
		APIHandler:     rt.API.Handler(),
		APIListener:    ln,
		MetricsHandler: promhttp.Handler(),
		MetricsAddr:    cfg.Metrics.ListenAddr,
		Notify:         SystemdNotifier(logger),
	})
	if err != nil {
		return nil, err
	}
	mgr.RegisterShutdownHook("recordings", drainNotice(logger, rt.Dispatcher.Pending))

	var loc *time.Location
	if cfg.Refresh.TimeZone != "" {
		loc, err = time.LoadLocation(cfg.Refresh.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("refresh time zone: %w", err)
		}
	}

	return NewApp(logger, mgr, rt.Engine, rt.Signals, AppOptions{
		ConfigHolder:    rt.Config,
		RefreshSchedule: cfg.Refresh.Schedule,
		RefreshLocation: loc,
		RefreshOnStart:  cfg.Refresh.OnStart,
		Refresher:       rt.Refresher,
	}), nil
}

// drainNotice reports recordings still in flight once the control plane has
// closed. The manager shuts down as soon as the engine leaves its loop, so
// this runs while the dispatcher drains.
func drainNotice(logger zerolog.Logger, pending func() int) ShutdownHook {
	return func(context.Context) error {
		if n := pending(); n > 0 {
			logger.Info().Str("event", "recorder.drain_wait").Int("pending", n).Msg("waiting for in-flight recordings")
		}
		return nil
	}
}

// Close releases the store and flushes traces. Call it after the App has
// returned so draining recordings can still mark their jobs finished.
func (rt *Runtime) Close(ctx context.Context) error {
	return errors.Join(rt.Store.Close(), rt.Telemetry.Shutdown(ctx))
}

// SeedChannels upserts the configured channel mapping and returns how many
// entries were written.
func SeedChannels(ctx context.Context, st *store.Store, channels []config.ChannelConfig) (int, error) {
	for i, ch := range channels {
		if _, err := st.UpsertChannel(ctx, store.Channel{
			Name:        ch.Name,
			ForRecorder: ch.ForRecorder,
			ForSyoboi:   ch.ForSyoboi,
		}); err != nil {
			return i, fmt.Errorf("seed channel %q: %w", ch.Name, err)
		}
	}
	return len(channels), nil
}
