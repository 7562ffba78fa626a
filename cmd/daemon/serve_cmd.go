// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/yanagi/internal/config"
	"github.com/ManuGH/yanagi/internal/daemon"
	"github.com/ManuGH/yanagi/internal/health"
	xglog "github.com/ManuGH/yanagi/internal/log"
	"github.com/ManuGH/yanagi/internal/version"
	"github.com/spf13/cobra"
)

const closeTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduling daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, strings.TrimSpace(opts.configPath))
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	// Safe defaults until the configuration is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: daemon.ServiceName,
		Version: version.Version,
	})
	logger := xglog.WithComponent("daemon")

	loader := config.NewLoader(configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", configPath).
			Msg("failed to load configuration")
		return fmt.Errorf("load config: %w", err)
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Service: daemon.ServiceName,
		Version: version.Version,
	})
	logger = xglog.WithComponent("daemon")

	if configPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", configPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	if err := health.PerformStartupChecks(cfg); err != nil {
		logger.Error().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("Startup checks failed. Please verify configuration and permissions.")
		return err
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", config.ServerConfigFor(cfg).ListenAddr).
		Msg("starting yanagi")
	logger.Info().Msgf("→ Store: %s (%s)", cfg.Store.Driver, maskURL(cfg.Store.DSN))
	logger.Info().Msgf("→ Calendar: %s (%d days)", maskURL(cfg.Syoboi.BaseURL), cfg.Syoboi.Days)
	logger.Info().Msgf("→ Recorder: %s → %s", cfg.Recorder.Command, cfg.Recorder.OutputDir)
	if cfg.Refresh.Schedule != "" {
		logger.Info().Msgf("→ Refresh: %q (%s)", cfg.Refresh.Schedule, cfg.Refresh.TimeZone)
	} else {
		logger.Warn().Msg("→ Refresh: no schedule configured; trigger with `yanagi refresh`")
	}

	rt, err := daemon.Bootstrap(ctx, config.NewConfigHolder(cfg, loader))
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	app, err := rt.App(logger)
	if err != nil {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		return errors.Join(err, rt.Close(closeCtx))
	}

	runErr := app.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := errors.Join(runErr, rt.Close(closeCtx)); err != nil {
		logger.Error().Err(err).Str("event", "daemon.failed").Msg("daemon stopped with error")
		return err
	}

	logger.Info().Msg("server exiting")
	return nil
}
