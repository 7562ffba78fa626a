// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/yanagi/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate or print the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(opts.configPath) == "" {
				return usageError("--config is required")
			}
			if _, err := opts.loadConfig(); err != nil {
				return &exitError{code: 1, err: fmt.Errorf("configuration error in %s: %w", opts.configPath, err)}
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", opts.configPath)
			return err
		},
	})

	var format string
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration (defaults + file + env)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			return dumpConfig(cmd.OutOrStdout(), fileConfigFromAppConfig(cfg), format)
		},
	}
	dump.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	cmd.AddCommand(dump)

	return cmd
}

func dumpConfig(w io.Writer, fileCfg config.FileConfig, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(fileCfg); err != nil {
			return fmt.Errorf("encode YAML: %w", err)
		}
		return enc.Close()
	case "json":
		return writeJSON(w, fileCfg)
	default:
		return usageError("unsupported format: %s (use yaml or json)", format)
	}
}

// fileConfigFromAppConfig renders the resolved configuration in the on-disk
// shape, with credentials in the store DSN redacted.
func fileConfigFromAppConfig(cfg config.AppConfig) config.FileConfig {
	refreshRateLimit := cfg.API.RefreshRateLimit
	rps := cfg.Syoboi.RequestsPerSecond
	onStart := cfg.Refresh.OnStart
	tracingEnabled := cfg.Tracing.Enabled
	samplingRate := cfg.Tracing.SamplingRate

	return config.FileConfig{
		LogLevel: cfg.LogLevel,
		Store: config.StoreFile{
			Driver: cfg.Store.Driver,
			DSN:    redactDSN(cfg.Store.DSN),
		},
		API: config.APIFile{
			ListenAddr:       cfg.API.ListenAddr,
			RefreshRateLimit: &refreshRateLimit,
		},
		Metrics: config.MetricsFile{ListenAddr: cfg.Metrics.ListenAddr},
		Server: config.ServerFile{
			ReadTimeout:     durationString(cfg.Server.ReadTimeout),
			WriteTimeout:    durationString(cfg.Server.WriteTimeout),
			IdleTimeout:     durationString(cfg.Server.IdleTimeout),
			ShutdownTimeout: durationString(cfg.Server.ShutdownTimeout),
		},
		Scheduler: config.SchedulerFile{
			LeadGap:     durationString(cfg.Scheduler.LeadGap),
			ReloadGrace: durationString(cfg.Scheduler.ReloadGrace),
		},
		Recorder: config.RecorderFile{
			Command:       cfg.Recorder.Command,
			Args:          cfg.Recorder.Args,
			OutputDir:     cfg.Recorder.OutputDir,
			DriftMarkers:  cfg.Recorder.DriftMarkers,
			DriftPadding:  durationString(cfg.Recorder.DriftPadding),
			QueueCapacity: cfg.Recorder.QueueCapacity,
		},
		Syoboi: config.SyoboiFile{
			BaseURL:           cfg.Syoboi.BaseURL,
			Days:              cfg.Syoboi.Days,
			Timeout:           durationString(cfg.Syoboi.Timeout),
			RequestsPerSecond: &rps,
			UserAgent:         cfg.Syoboi.UserAgent,
		},
		Refresh: config.RefreshFile{
			Schedule: cfg.Refresh.Schedule,
			OnStart:  &onStart,
			TimeZone: cfg.Refresh.TimeZone,
		},
		Channels: cfg.Channels,
		Tracing: config.TracingFile{
			Enabled:      &tracingEnabled,
			Exporter:     cfg.Tracing.Exporter,
			Endpoint:     cfg.Tracing.Endpoint,
			SamplingRate: &samplingRate,
			Environment:  cfg.Tracing.Environment,
		},
	}
}

func durationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

// redactDSN masks the password of URL-style DSNs. File paths pass through.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
