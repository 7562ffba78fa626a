// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// Path returns the config file the loader reads, if any.
func (l *Loader) Path() string {
	return l.configPath
}

// Load loads configuration with precedence: ENV > File > Defaults
// It enforces Strict Validated Order: Parse File (Strict) -> Apply Env -> Validate
func (l *Loader) Load() (AppConfig, error) {
	cfg := AppConfig{}

	// 1. Set defaults
	l.setDefaults(&cfg)

	// 2. Load from file (if provided)
	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, fmt.Errorf("merge file config: %w", err)
		}
	}

	// 3. Override with environment variables (highest priority)
	mergeEnvConfig(&cfg)

	cfg.Version = l.version

	// 4. Validate final configuration
	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	var errs []error
	dur := func(field, raw string, target *time.Duration) {
		if raw == "" {
			return
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			return
		}
		*target = d
	}

	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}

	if src.Store.Driver != "" {
		dst.Store.Driver = src.Store.Driver
	}
	if src.Store.DSN != "" {
		dst.Store.DSN = os.ExpandEnv(src.Store.DSN)
	}

	if src.API.ListenAddr != "" {
		dst.API.ListenAddr = src.API.ListenAddr
	}
	if src.API.RefreshRateLimit != nil {
		dst.API.RefreshRateLimit = *src.API.RefreshRateLimit
	}
	if src.Metrics.ListenAddr != "" {
		dst.Metrics.ListenAddr = src.Metrics.ListenAddr
	}

	dur("server.readTimeout", src.Server.ReadTimeout, &dst.Server.ReadTimeout)
	dur("server.writeTimeout", src.Server.WriteTimeout, &dst.Server.WriteTimeout)
	dur("server.idleTimeout", src.Server.IdleTimeout, &dst.Server.IdleTimeout)
	dur("server.shutdownTimeout", src.Server.ShutdownTimeout, &dst.Server.ShutdownTimeout)

	dur("scheduler.leadGap", src.Scheduler.LeadGap, &dst.Scheduler.LeadGap)
	dur("scheduler.reloadGrace", src.Scheduler.ReloadGrace, &dst.Scheduler.ReloadGrace)

	if src.Recorder.Command != "" {
		dst.Recorder.Command = src.Recorder.Command
	}
	if len(src.Recorder.Args) > 0 {
		dst.Recorder.Args = append([]string(nil), src.Recorder.Args...)
	}
	if src.Recorder.OutputDir != "" {
		dst.Recorder.OutputDir = os.ExpandEnv(src.Recorder.OutputDir)
	}
	if src.Recorder.DriftMarkers != nil {
		dst.Recorder.DriftMarkers = append([]string(nil), src.Recorder.DriftMarkers...)
	}
	dur("recorder.driftPadding", src.Recorder.DriftPadding, &dst.Recorder.DriftPadding)
	if src.Recorder.QueueCapacity != 0 {
		dst.Recorder.QueueCapacity = src.Recorder.QueueCapacity
	}

	if src.Syoboi.BaseURL != "" {
		dst.Syoboi.BaseURL = strings.TrimRight(src.Syoboi.BaseURL, "/")
	}
	if src.Syoboi.Days != 0 {
		dst.Syoboi.Days = src.Syoboi.Days
	}
	dur("syoboi.timeout", src.Syoboi.Timeout, &dst.Syoboi.Timeout)
	if src.Syoboi.RequestsPerSecond != nil {
		dst.Syoboi.RequestsPerSecond = *src.Syoboi.RequestsPerSecond
	}
	if src.Syoboi.UserAgent != "" {
		dst.Syoboi.UserAgent = src.Syoboi.UserAgent
	}

	if src.Refresh.Schedule != "" {
		dst.Refresh.Schedule = src.Refresh.Schedule
	}
	if src.Refresh.OnStart != nil {
		dst.Refresh.OnStart = *src.Refresh.OnStart
	}
	if src.Refresh.TimeZone != "" {
		dst.Refresh.TimeZone = src.Refresh.TimeZone
	}

	if len(src.Channels) > 0 {
		dst.Channels = append([]ChannelConfig(nil), src.Channels...)
	}

	if src.Tracing.Enabled != nil {
		dst.Tracing.Enabled = *src.Tracing.Enabled
	}
	if src.Tracing.Exporter != "" {
		dst.Tracing.Exporter = src.Tracing.Exporter
	}
	if src.Tracing.Endpoint != "" {
		dst.Tracing.Endpoint = src.Tracing.Endpoint
	}
	if src.Tracing.SamplingRate != nil {
		dst.Tracing.SamplingRate = *src.Tracing.SamplingRate
	}
	if src.Tracing.Environment != "" {
		dst.Tracing.Environment = src.Tracing.Environment
	}

	return errors.Join(errs...)
}

func mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = ParseString("YANAGI_LOG_LEVEL", cfg.LogLevel)

	cfg.Store.Driver = ParseString("YANAGI_STORE_DRIVER", cfg.Store.Driver)
	cfg.Store.DSN = ParseString("YANAGI_DATABASE_URL", cfg.Store.DSN)

	cfg.API.ListenAddr = ParseString("YANAGI_LISTEN", cfg.API.ListenAddr)
	cfg.API.RefreshRateLimit = ParseInt("YANAGI_REFRESH_RATE_LIMIT", cfg.API.RefreshRateLimit)
	cfg.Metrics.ListenAddr = ParseString("YANAGI_METRICS_LISTEN", cfg.Metrics.ListenAddr)

	cfg.Server.ReadTimeout = ParseDuration("YANAGI_SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = ParseDuration("YANAGI_SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = ParseDuration("YANAGI_SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = ParseDuration("YANAGI_SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Scheduler.LeadGap = ParseDuration("YANAGI_LEAD_GAP", cfg.Scheduler.LeadGap)
	cfg.Scheduler.ReloadGrace = ParseDuration("YANAGI_RELOAD_GRACE", cfg.Scheduler.ReloadGrace)

	cfg.Recorder.Command = ParseString("YANAGI_RECORDER_COMMAND", cfg.Recorder.Command)
	cfg.Recorder.OutputDir = ParseString("YANAGI_RECORDER_OUTPUT_DIR", cfg.Recorder.OutputDir)
	cfg.Recorder.DriftMarkers = ParseList("YANAGI_RECORDER_DRIFT_MARKERS", cfg.Recorder.DriftMarkers)
	cfg.Recorder.DriftPadding = ParseDuration("YANAGI_RECORDER_DRIFT_PADDING", cfg.Recorder.DriftPadding)

	cfg.Syoboi.BaseURL = strings.TrimRight(ParseString("YANAGI_SYOBOI_BASE_URL", cfg.Syoboi.BaseURL), "/")
	cfg.Syoboi.Days = ParseInt("YANAGI_SYOBOI_DAYS", cfg.Syoboi.Days)
	cfg.Syoboi.Timeout = ParseDuration("YANAGI_SYOBOI_TIMEOUT", cfg.Syoboi.Timeout)

	cfg.Refresh.Schedule = ParseString("YANAGI_REFRESH_SCHEDULE", cfg.Refresh.Schedule)
	cfg.Refresh.OnStart = ParseBool("YANAGI_REFRESH_ON_START", cfg.Refresh.OnStart)

	cfg.Tracing.Enabled = ParseBool("YANAGI_TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = ParseString("YANAGI_TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.Endpoint = ParseString("YANAGI_TRACING_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Tracing.SamplingRate = ParseFloat("YANAGI_TRACING_SAMPLING_RATE", cfg.Tracing.SamplingRate)
}
