// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

const (
	DefaultListenAddr        = ":4114"
	DefaultStoreDriver       = "sqlite"
	DefaultStoreDSN          = "yanagi.db"
	DefaultLeadGap           = 15 * time.Second
	DefaultReloadGrace       = 60 * time.Second
	DefaultRecorderCommand   = "recpt1"
	DefaultOutputDir         = "/mnt/heidemarie"
	DefaultDriftPadding      = 25 * time.Second
	DefaultQueueCapacity     = 100
	DefaultSyoboiBaseURL     = "https://cal.syoboi.jp"
	DefaultSyoboiDays        = 7
	DefaultSyoboiTimeout     = 30 * time.Second
	DefaultRefreshRateLimit  = 10
	DefaultRefreshTimeZone   = "Asia/Tokyo"
	defaultSyoboiRPS         = 1.0
	defaultTracingSampleRate = 1.0
)

// DefaultRecorderArgs is the recpt1 invocation used when none is configured.
var DefaultRecorderArgs = []string{"--b25", "--strip", "{channel}", "{duration}", "{path}"}

func (l *Loader) setDefaults(cfg *AppConfig) {
	cfg.LogLevel = "info"
	cfg.Store = StoreConfig{Driver: DefaultStoreDriver, DSN: DefaultStoreDSN}
	cfg.API = APIConfig{ListenAddr: DefaultListenAddr, RefreshRateLimit: DefaultRefreshRateLimit}
	cfg.Server = defaultServerRuntimeConfig()
	cfg.Scheduler = SchedulerConfig{LeadGap: DefaultLeadGap, ReloadGrace: DefaultReloadGrace}
	cfg.Recorder = RecorderConfig{
		Command:       DefaultRecorderCommand,
		Args:          append([]string(nil), DefaultRecorderArgs...),
		OutputDir:     DefaultOutputDir,
		DriftMarkers:  []string{"NHK"},
		DriftPadding:  DefaultDriftPadding,
		QueueCapacity: DefaultQueueCapacity,
	}
	cfg.Syoboi = SyoboiConfig{
		BaseURL:           DefaultSyoboiBaseURL,
		Days:              DefaultSyoboiDays,
		Timeout:           DefaultSyoboiTimeout,
		RequestsPerSecond: defaultSyoboiRPS,
		UserAgent:         "yanagi/" + l.version,
	}
	cfg.Refresh = RefreshConfig{TimeZone: DefaultRefreshTimeZone}
	cfg.Tracing = TracingConfig{Exporter: "grpc", SamplingRate: defaultTracingSampleRate}
}
