// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// FileConfig is the on-disk YAML representation. Durations are strings in Go
// duration format ("15s", "1m").
type FileConfig struct {
	LogLevel  string          `yaml:"logLevel,omitempty"`
	Store     StoreFile       `yaml:"store,omitempty"`
	API       APIFile         `yaml:"api,omitempty"`
	Metrics   MetricsFile     `yaml:"metrics,omitempty"`
	Server    ServerFile      `yaml:"server,omitempty"`
	Scheduler SchedulerFile   `yaml:"scheduler,omitempty"`
	Recorder  RecorderFile    `yaml:"recorder,omitempty"`
	Syoboi    SyoboiFile      `yaml:"syoboi,omitempty"`
	Refresh   RefreshFile     `yaml:"refresh,omitempty"`
	Channels  []ChannelConfig `yaml:"channels,omitempty"`
	Tracing   TracingFile     `yaml:"tracing,omitempty"`
}

type StoreFile struct {
	Driver string `yaml:"driver,omitempty"` // sqlite | postgres
	DSN    string `yaml:"dsn,omitempty"`
}

type APIFile struct {
	ListenAddr       string `yaml:"listenAddr,omitempty"`
	RefreshRateLimit *int   `yaml:"refreshRateLimit,omitempty"` // requests per minute per client
}

type MetricsFile struct {
	ListenAddr string `yaml:"listenAddr,omitempty"`
}

type ServerFile struct {
	ReadTimeout     string `yaml:"readTimeout,omitempty"`
	WriteTimeout    string `yaml:"writeTimeout,omitempty"`
	IdleTimeout     string `yaml:"idleTimeout,omitempty"`
	ShutdownTimeout string `yaml:"shutdownTimeout,omitempty"`
}

type SchedulerFile struct {
	LeadGap     string `yaml:"leadGap,omitempty"`
	ReloadGrace string `yaml:"reloadGrace,omitempty"`
}

type RecorderFile struct {
	Command       string   `yaml:"command,omitempty"`
	Args          []string `yaml:"args,omitempty"`
	OutputDir     string   `yaml:"outputDir,omitempty"`
	DriftMarkers  []string `yaml:"driftMarkers,omitempty"`
	DriftPadding  string   `yaml:"driftPadding,omitempty"`
	QueueCapacity int      `yaml:"queueCapacity,omitempty"`
}

type SyoboiFile struct {
	BaseURL           string   `yaml:"baseURL,omitempty"`
	Days              int      `yaml:"days,omitempty"`
	Timeout           string   `yaml:"timeout,omitempty"`
	RequestsPerSecond *float64 `yaml:"requestsPerSecond,omitempty"`
	UserAgent         string   `yaml:"userAgent,omitempty"`
}

type RefreshFile struct {
	Schedule string `yaml:"schedule,omitempty"` // cron expression; empty disables
	OnStart  *bool  `yaml:"onStart,omitempty"`
	TimeZone string `yaml:"timeZone,omitempty"`
}

type TracingFile struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"` // grpc | http
	Endpoint     string   `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
}

// ChannelConfig seeds the channels table on startup.
type ChannelConfig struct {
	Name        string `yaml:"name"`
	ForRecorder int    `yaml:"forRecorder"`
	ForSyoboi   int    `yaml:"forSyoboi"`
}

// AppConfig is the fully resolved runtime configuration.
type AppConfig struct {
	Version  string
	LogLevel string

	Store     StoreConfig
	API       APIConfig
	Metrics   MetricsConfig
	Server    ServerRuntimeConfig
	Scheduler SchedulerConfig
	Recorder  RecorderConfig
	Syoboi    SyoboiConfig
	Refresh   RefreshConfig
	Channels  []ChannelConfig
	Tracing   TracingConfig
}

type StoreConfig struct {
	Driver string
	DSN    string
}

type APIConfig struct {
	ListenAddr       string
	RefreshRateLimit int
}

type MetricsConfig struct {
	ListenAddr string
}

type ServerRuntimeConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type SchedulerConfig struct {
	// LeadGap is subtracted from a program's effective start to get its deadline.
	LeadGap time.Duration
	// ReloadGrace is how far into the past a reload still picks up jobs that
	// were not dispatched yet. Zero restricts reconciliation to future jobs.
	ReloadGrace time.Duration
}

type RecorderConfig struct {
	Command       string
	Args          []string // may contain {channel}, {duration} and {path}
	OutputDir     string
	DriftMarkers  []string
	DriftPadding  time.Duration
	QueueCapacity int
}

type SyoboiConfig struct {
	BaseURL           string
	Days              int
	Timeout           time.Duration
	RequestsPerSecond float64
	UserAgent         string
}

type RefreshConfig struct {
	Schedule string
	OnStart  bool
	TimeZone string
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	SamplingRate float64
	Environment  string
}
