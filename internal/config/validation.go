// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config provides configuration management for yanagi.
package config

import (
	"fmt"
	"time"

	"github.com/ManuGH/yanagi/internal/validate"
	"github.com/robfig/cron/v3"
)

// CronParser is the schedule dialect accepted by refresh.schedule.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("Store.Driver", cfg.Store.Driver, []string{"sqlite", "postgres"})
	v.NotEmpty("Store.DSN", cfg.Store.DSN)
	v.NotEmpty("API.ListenAddr", cfg.API.ListenAddr)
	v.Positive("API.RefreshRateLimit", cfg.API.RefreshRateLimit)

	v.DurationRange("Scheduler.LeadGap", cfg.Scheduler.LeadGap, 0, time.Hour)
	v.DurationRange("Scheduler.ReloadGrace", cfg.Scheduler.ReloadGrace, 0, 24*time.Hour)

	v.NotEmpty("Recorder.Command", cfg.Recorder.Command)
	v.NotEmpty("Recorder.OutputDir", cfg.Recorder.OutputDir)
	v.DurationRange("Recorder.DriftPadding", cfg.Recorder.DriftPadding, 0, time.Hour)
	v.Range("Recorder.QueueCapacity", cfg.Recorder.QueueCapacity, 1, 10000)

	v.URL("Syoboi.BaseURL", cfg.Syoboi.BaseURL, []string{"http", "https"})
	v.Range("Syoboi.Days", cfg.Syoboi.Days, 1, 31)
	v.PositiveFloat("Syoboi.RequestsPerSecond", cfg.Syoboi.RequestsPerSecond)

	if cfg.Refresh.Schedule != "" {
		if _, err := CronParser.Parse(cfg.Refresh.Schedule); err != nil {
			v.AddError("Refresh.Schedule", fmt.Sprintf("invalid cron expression: %v", err), cfg.Refresh.Schedule)
		}
	}
	v.TimeZone("Refresh.TimeZone", cfg.Refresh.TimeZone)

	for i, ch := range cfg.Channels {
		field := fmt.Sprintf("Channels[%d]", i)
		v.NotEmpty(field+".Name", ch.Name)
		v.Unique("channel.name", field+".Name", ch.Name)
		v.Unique("channel.forRecorder", field+".ForRecorder", ch.ForRecorder)
		v.Unique("channel.forSyoboi", field+".ForSyoboi", ch.ForSyoboi)
	}

	if cfg.Tracing.Enabled {
		v.OneOf("Tracing.Exporter", cfg.Tracing.Exporter, []string{"grpc", "http"})
		v.NotEmpty("Tracing.Endpoint", cfg.Tracing.Endpoint)
		v.Fraction("Tracing.SamplingRate", cfg.Tracing.SamplingRate)
	}

	return v.Err()
}
