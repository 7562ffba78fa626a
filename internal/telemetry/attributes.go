// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Program attributes
	ProgramPIDKey     = "program.pid"
	ProgramTIDKey     = "program.tid"
	ProgramChannelKey = "program.channel"

	// Recording attributes
	RecordingDurationKey = "recording.duration_s"
	RecordingChannelKey  = "recording.recorder_channel"
	RecordingPathKey     = "recording.path"
	RecordingExitCodeKey = "recording.exit_code"

	// Refresh attributes
	RefreshProgramsKey = "refresh.programs"
	RefreshJobsKey     = "refresh.jobs"
	RefreshDeletedKey  = "refresh.deleted"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// ProgramAttributes identifies a program on a span.
func ProgramAttributes(pid, tid int, channel string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(ProgramPIDKey, pid),
		attribute.Int(ProgramTIDKey, tid),
	}
	if channel != "" {
		attrs = append(attrs, attribute.String(ProgramChannelKey, channel))
	}
	return attrs
}

// RecordingAttributes describes a recorder invocation.
func RecordingAttributes(recorderChannel, durationSeconds int, path string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(RecordingChannelKey, recorderChannel),
		attribute.Int(RecordingDurationKey, durationSeconds),
		attribute.String(RecordingPathKey, path),
	}
}

// RecordingExitCodeAttribute carries a recorder's non-zero exit code.
func RecordingExitCodeAttribute(code int) attribute.KeyValue {
	return attribute.Int(RecordingExitCodeKey, code)
}

// RefreshAttributes summarises a calendar refresh.
func RefreshAttributes(programs, jobs, deleted int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(RefreshProgramsKey, programs),
		attribute.Int(RefreshJobsKey, jobs),
		attribute.Int(RefreshDeletedKey, deleted),
	}
}
