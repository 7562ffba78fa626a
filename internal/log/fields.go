// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldPID       = "pid"
	FieldTID       = "tid"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldCycle     = "cycle"

	// Scheduling fields
	FieldEnqueuedAt = "enqueued_at"
	FieldWait       = "wait"
	FieldJobs       = "jobs"

	// Recording fields
	FieldChannel   = "channel"
	FieldDuration  = "duration_s"
	FieldPath      = "path"
	FieldExitCode  = "exit_code"
	FieldQueueSize = "queue_size"

	// Upstream fields
	FieldBaseURL = "base_url"
	FieldStatus  = "status"
)
