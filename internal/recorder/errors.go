// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import "errors"

var (
	// ErrProgramNotFound means a job fired for a pid without program metadata.
	ErrProgramNotFound = errors.New("recorder: program not found")
	// ErrCompletionQueueFull means no slot was left to track another recording.
	// Nothing was launched.
	ErrCompletionQueueFull = errors.New("recorder: completion queue full")
	// ErrDispatcherClosed is returned by Dispatch after Shutdown.
	ErrDispatcherClosed = errors.New("recorder: dispatcher closed")
)
