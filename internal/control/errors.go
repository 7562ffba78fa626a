// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package control

import "errors"

var (
	// ErrTitleNotFound means the calendar has no title for the requested tid.
	ErrTitleNotFound = errors.New("title not found")
	// ErrInvalidTID rejects non-positive title ids.
	ErrInvalidTID = errors.New("invalid tid")
	// ErrShuttingDown rejects work that arrives after Stop.
	ErrShuttingDown = errors.New("daemon is shutting down")
)
