// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package syoboi

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrUpstreamUnavailable = errors.New("upstream: host unreachable or transport failure")
	ErrUpstreamError       = errors.New("upstream: server error (5xx)")
	ErrUpstreamRejected    = errors.New("upstream: request rejected (4xx)")
	ErrBadResponse         = errors.New("upstream: invalid response format or malformed data")
)

// UpstreamError wraps a sentinel with the failing operation and HTTP status.
type UpstreamError struct {
	Sentinel  error
	Operation string
	Status    int
	Err       error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("syoboi: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}
