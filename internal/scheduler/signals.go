// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import "sync/atomic"

// Signals carries reload and shutdown requests into the engine. It outlives
// individual cycles, so a request made while the engine is reconciling is
// seen by the next wait.
type Signals struct {
	reload   chan struct{}
	shutdown chan struct{}
	fired    atomic.Bool
}

// NewSignals returns an idle signal set.
func NewSignals() *Signals {
	return &Signals{
		reload:   make(chan struct{}, 1),
		shutdown: make(chan struct{}),
	}
}

// RequestReload asks the engine to reconcile again. It never blocks and
// reports false when a reload was already pending.
func (s *Signals) RequestReload() bool {
	select {
	case s.reload <- struct{}{}:
		return true
	default:
		return false
	}
}

// RequestShutdown asks the engine to stop. Only the first call fires;
// it reports whether this call was that one.
func (s *Signals) RequestShutdown() bool {
	if !s.fired.CompareAndSwap(false, true) {
		return false
	}
	close(s.shutdown)
	return true
}

// ShutdownRequested reports whether RequestShutdown has fired.
func (s *Signals) ShutdownRequested() bool {
	return s.fired.Load()
}

// Reload receives one value per coalesced reload request.
func (s *Signals) Reload() <-chan struct{} { return s.reload }

// Done is closed once shutdown has been requested.
func (s *Signals) Done() <-chan struct{} { return s.shutdown }
