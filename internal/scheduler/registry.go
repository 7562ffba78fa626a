// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"slices"
	"sync"

	"github.com/ManuGH/yanagi/internal/store"
)

// Registry is the set of jobs loaded by the latest reconciliation.
// The engine replaces it wholesale; readers get copies.
type Registry struct {
	mu   sync.RWMutex
	jobs []store.Job
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Replace swaps in jobs as the new snapshot.
func (r *Registry) Replace(jobs []store.Job) {
	next := slices.Clone(jobs)
	r.mu.Lock()
	r.jobs = next
	r.mu.Unlock()
}

// Snapshot returns a copy of the current jobs in deadline order.
func (r *Registry) Snapshot() []store.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.jobs)
}

// Len returns the number of jobs in the current snapshot.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
