// SPDX-License-Identifier: MIT

package daemon

import (
	"net"
	"net/http"

	"github.com/rs/zerolog"
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	// Logger is the structured logger for the daemon
	Logger zerolog.Logger

	// APIHandler serves the control plane
	APIHandler http.Handler

	// APIListener, when set, is served instead of binding ServerConfig.ListenAddr.
	// It carries a socket passed in by systemd.
	APIListener net.Listener

	// MetricsHandler is the HTTP handler for Prometheus metrics (if enabled)
	MetricsHandler http.Handler

	// MetricsAddr is the metrics listen address; empty disables the server
	MetricsAddr string

	// Notify reports lifecycle state to the service manager. Nil disables it.
	Notify func(state string)
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
