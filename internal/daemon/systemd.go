// SPDX-License-Identifier: MIT

package daemon

import (
	"fmt"
	"net"

	"github.com/coreos/go-systemd/v22/activation"
	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
)

// ActivationListener returns the first socket passed in by systemd, or nil
// when the process was not socket activated. Extra sockets are closed.
func ActivationListener() (net.Listener, error) {
	listeners, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("systemd socket activation: %w", err)
	}
	var first net.Listener
	for _, ln := range listeners {
		if ln == nil {
			continue
		}
		if first == nil {
			first = ln
			continue
		}
		_ = ln.Close()
	}
	return first, nil
}

// SystemdNotifier returns a Deps.Notify implementation backed by sd_notify.
// Outside systemd the notification is a no-op.
func SystemdNotifier(logger zerolog.Logger) func(state string) {
	return func(state string) {
		sent, err := sddaemon.SdNotify(false, state)
		if err != nil {
			logger.Warn().Err(err).Str("event", "systemd.notify_failed").Str("state", state).Msg("sd_notify failed")
			return
		}
		if sent {
			logger.Debug().Str("event", "systemd.notify").Str("state", state).Msg("notified service manager")
		}
	}
}
