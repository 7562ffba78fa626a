// SPDX-License-Identifier: MIT

package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuGH/yanagi/internal/log"
	"github.com/go-chi/httprate"
)

const refreshWindow = time.Minute

// RefreshRateLimit allows limit calendar refreshes per client IP per minute.
// A non-positive limit disables limiting.
func RefreshRateLimit(limit int) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, refreshWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(refreshLimited),
	)
}

func refreshLimited(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Warn().
		Str(log.FieldEvent, "api.refresh_rate_limited").
		Str("remote_addr", r.RemoteAddr).
		Msg("refresh rejected by rate limit")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(int(refreshWindow.Seconds())))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":     "rate limit exceeded",
		"requestId": log.RequestIDFromContext(r.Context()),
	})
}
