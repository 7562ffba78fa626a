// SPDX-License-Identifier: MIT

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yanagi_calendar_requests_total",
		Help: "Calendar API requests by endpoint and HTTP status (0 = transport error)",
	}, []string{"endpoint", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yanagi_calendar_request_duration_seconds",
		Help:    "Calendar API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	upstreamRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yanagi_calendar_retries_total",
		Help: "Calendar API request retries",
	}, []string{"endpoint"})
)

// RecordUpstreamAttempt records a single calendar API attempt.
func RecordUpstreamAttempt(endpoint string, status int, took time.Duration, retry bool) {
	upstreamRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	upstreamRequestDuration.WithLabelValues(endpoint).Observe(took.Seconds())
	if retry {
		upstreamRetriesTotal.WithLabelValues(endpoint).Inc()
	}
}
