// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus collectors exported by yanagi.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduling engine
	engineCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yanagi_engine_cycles_total",
		Help: "Number of reconciliation cycles started",
	})

	enginePendingJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yanagi_engine_pending_jobs",
		Help: "Jobs waiting for their deadline in the current cycle",
	})

	engineRegistryJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yanagi_engine_registry_jobs",
		Help: "Jobs in the registry snapshot (last reconciliation)",
	})

	engineSignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yanagi_engine_signals_total",
		Help: "Control signals observed by the engine",
	}, []string{"signal"}) // signal=reload|shutdown

	dispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yanagi_dispatch_total",
		Help: "Recorder dispatch decisions by outcome",
	}, []string{"outcome"}) // outcome=launched|skipped|failed

	dispatchLateness = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "yanagi_dispatch_lateness_seconds",
		Help:    "Delay between a job's deadline and its dispatch",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	})

	// Recorder
	completionQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yanagi_completion_queue_depth",
		Help: "Recordings submitted and not yet collected by the drain worker",
	})

	recordingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yanagi_recordings_total",
		Help: "Finished recordings by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	recordingsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yanagi_recordings_active",
		Help: "Recorder processes currently running",
	})

	recordingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "yanagi_recording_duration_seconds",
		Help:    "Wall clock time of recorder invocations",
		Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400},
	})

	procTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yanagi_proc_terminate_total",
		Help: "Signals sent to recorder process groups",
	}, []string{"signal", "result"})

	procWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yanagi_proc_wait_total",
		Help: "Recorder process exits after termination",
	}, []string{"result"})

	// Calendar refresh
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yanagi_refresh_total",
		Help: "Calendar refreshes by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	refreshItems = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "yanagi_refresh_items",
		Help: "Items written by the last successful refresh",
	}, []string{"kind"}) // kind=programs|jobs|deleted

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "yanagi_refresh_duration_seconds",
		Help:    "Time spent in a calendar refresh",
		Buckets: prometheus.DefBuckets,
	})

	refreshLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yanagi_refresh_last_success_timestamp_seconds",
		Help: "Unix time of the last successful refresh",
	})
)

func IncEngineCycle()                 { engineCyclesTotal.Inc() }
func SetPendingJobs(n int)            { enginePendingJobs.Set(float64(n)) }
func SetRegistryJobs(n int)           { engineRegistryJobs.Set(float64(n)) }
func IncEngineSignal(signal string)   { engineSignalsTotal.WithLabelValues(signal).Inc() }
func IncDispatch(outcome string)      { dispatchTotal.WithLabelValues(outcome).Inc() }
func ObserveLateness(d time.Duration) { dispatchLateness.Observe(d.Seconds()) }

func SetCompletionQueueDepth(n int) { completionQueueDepth.Set(float64(n)) }
func IncRecordingsActive()          { recordingsActive.Inc() }
func DecRecordingsActive()          { recordingsActive.Dec() }

func IncProcTerminate(signal, result string) {
	procTerminateTotal.WithLabelValues(signal, result).Inc()
}
func IncProcWait(result string) { procWaitTotal.WithLabelValues(result).Inc() }

// RecordRecording records the outcome of one recorder invocation.
func RecordRecording(success bool, took time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	recordingsTotal.WithLabelValues(outcome).Inc()
	recordingDuration.Observe(took.Seconds())
}

// RecordRefresh records the outcome of a calendar refresh.
func RecordRefresh(err error, programs, jobs, deleted int, took time.Duration, at time.Time) {
	refreshDuration.Observe(took.Seconds())
	if err != nil {
		refreshTotal.WithLabelValues("failure").Inc()
		return
	}
	refreshTotal.WithLabelValues("success").Inc()
	refreshItems.WithLabelValues("programs").Set(float64(programs))
	refreshItems.WithLabelValues("jobs").Set(float64(jobs))
	refreshItems.WithLabelValues("deleted").Set(float64(deleted))
	refreshLastSuccess.Set(float64(at.Unix()))
}
