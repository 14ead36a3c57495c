// Package metrics defines the Prometheus collectors the pipeline updates
// and a Manager that appends a JSONL per-session summary and keeps an
// in-memory rolling window of recent summaries.
// Collector definitions are grounded on hubenschmidt's
// internal/metrics/metrics.go (promauto package-level vars); the
// JSONL-sink + rolling-window manager is new, since the teacher pack has
// no equivalent aggregation layer and SPEC_FULL §9 asks for one.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxpipe_sessions_active",
		Help: "Currently active conversation sessions",
	})

	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxpipe_sessions_total",
		Help: "Total sessions created",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voxpipe_stage_duration_seconds",
		Help:    "Per-stage processing latency",
		Buckets: []float64{0.02, 0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0},
	}, []string{"stage"})

	E2EDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxpipe_e2e_duration_seconds",
		Help:    "End-to-end latency from utterance finalization to first TTS audio frame",
		Buckets: []float64{0.1, 0.2, 0.4, 0.6, 0.8, 1.0, 1.5, 2.0, 3.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxpipe_errors_total",
		Help: "Error counts by stage and error type",
	}, []string{"stage", "error_type"})

	AudioFramesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxpipe_audio_frames_ingested_total",
		Help: "Total inbound audio frames accepted by AudioIngress",
	})

	AudioFramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxpipe_audio_frames_dropped_total",
		Help: "Inbound audio frames dropped, by reason",
	}, []string{"reason"})

	BargeIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxpipe_barge_ins_total",
		Help: "Barge-in interruptions detected",
	})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voxpipe_circuit_breaker_state",
		Help: "0=healthy 1=degraded 2=failed, by service",
	}, []string{"service"})

	TTSQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxpipe_tts_queue_depth",
		Help: "Current aggregate TTS queue depth across active sessions",
	})

	LatencyBudgetBreaches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxpipe_latency_budget_breaches_total",
		Help: "Count of stage/e2e latency budget breaches, by stage",
	}, []string{"stage"})
)

// Budgets are the per-stage latency ceilings named in SPEC_FULL §8.
var Budgets = map[string]time.Duration{
	"asr": 500 * time.Millisecond,
	"llm": 300 * time.Millisecond,
	"tts": 200 * time.Millisecond,
	"e2e": 1000 * time.Millisecond,
}

// ObserveStage records a stage latency and, if it breached the budget,
// increments LatencyBudgetBreaches.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if budget, ok := Budgets[stage]; ok && d > budget {
		LatencyBudgetBreaches.WithLabelValues(stage).Inc()
	}
}

// ObserveE2E records an end-to-end latency sample.
func ObserveE2E(d time.Duration) {
	E2EDuration.Observe(d.Seconds())
	if d > Budgets["e2e"] {
		LatencyBudgetBreaches.WithLabelValues("e2e").Inc()
	}
}
