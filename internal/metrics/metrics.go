// Package metrics declares the Prometheus collectors shared by the pipeline,
// the model gateway and the learners.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ModelCalls counts model requests by backend, call kind and outcome.
	ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_model_calls_total",
		Help: "Total model requests by backend, kind and outcome",
	}, []string{"backend", "kind", "outcome"})

	// ModelLatency tracks model request latency.
	ModelLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "receipts_model_call_duration_seconds",
		Help:    "Model request duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
	}, []string{"backend", "kind"})

	// PipelineRuns counts document pipeline runs by outcome.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_pipeline_runs_total",
		Help: "Total pipeline runs by outcome",
	}, []string{"outcome"})

	// StageFailures counts fatal and degraded stage failures.
	StageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_pipeline_stage_failures_total",
		Help: "Pipeline stage failures by stage and severity",
	}, []string{"stage", "severity"})

	// LearningRequests counts operation-list requests issued by the learners.
	LearningRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_learning_requests_total",
		Help: "Operation-list requests by learner and outcome",
	}, []string{"learner", "outcome"})

	// Sessions reports the number of sessions currently held in memory.
	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "receipts_sessions",
		Help: "Sessions currently held in memory",
	})

	// SessionsReaped counts sessions removed by the reaper or capacity eviction.
	SessionsReaped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_sessions_reaped_total",
		Help: "Sessions removed by reason",
	}, []string{"reason"})
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeInvalid  = "invalid_image"
	OutcomeDegraded = "degraded"
	OutcomeFatal    = "fatal"
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
