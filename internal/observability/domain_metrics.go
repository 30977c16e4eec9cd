package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	conversionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_conversions_total",
			Help: "Total number of question-to-SQL conversions by outcome.",
		},
		[]string{"outcome"},
	)
	inferenceLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlassist_inference_latency_ms",
			Help:    "Latency of calls to the inference endpoint in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"backend"},
	)
	busyRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlassist_busy_rejections_total",
			Help: "Total number of conversions rejected because one was already running for the session.",
		},
	)
	schemaChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlassist_schema_changes_total",
			Help: "Total number of schema mutations by operation.",
		},
		[]string{"operation"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlassist_active_sessions",
			Help: "Current number of live sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		conversionsTotal,
		inferenceLatencyMs,
		busyRejectionsTotal,
		schemaChangesTotal,
		activeSessions,
	)
}

// ObserveConversion counts a finished conversion. outcome is "ok" or the
// error kind that stopped it.
func ObserveConversion(outcome string) {
	if outcome == "" {
		outcome = "ok"
	}
	conversionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveInferenceLatency(backend string, elapsed time.Duration) {
	inferenceLatencyMs.WithLabelValues(backend).Observe(float64(elapsed.Milliseconds()))
}

func IncrementBusyRejection() {
	busyRejectionsTotal.Inc()
}

func ObserveSchemaChange(operation string) {
	schemaChangesTotal.WithLabelValues(operation).Inc()
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}
