package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for investigation counters.
const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

var (
	investigationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spendlens",
			Name:      "investigations_total",
			Help:      "Total number of investigations finalized, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	investigationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "spendlens",
			Name:      "investigation_seconds",
			Help:      "End-to-end investigation latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	stepDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spendlens",
			Name:      "step_seconds",
			Help:      "Per-step execution latency in seconds, partitioned by capability.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"capability", "status"},
	)

	reflectionPassesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spendlens",
			Name:      "reflection_passes_total",
			Help:      "Number of reflection re-dispatch passes triggered by low confidence.",
		},
	)

	poolExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spendlens",
			Name:      "agent_pool_exhausted_total",
			Help:      "Bounded pool waits that timed out, partitioned by capability.",
		},
		[]string{"capability"},
	)

	activeInvestigations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "spendlens",
			Name:      "active_investigations",
			Help:      "Investigations currently in a non-terminal state.",
		},
	)

	anomaliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spendlens",
			Name:      "anomalies_total",
			Help:      "Anomalies reported by finalized investigations, partitioned by type and severity.",
		},
		[]string{"type", "severity"},
	)
)

// Register attaches the engine collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		investigationsTotal,
		investigationDurationSeconds,
		stepDurationSeconds,
		reflectionPassesTotal,
		poolExhaustedTotal,
		activeInvestigations,
		anomaliesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveInvestigation records a finalized investigation.
func ObserveInvestigation(duration time.Duration, outcome string) {
	investigationsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	investigationDurationSeconds.Observe(duration.Seconds())
}

// ObserveStep records a single step execution.
func ObserveStep(capability, status string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	stepDurationSeconds.WithLabelValues(capability, status).Observe(duration.Seconds())
}

// ReflectionPass counts one reflection re-dispatch.
func ReflectionPass() {
	reflectionPassesTotal.Inc()
}

// PoolExhausted counts one bounded wait that timed out.
func PoolExhausted(capability string) {
	poolExhaustedTotal.WithLabelValues(capability).Inc()
}

// InvestigationStarted bumps the active gauge.
func InvestigationStarted() {
	activeInvestigations.Inc()
}

// InvestigationDone decrements the active gauge.
func InvestigationDone() {
	activeInvestigations.Dec()
}

// ObserveAnomaly counts one reported anomaly.
func ObserveAnomaly(anomalyType, severity string) {
	anomaliesTotal.WithLabelValues(anomalyType, severity).Inc()
}
