package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Deployment metrics
	DeploymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ripcord_deployments_total",
			Help: "Total number of deployment invocations by terminal outcome",
		},
		[]string{"environment", "outcome"},
	)

	RolloutWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ripcord_rollout_wait_seconds",
			Help:    "Wall time spent waiting for a rollout to settle",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"outcome"},
	)

	RolloutWaitAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ripcord_rollout_wait_attempts",
			Help:    "Polls issued before a rollout wait terminated",
			Buckets: prometheus.LinearBuckets(1, 5, 13),
		},
		[]string{"outcome"},
	)

	// Health check metrics
	CheckOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ripcord_health_checks_total",
			Help: "Health check results by check name and outcome",
		},
		[]string{"check", "outcome"},
	)

	// Rollback metrics
	RollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ripcord_rollbacks_total",
			Help: "Rollbacks applied by policy",
		},
		[]string{"policy"},
	)

	IncidentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ripcord_incidents_total",
			Help: "Incident records written",
		},
	)
)

func init() {
	prometheus.MustRegister(DeploymentsTotal)
	prometheus.MustRegister(RolloutWaitDuration)
	prometheus.MustRegister(RolloutWaitAttempts)
	prometheus.MustRegister(CheckOutcomes)
	prometheus.MustRegister(RollbacksTotal)
	prometheus.MustRegister(IncidentsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
