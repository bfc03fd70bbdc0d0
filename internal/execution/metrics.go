package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SessionsTotal tracks finished execution sessions.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_execution_sessions_total",
			Help: "Total number of execution sessions by outcome",
		},
		[]string{"outcome"},
	)

	// AttemptsTotal tracks prepare/sign/submit cycles.
	AttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_execution_attempts_total",
		Help: "Total number of execution attempts",
	})

	// RetriesTotal tracks attempts restarted after a retryable rejection.
	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trader_execution_retries_total",
		Help: "Total number of retries after invalid signature rejections",
	})

	// SubmissionsTotal tracks submit calls by classification.
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_execution_submissions_total",
			Help: "Total number of order submissions by result",
		},
		[]string{"result"}, // "ok", "retryable" or "terminal"
	)

	// ExecutionDurationSeconds tracks session latency from confirm to terminal phase.
	ExecutionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trader_execution_duration_seconds",
		Help:    "Duration of execution sessions",
		Buckets: prometheus.DefBuckets,
	})
)
