package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_ledger_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coupon_ledger_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coupon_ledger_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		},
	)

	LedgerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_ledger_outcomes_total",
			Help: "Validate and mark results by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	LedgerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coupon_ledger_operation_duration_seconds",
			Help:    "Time spent in validate and mark, including lock waits.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	InvariantViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coupon_ledger_invariant_violations_total",
			Help: "Observed redeemed_count > max_redemptions. Must stay at zero.",
		},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coupon_ledger_breaker_state",
			Help: "Store circuit breaker state (0 closed, 1 half-open, 2 open).",
		},
		[]string{"name"},
	)

	AuditFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupon_ledger_audit_failures_total",
			Help: "Audit entries that could not be written, by sink.",
		},
		[]string{"sink"},
	)
)
