package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewdeck_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// TokensIssued counts verification tokens issued per purpose.
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewdeck_tokens_issued_total",
			Help: "Total number of verification tokens issued",
		},
		[]string{"purpose"},
	)

	// TokensRedeemed counts redemption attempts per purpose and outcome
	// (success|not_found|expired|conflict|error).
	TokensRedeemed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crewdeck_tokens_redeemed_total",
			Help: "Total number of verification token redemption attempts",
		},
		[]string{"purpose", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crewdeck_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
