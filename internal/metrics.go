package internal

import "github.com/prometheus/client_golang/prometheus"

var (
	gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windcave_gateway_requests_total",
			Help: "Gateway protocol calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "windcave_gateway_request_seconds",
			Help:    "Gateway protocol call duration.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	signalOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windcave_signals_total",
			Help: "Reconciled completion signals by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(gatewayRequests, gatewayDuration, signalOutcomes)
}
