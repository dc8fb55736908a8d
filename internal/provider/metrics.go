package provider

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Call outcomes recorded in metrics.
const (
	outcomeSuccess   = "success"
	outcomeSwallowed = "swallowed"
)

var (
	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "klarna_provider_calls_total",
			Help: "Provider API calls by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "klarna_provider_call_duration_seconds",
			Help:    "Provider API call latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(callsTotal, callDuration)
}
