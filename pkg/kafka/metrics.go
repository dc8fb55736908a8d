package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish outcomes.
const (
	OutcomePublished    = "published"
	OutcomeMarshalError = "marshal_error"
	OutcomeWriteError   = "write_error"
)

var (
	// ProducerPublished counts publish attempts by topic and outcome.
	ProducerPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_publish_total",
			Help: "Kafka publish attempts by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	// ProducerPublishDuration observes write latency including failures.
	ProducerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Duration of Kafka publish operations in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"topic"},
	)
)

func observePublish(topic, outcome string, start time.Time) {
	ProducerPublished.WithLabelValues(topic, outcome).Inc()
	ProducerPublishDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())
}
