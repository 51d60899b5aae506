// Package metrics provides Prometheus metrics for the pollen service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallbacksTotal tracks OAuth callbacks by outcome (success, or the failing error kind)
	CallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "facebook",
			Name:      "callbacks_total",
			Help:      "Total number of Facebook OAuth callbacks by outcome",
		},
		[]string{"outcome"},
	)

	// CallbackDuration tracks end-to-end callback handling time
	CallbackDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pollen",
			Subsystem: "facebook",
			Name:      "callback_duration_seconds",
			Help:      "Duration of Facebook OAuth callback handling in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// PagesSyncedTotal tracks per-page sync results
	PagesSyncedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "facebook",
			Name:      "pages_synced_total",
			Help:      "Total number of pages processed during sync by result",
		},
		[]string{"result"},
	)

	// GraphRequestsTotal tracks outbound Graph API requests
	GraphRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// GraphRequestDuration tracks outbound Graph API request duration
	GraphRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pollen",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pollen",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pollen",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)
)

// RecordCallback records the outcome of one OAuth callback
func RecordCallback(outcome string, durationSeconds float64) {
	CallbacksTotal.WithLabelValues(outcome).Inc()
	CallbackDuration.Observe(durationSeconds)
}

// RecordPageSync records one page's sync result (enabled or failed)
func RecordPageSync(result string) {
	PagesSyncedTotal.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records an outbound HTTP request metric
func RecordHTTPRequest(endpoint, method, statusCode string, durationSeconds float64) {
	GraphRequestsTotal.WithLabelValues(endpoint, method, statusCode).Inc()
	GraphRequestDuration.WithLabelValues(endpoint, method).Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}
