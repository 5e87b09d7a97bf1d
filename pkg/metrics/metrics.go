// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrderSyncsTotal tracks order reconciliations by outcome
	OrderSyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "sync",
			Name:      "orders_total",
			Help:      "Total number of order reconciliations by outcome",
		},
		[]string{"status", "error_kind"},
	)

	// OrderSyncDuration tracks order reconciliation duration in seconds
	OrderSyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "sync",
			Name:      "order_duration_seconds",
			Help:      "Duration of order reconciliations in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// ConfirmPollsTotal tracks read-after-write confirmation polls
	ConfirmPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "sync",
			Name:      "confirm_polls_total",
			Help:      "Total number of read-after-write confirmation polls",
		},
		[]string{"resource", "outcome"},
	)

	// BatchOrdersTotal tracks orders handled per batch transfer
	BatchOrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "transfer",
			Name:      "batch_orders_total",
			Help:      "Total number of orders handled by batch transfers",
		},
		[]string{"mode", "status"},
	)

	// CursorAdvancesTotal tracks incremental-pull cursor advances
	CursorAdvancesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "transfer",
			Name:      "cursor_advances_total",
			Help:      "Total number of incremental-pull cursor advances",
		},
	)

	// HTTPRequestsTotal tracks outbound HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "http_client",
			Name:      "requests_total",
			Help:      "Total number of outbound HTTP requests",
		},
		[]string{"method", "status_code"},
	)

	// HTTPRequestDuration tracks outbound HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "http_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound HTTP requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method"},
	)

	// QueueJobsProcessed tracks jobs processed from the queue
	QueueJobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "queue",
			Name:      "jobs_processed_total",
			Help:      "Total number of jobs processed from the queue",
		},
		[]string{"status"},
	)

	// DLQJobsTotal tracks jobs sent to the dead letter queue
	DLQJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "dlq",
			Name:      "jobs_total",
			Help:      "Total number of jobs sent to dead letter queue",
		},
		[]string{"reason"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// SchedulerCyclesTotal tracks scheduled pull cycles
	SchedulerCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Total number of scheduled pull cycles",
		},
		[]string{"status"},
	)
)

// RecordOrderSync records an order reconciliation metric
func RecordOrderSync(status, errorKind string, durationSeconds float64) {
	OrderSyncsTotal.WithLabelValues(status, errorKind).Inc()
	OrderSyncDuration.Observe(durationSeconds)
}

// RecordConfirmPoll records a read-after-write confirmation outcome
func RecordConfirmPoll(resource, outcome string) {
	ConfirmPollsTotal.WithLabelValues(resource, outcome).Inc()
}

// RecordHTTPRequest records an outbound HTTP request metric
func RecordHTTPRequest(method, statusCode string, durationSeconds float64) {
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordQueueJob records a queue job processing metric
func RecordQueueJob(status string) {
	QueueJobsProcessed.WithLabelValues(status).Inc()
}

// RecordDLQJob records a dead letter queue job
func RecordDLQJob(reason string) {
	DLQJobsTotal.WithLabelValues(reason).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}

// RecordBatchOrder records one order handled by a batch transfer
func RecordBatchOrder(mode, status string) {
	BatchOrdersTotal.WithLabelValues(mode, status).Inc()
}
