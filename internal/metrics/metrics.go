// Package metrics provides Prometheus metrics for sensorwatch.
// It tracks bus traffic, record decoding, the message log, and command
// publishing so operators can see where the pipeline drops data.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "sensorwatch"
)

// Bus metrics track the inbound pipeline.
var (
	// MessagesReceivedTotal counts inbound bus messages by classifier route.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of bus messages received, by route",
		},
		[]string{"route"}, // route: alert, event, partial, status, ignored
	)

	// DecodeErrorsTotal counts payloads that could not be turned into records.
	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Total number of payloads discarded because they failed to decode",
		},
		[]string{"route"},
	)

	// TombstonesObservedTotal counts empty retained payloads seen on event topics.
	TombstonesObservedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tombstones_observed_total",
			Help:      "Total number of empty event payloads observed on the bus",
		},
	)

	// MessageProcessingLatency measures time to handle a single bus message.
	MessageProcessingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_processing_latency_seconds",
			Help:      "Time to process a single bus message in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// PartialsPending tracks open partial accumulators per sensor kind.
	PartialsPending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "partials_pending",
			Help:      "Current number of nodes with an incomplete sensor reading",
		},
		[]string{"sensor_kind"},
	)
)

// Log metrics track the bounded message log.
var (
	// RecordsAppendedTotal counts records appended to the log, by kind.
	RecordsAppendedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_appended_total",
			Help:      "Total number of records appended to the message log",
		},
		[]string{"kind"},
	)

	// LogEvictionsTotal counts records dropped because the log was full.
	LogEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_evictions_total",
			Help:      "Total number of records evicted from the message log",
		},
	)

	// LogSize tracks the current number of records in the log.
	LogSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "log_size",
			Help:      "Current number of records in the message log",
		},
	)

	// RegistryEntries tracks the size of the last materialized event registry.
	RegistryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_entries",
			Help:      "Number of event definitions in the last materialized registry",
		},
	)
)

// Command metrics track outbound event writes.
var (
	// CommandsPublishedTotal counts create, update, toggle and delete publishes.
	CommandsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_published_total",
			Help:      "Total number of event commands published",
		},
		[]string{"operation", "status"}, // status: success, rejected, failure
	)

	// QueuePublishLatency measures time to hand a message to the transport.
	QueuePublishLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_publish_latency_seconds",
			Help:      "Time to publish a message to the transport in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
	)

	// QueueDepth tracks buffered messages waiting for the processor.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of messages buffered for the processor",
		},
	)
)

// Notification metrics track the alert notification path.
var (
	// NotificationsSentTotal counts alert notifications sent.
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of alert notifications sent",
		},
		[]string{"node_id", "status"}, // status: success, failure
	)

	// AlertAge measures the delay between an alert firing on a node and
	// this process notifying about it.
	AlertAge = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_age_seconds",
			Help:      "Time from alert timestamp to notification dispatch in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// Storage metrics track database and cache operations.
var (
	// StorageOperationLatency measures latency of storage operations.
	StorageOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_latency_seconds",
			Help:      "Latency of storage operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"store", "operation"}, // store: postgres, redis; operation: read, write
	)

	// StorageOperationsTotal counts storage operations.
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of storage operations",
		},
		[]string{"store", "operation", "status"}, // status: success, failure
	)
)
