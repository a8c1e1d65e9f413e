package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// laneLabels identify one consumer lane.
var laneLabels = []string{"topic", "consumer_group"}

func laneCounter(name, help string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, laneLabels)
}

var (
	ConsumerMessagesProcessed = laneCounter(
		"kafka_consumer_messages_processed_total",
		"Messages handled successfully, per lane",
	)
	ConsumerHandlerRetries = laneCounter(
		"kafka_consumer_handler_retries_total",
		"Handler attempts that failed and were retried",
	)
	// ConsumerMessagesFailed counts messages that exhausted MaxHandlerAttempts.
	ConsumerMessagesFailed = laneCounter(
		"kafka_consumer_messages_failed_total",
		"Messages that failed every handler attempt",
	)
	ConsumerDLQPublished = laneCounter(
		"kafka_consumer_dlq_published_total",
		"Messages forwarded to the dead-letter topic",
	)

	ConsumerProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_consumer_processing_duration_seconds",
			Help:    "Time spent handling one message including retries",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10},
		},
		laneLabels,
	)

	// ConsumerMessagesDuplicate counts jobs skipped by IdempotentHandler.
	ConsumerMessagesDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_messages_duplicate_total",
			Help: "Jobs skipped because their event id was already processed",
		},
		[]string{"event_type"},
	)

	ProducerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_messages_published_total",
			Help: "Messages written to a topic",
		},
		[]string{"topic"},
	)
	ProducerPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_publish_errors_total",
			Help: "Failed topic writes",
		},
		[]string{"topic"},
	)
)
