package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_sends_total",
			Help: "Total number of send attempts through the gateway (count)",
		},
		[]string{"channel", "status"},
	)

	SendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_send_duration_ms",
			Help:    "End-to-end send pipeline duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"channel", "status"},
	)

	SendRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_send_rejections_total",
			Help: "Total number of sends rejected before the provider call (count)",
		},
		[]string{"channel", "reason"},
	)

	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_provider_requests_total",
			Help: "Total number of requests to channel providers (count)",
		},
		[]string{"channel", "operation", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_provider_request_duration_ms",
			Help:    "Duration of channel provider requests in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"channel", "operation"},
	)

	WebhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_webhooks_total",
			Help: "Total number of provider webhooks received (count)",
		},
		[]string{"channel", "kind", "result"},
	)

	SMSSegments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_sms_segments",
			Help:    "Segment count of accepted SMS sends (count)",
			Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
		},
	)

	UsageRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_usage_recorded_total",
			Help: "Total number of usage records written (count)",
		},
		[]string{"channel", "event_type"},
	)

	UsageUnitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_usage_units_total",
			Help: "Total billable units consumed (count)",
		},
		[]string{"channel", "event_type"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

func RegisterGatewayMetrics() {
	prometheus.MustRegister(SendsTotal)
	prometheus.MustRegister(SendDuration)
	prometheus.MustRegister(SendRejectionsTotal)
	prometheus.MustRegister(ProviderRequestsTotal)
	prometheus.MustRegister(ProviderRequestDuration)
	prometheus.MustRegister(WebhooksTotal)
	prometheus.MustRegister(SMSSegments)
	prometheus.MustRegister(UsageRecordedTotal)
	prometheus.MustRegister(UsageUnitsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterAPIMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func ObserveSendDuration(channel string, status string, duration time.Duration) {
	SendDuration.WithLabelValues(channel, status).Observe(float64(duration.Milliseconds()))
}

func IncSend(channel, status string) {
	SendsTotal.WithLabelValues(channel, status).Inc()
}

func IncSendRejection(channel, reason string) {
	SendRejectionsTotal.WithLabelValues(channel, reason).Inc()
}

func IncProviderRequest(channel, operation, status string) {
	ProviderRequestsTotal.WithLabelValues(channel, operation, status).Inc()
}

func ObserveProviderRequestDuration(channel, operation string, duration time.Duration) {
	ProviderRequestDuration.WithLabelValues(channel, operation).Observe(float64(duration.Milliseconds()))
}

func IncWebhook(channel, kind, result string) {
	WebhooksTotal.WithLabelValues(channel, kind, result).Inc()
}

func RecordUsage(channel, eventType string, units int) {
	UsageRecordedTotal.WithLabelValues(channel, eventType).Inc()
	UsageUnitsTotal.WithLabelValues(channel, eventType).Add(float64(units))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
