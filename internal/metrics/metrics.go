package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuoteRequestsTotal counts aggregation calls by outcome
	QuoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_quote_requests_total",
			Help: "Total number of quote aggregation requests",
		},
		[]string{"outcome"},
	)

	// ProviderCallsTotal counts upstream provider calls by provider and outcome
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_provider_calls_total",
			Help: "Total number of upstream provider quote calls",
		},
		[]string{"provider", "outcome"},
	)

	// ProviderCallDuration tracks upstream quote latency per provider
	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aggregator_provider_call_duration_seconds",
			Help:    "Upstream provider quote call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// BreakerState exposes the circuit breaker state per provider
	// (0=closed, 1=open, 2=half_open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregator_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half_open)",
		},
		[]string{"provider"},
	)

	// CacheRequestsTotal counts result cache lookups by outcome
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_cache_requests_total",
			Help: "Total number of result cache lookups",
		},
		[]string{"outcome"},
	)

	// RateLimitRejections counts rejected requests by window
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_rate_limit_rejections_total",
			Help: "Total number of rate-limited requests by window",
		},
		[]string{"window"},
	)

	// OperationTransitions counts operation state transitions
	OperationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_operation_transitions_total",
			Help: "Total number of operation status transitions",
		},
		[]string{"from", "to"},
	)

	// OperationsByStatus tracks the number of operations per status
	OperationsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "aggregator_operations",
			Help: "Number of operations by status",
		},
		[]string{"status"},
	)

	// WebhookDeliveriesTotal counts webhook delivery attempts by outcome
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"outcome"},
	)

	// WebhookDeliveryDuration tracks webhook delivery latency
	WebhookDeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregator_webhook_delivery_duration_seconds",
			Help:    "Webhook delivery duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ErrorsTotal counts errors by component
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregator_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)
