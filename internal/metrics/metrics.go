package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoflow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "echoflow",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	ThreadsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "echoflow",
			Subsystem: "chat",
			Name:      "threads_created_total",
			Help:      "Total threads created",
		},
	)

	MessagesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoflow",
			Subsystem: "chat",
			Name:      "messages_created_total",
			Help:      "Total messages stored, by role",
		},
		[]string{"role"},
	)

	// outcome is one of succeeded, failed, rejected
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoflow",
			Subsystem: "chat",
			Name:      "sends_total",
			Help:      "Send pipeline runs by outcome",
		},
		[]string{"outcome", "retry"},
	)

	TitleGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoflow",
			Subsystem: "chat",
			Name:      "title_generations_total",
			Help:      "Background title generations by status",
		},
		[]string{"status"},
	)

	LLMDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "echoflow",
			Subsystem: "llm",
			Name:      "duration_seconds",
			Help:      "Language model call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model", "operation"},
	)

	LLMErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoflow",
			Subsystem: "llm",
			Name:      "errors_total",
			Help:      "Language model call failures",
		},
		[]string{"model", "operation"},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "echoflow",
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Open websocket connections",
		},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "echoflow",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)
)
