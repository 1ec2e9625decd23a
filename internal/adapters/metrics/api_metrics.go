package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// APIMetricsCollector handles all marketplace API metrics.
// Implements api.MetricsRecorder.
type APIMetricsCollector struct {
	// Request metrics
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	apiRetries         *prometheus.CounterVec

	// Resilience metrics
	rateLimitWait     *prometheus.HistogramVec
	rateLimitedTotal  *prometheus.CounterVec
	circuitState      *prometheus.GaugeVec
	circuitRejections *prometheus.CounterVec
	cacheLookupsTotal *prometheus.CounterVec
}

// NewAPIMetricsCollector creates a new API metrics collector
func NewAPIMetricsCollector() *APIMetricsCollector {
	return &APIMetricsCollector{
		// Total API requests by method, endpoint class and status code
		apiRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "requests_total",
				Help:      "Total number of API requests by method, endpoint class, and status code",
			},
			[]string{"method", "class", "status_code"},
		),

		apiRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "request_duration_seconds",
				Help:      "API request duration distribution",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"method", "class"},
		),

		apiRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "retries_total",
				Help:      "Total number of API retry attempts by failure kind",
			},
			[]string{"method", "class", "reason"},
		),

		rateLimitWait: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "rate_limit_wait_seconds",
				Help:      "Time spent waiting for a rate limiter token",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"class"},
		),

		rateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "rate_limited_total",
				Help:      "Responses rejected by the server with 429",
			},
			[]string{"class"},
		),

		// 0 closed, 1 open, 2 half-open
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "circuit_state",
				Help:      "Circuit breaker state per endpoint class (0 closed, 1 open, 2 half-open)",
			},
			[]string{"class"},
		),

		circuitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "circuit_rejections_total",
				Help:      "Requests failed fast by an open circuit",
			},
			[]string{"class"},
		),

		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "cache_lookups_total",
				Help:      "Response cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// Register registers all API metrics with the Prometheus registry
func (c *APIMetricsCollector) Register() error {
	return register(
		c.apiRequestsTotal,
		c.apiRequestDuration,
		c.apiRetries,
		c.rateLimitWait,
		c.rateLimitedTotal,
		c.circuitState,
		c.circuitRejections,
		c.cacheLookupsTotal,
	)
}

// RecordAPIRequest records an API request completion
func (c *APIMetricsCollector) RecordAPIRequest(method, class string, statusCode int, duration float64) {
	c.apiRequestsTotal.WithLabelValues(method, class, strconv.Itoa(statusCode)).Inc()
	c.apiRequestDuration.WithLabelValues(method, class).Observe(duration)
}

// RecordAPIRetry records an API retry attempt
func (c *APIMetricsCollector) RecordAPIRetry(method, class, reason string) {
	c.apiRetries.WithLabelValues(method, class, reason).Inc()
}

// RecordRateLimitWait records time spent waiting for rate limiter
func (c *APIMetricsCollector) RecordRateLimitWait(class string, duration float64) {
	c.rateLimitWait.WithLabelValues(class).Observe(duration)
}

func (c *APIMetricsCollector) RecordRateLimited(class string) {
	c.rateLimitedTotal.WithLabelValues(class).Inc()
}

func (c *APIMetricsCollector) RecordCircuitRejection(class string) {
	c.circuitRejections.WithLabelValues(class).Inc()
}

func (c *APIMetricsCollector) RecordCircuitState(class string, state int) {
	c.circuitState.WithLabelValues(class).Set(float64(state))
}

func (c *APIMetricsCollector) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookupsTotal.WithLabelValues(result).Inc()
}
