package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ScanMetricsCollector handles scanner metrics. Implements scanning.MetricsRecorder.
type ScanMetricsCollector struct {
	scansTotal      *prometheus.CounterVec
	scanDuration    *prometheus.HistogramVec
	opportunities   *prometheus.GaugeVec
	itemsFetched    *prometheus.CounterVec
	itemsMatched    *prometheus.CounterVec
	pricingFailures *prometheus.CounterVec
	volatility      *prometheus.GaugeVec
	nextInterval    prometheus.Gauge
}

// NewScanMetricsCollector creates a new scanner metrics collector
func NewScanMetricsCollector() *ScanMetricsCollector {
	return &ScanMetricsCollector{
		// Scan outcomes: success, degraded, failed, cancelled
		scansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemScanner,
				Name:      "scans_total",
				Help:      "Total number of scans by game, level, and outcome",
			},
			[]string{"game", "level", "outcome"},
		),

		scanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystemScanner,
				Name:      "scan_duration_seconds",
				Help:      "Scan duration distribution",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"game", "level"},
		),

		opportunities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemScanner,
				Name:      "opportunities",
				Help:      "Opportunities found by the latest scan of each game and level",
			},
			[]string{"game", "level"},
		),

		itemsFetched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemScanner,
				Name:      "items_fetched_total",
				Help:      "Listings fetched from the marketplace",
			},
			[]string{"game", "level"},
		),

		itemsMatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemScanner,
				Name:      "items_matched_total",
				Help:      "Listings that passed the client-side predicate",
			},
			[]string{"game", "level"},
		),

		pricingFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystemScanner,
				Name:      "pricing_failures_total",
				Help:      "Sell estimate lookups that failed",
			},
			[]string{"source"},
		),

		volatility: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemScanner,
				Name:      "price_volatility",
				Help:      "Coefficient of variation of the rolling median listing price per level",
			},
			[]string{"game", "level"},
		),

		nextInterval: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemScanner,
				Name:      "next_interval_seconds",
				Help:      "Adaptive wait before the next scan cycle",
			},
		),
	}
}

// Register registers all scanner metrics with the Prometheus registry
func (c *ScanMetricsCollector) Register() error {
	return register(
		c.scansTotal,
		c.scanDuration,
		c.opportunities,
		c.itemsFetched,
		c.itemsMatched,
		c.pricingFailures,
		c.volatility,
		c.nextInterval,
	)
}

// RecordScan records a finished scan. Cancelled scans count but do not touch the gauges.
func (c *ScanMetricsCollector) RecordScan(game, level, outcome string, duration float64, opportunities int) {
	c.scansTotal.WithLabelValues(game, level, outcome).Inc()
	if outcome == "cancelled" {
		return
	}
	c.scanDuration.WithLabelValues(game, level).Observe(duration)
	c.opportunities.WithLabelValues(game, level).Set(float64(opportunities))
}

func (c *ScanMetricsCollector) RecordItemsScanned(game, level string, fetched, matched int) {
	c.itemsFetched.WithLabelValues(game, level).Add(float64(fetched))
	c.itemsMatched.WithLabelValues(game, level).Add(float64(matched))
}

func (c *ScanMetricsCollector) RecordPricingFailure(source string) {
	c.pricingFailures.WithLabelValues(source).Inc()
}

func (c *ScanMetricsCollector) RecordVolatility(game, level string, coefficient float64) {
	c.volatility.WithLabelValues(game, level).Set(coefficient)
}

func (c *ScanMetricsCollector) RecordNextInterval(seconds float64) {
	c.nextInterval.Set(seconds)
}
