package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
)

// ClientStateCollector polls the API client's self-report and exports bucket and cache gauges.
// Event-driven counters live in APIMetricsCollector; this covers levels that drift between events.
type ClientStateCollector struct {
	getHealth func() api.Health

	bucketTokens  *prometheus.GaugeVec
	bucketRate    *prometheus.GaugeVec
	cacheEntries  prometheus.Gauge
	cacheCoalesce prometheus.Gauge

	// Lifecycle
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewClientStateCollector creates a collector reading from getHealth (usually client.Health)
func NewClientStateCollector(getHealth func() api.Health) *ClientStateCollector {
	return &ClientStateCollector{
		getHealth: getHealth,

		bucketTokens: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "bucket_tokens",
				Help:      "Tokens currently available per endpoint class",
			},
			[]string{"class"},
		),

		bucketRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "bucket_effective_rate",
				Help:      "Effective refill rate per endpoint class after 429 penalties",
			},
			[]string{"class"},
		),

		cacheEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "cache_entries",
				Help:      "Entries held by the response cache",
			},
		),

		cacheCoalesce: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystemAPI,
				Name:      "cache_coalesced_total",
				Help:      "Cache misses served by another caller's in-flight fetch",
			},
		),
	}
}

// Register registers all client state metrics with the Prometheus registry
func (c *ClientStateCollector) Register() error {
	return register(c.bucketTokens, c.bucketRate, c.cacheEntries, c.cacheCoalesce)
}

// Start begins polling every interval until Stop or ctx is done
func (c *ClientStateCollector) Start(ctx context.Context, interval time.Duration) {
	c.ctx, c.cancelFunc = context.WithCancel(ctx)

	c.wg.Add(1)
	go c.collect(interval)
}

// Stop gracefully stops the metrics collection
func (c *ClientStateCollector) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
}

func (c *ClientStateCollector) collect(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Update()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.Update()
		}
	}
}

// Update takes one snapshot and refreshes the gauges
func (c *ClientStateCollector) Update() {
	if c.getHealth == nil {
		return
	}
	h := c.getHealth()

	for class, b := range h.Buckets {
		c.bucketTokens.WithLabelValues(string(class)).Set(b.Tokens)
		c.bucketRate.WithLabelValues(string(class)).Set(b.EffectiveRate)
	}
	c.cacheEntries.Set(float64(h.Cache.Size))
	c.cacheCoalesce.Set(float64(h.Cache.Coalesced()))
}
