package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
)

func TestRegister_NoopWhenDisabled(t *testing.T) {
	Registry = nil

	assert.NoError(t, NewAPIMetricsCollector().Register())
	assert.NoError(t, NewScanMetricsCollector().Register())
	assert.False(t, IsEnabled())
}

func TestAPIMetricsCollector_Records(t *testing.T) {
	// Arrange
	InitRegistry()
	t.Cleanup(func() { Registry = nil })
	c := NewAPIMetricsCollector()
	require.NoError(t, c.Register())

	// Act
	c.RecordAPIRequest("GET", "market-read", 200, 0.2)
	c.RecordAPIRequest("GET", "market-read", 429, 0.1)
	c.RecordAPIRetry("GET", "market-read", "rate_limited")
	c.RecordRateLimited("market-read")
	c.RecordCircuitState("market-read", 1)
	c.RecordCircuitRejection("market-read")
	c.RecordCacheLookup(true)
	c.RecordCacheLookup(false)
	c.RecordCacheLookup(false)

	// Assert
	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiRequestsTotal.WithLabelValues("GET", "market-read", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiRetries.WithLabelValues("GET", "market-read", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimitedTotal.WithLabelValues("market-read")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.circuitState.WithLabelValues("market-read")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheLookupsTotal.WithLabelValues("miss")))

	// Second registration on the same registry must collide
	assert.Error(t, NewAPIMetricsCollector().Register())
}

func TestScanMetricsCollector_CancelledScansSkipGauges(t *testing.T) {
	c := NewScanMetricsCollector()

	c.RecordScan("csgo", "boost", "success", 1.5, 7)
	c.RecordScan("csgo", "boost", "cancelled", 0.1, 0)
	c.RecordNextInterval(42)

	assert.Equal(t, 7.0, testutil.ToFloat64(c.opportunities.WithLabelValues("csgo", "boost")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.scansTotal.WithLabelValues("csgo", "boost", "cancelled")))
	assert.Equal(t, 42.0, testutil.ToFloat64(c.nextInterval))
}

func TestClientStateCollector_Update(t *testing.T) {
	// Arrange
	health := api.Health{
		Buckets: map[api.EndpointClass]api.BucketSnapshot{
			api.ClassMarketRead: {Class: api.ClassMarketRead, Tokens: 3.5, EffectiveRate: 5},
		},
		Cache: api.CacheStats{Misses: 10, Fetches: 4, Size: 12},
	}
	c := NewClientStateCollector(func() api.Health { return health })

	// Act
	c.Update()

	// Assert
	assert.Equal(t, 3.5, testutil.ToFloat64(c.bucketTokens.WithLabelValues("market-read")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.bucketRate.WithLabelValues("market-read")))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.cacheEntries))
	assert.Equal(t, 6.0, testutil.ToFloat64(c.cacheCoalesce))
}

func TestServer_ServesRegistry(t *testing.T) {
	// Arrange
	InitRegistry()
	t.Cleanup(func() { Registry = nil })
	c := NewAPIMetricsCollector()
	require.NoError(t, c.Register())
	c.RecordAPIRequest("GET", "public-read", 200, 0.05)

	server, err := NewServer("127.0.0.1:0", "/metrics", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Act
	resp, err := http.Get("http://" + server.Addr().String() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	// Assert
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `marketscan_api_requests_total{class="public-read",method="GET",status_code="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewServer_RequiresRegistry(t *testing.T) {
	Registry = nil

	_, err := NewServer("127.0.0.1:0", "", nil)

	assert.Error(t, err)
}
