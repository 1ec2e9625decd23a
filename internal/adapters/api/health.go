package api

// CounterSnapshot totals client outcomes since creation
type CounterSnapshot struct {
	Requests          int64
	Retries           int64
	RateLimited       int64
	CircuitRejections int64
	AuthFailures      int64
	Failures          int64
}

// Health is the client's self-report: breaker states, bucket levels, cache and counters
type Health struct {
	Circuits map[EndpointClass]CircuitSnapshot
	Buckets  map[EndpointClass]BucketSnapshot
	Cache    CacheStats
	Counters CounterSnapshot
}

// Degraded reports whether any endpoint class is currently not fully available
func (h Health) Degraded() bool {
	for _, snap := range h.Circuits {
		if snap.State != CircuitClosed {
			return true
		}
	}
	return false
}

// Health snapshots the client state. It performs no network I/O.
func (c *Client) Health() Health {
	return Health{
		Circuits: c.breakers.Snapshots(),
		Buckets:  c.limiter.Snapshots(),
		Cache:    c.cache.Stats(),
		Counters: CounterSnapshot{
			Requests:          c.requests.Load(),
			Retries:           c.retries.Load(),
			RateLimited:       c.rateLimited.Load(),
			CircuitRejections: c.circuitRejections.Load(),
			AuthFailures:      c.authFailures.Load(),
			Failures:          c.failures.Load(),
		},
	}
}
