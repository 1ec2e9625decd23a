package api_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
	"github.com/andrescamacho/marketscan-go/internal/adapters/credentials"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

const (
	testPublicKey = "pub-key"
	testSecretKey = "secret-key"
)

type clientFixture struct {
	client *api.Client
	clock  *shared.MockClock
	server *httptest.Server
}

func fastConfig(baseURL string) api.Config {
	cfg := api.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Timeout = 2 * time.Second
	cfg.RateLimits = map[api.EndpointClass]api.BucketConfig{
		api.ClassMarketRead: {RequestsPerSecond: 1000, Burst: 1000},
		api.ClassPublicRead: {RequestsPerSecond: 1000, Burst: 1000},
		api.ClassOrderWrite: {RequestsPerSecond: 1000, Burst: 1000},
	}
	cfg.Retry = api.RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   100 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    time.Second,
		Jitter:      0.5,
		MaxElapsed:  time.Minute,
	}
	cfg.Breaker = api.BreakerConfig{FailureThreshold: 2, Window: time.Minute, OpenDuration: 30 * time.Second}
	return cfg
}

func newFixture(t *testing.T, handler http.HandlerFunc, mutate ...func(*api.Config)) *clientFixture {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := fastConfig(server.URL)
	for _, m := range mutate {
		m(&cfg)
	}
	clock := shared.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	client, err := api.NewClient(cfg, credentials.NewStaticProvider(testPublicKey, testSecretKey),
		api.WithClock(clock),
		api.WithRandom(func() float64 { return 0.99 }),
	)
	require.NoError(t, err)
	return &clientFixture{client: client, clock: clock, server: server}
}

func TestClient_SignsRequests(t *testing.T) {
	// Arrange
	var verified atomic.Bool
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		verified.Store(r.Header.Get(api.HeaderAPIKey) == testPublicKey &&
			api.VerifySignature(testSecretKey, r.Method, r.URL.RequestURI(), body,
				r.Header.Get(api.HeaderSignDate), r.Header.Get(api.HeaderSignature)))
		fmt.Fprint(w, `{}`)
	})
	query := url.Values{"gameId": {"a8db"}, "limit": {"10"}}

	// Act
	_, err := fx.client.Get(context.Background(), api.PathMarketItems, query, api.RequestOptions{})

	// Assert
	require.NoError(t, err)
	assert.True(t, verified.Load(), "server must be able to verify the HMAC signature")
}

func TestClient_PublicReadsAreUnsigned(t *testing.T) {
	var signed atomic.Bool
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		signed.Store(r.Header.Get(api.HeaderSignature) != "")
		fmt.Fprint(w, `{}`)
	})

	_, err := fx.client.Get(context.Background(), api.PathAggregatedPrices, nil, api.RequestOptions{Class: api.ClassPublicRead})

	require.NoError(t, err)
	assert.False(t, signed.Load())
}

func TestClient_RetriesRateLimitThenSucceeds(t *testing.T) {
	// Arrange
	var calls atomic.Int32
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	})
	start := fx.clock.Now()

	// Act
	body, err := fx.client.Get(context.Background(), api.PathMarketItems, nil, api.RequestOptions{})

	// Assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(2), calls.Load())

	health := fx.client.Health()
	assert.Equal(t, int64(1), health.Counters.RateLimited)
	assert.Equal(t, int64(1), health.Counters.Retries)

	policy := fastConfig("").Retry
	assert.GreaterOrEqual(t, fx.clock.Now().Sub(start), policy.BaseBackoff(0), "retry must wait at least the computed backoff")
}

func TestClient_HonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{}`)
	})

	_, err := fx.client.Get(context.Background(), api.PathMarketItems, nil, api.RequestOptions{})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{3 * time.Second}, fx.clock.Sleeps())
}

func TestClient_AuthenticationErrorNotRetried(t *testing.T) {
	// Arrange
	var calls atomic.Int32
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad signature"}`)
	})

	// Act
	_, err := fx.client.Get(context.Background(), api.PathMarketItems, nil, api.RequestOptions{})

	// Assert
	assert.ErrorIs(t, err, api.ErrAuthentication)
	assert.Equal(t, api.KindAuthentication, api.KindOf(err))
	assert.False(t, api.IsDegraded(err))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, api.CircuitClosed, fx.client.Breakers().Get(api.ClassMarketRead).GetState(),
		"auth failures say nothing about upstream health")
}

func TestClient_ValidationErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := fx.client.Get(context.Background(), api.PathMarketItems, nil, api.RequestOptions{})

	assert.ErrorIs(t, err, api.ErrValidation)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ServerErrorsExhaustRetriesAndOpenCircuit(t *testing.T) {
	// Arrange
	var calls atomic.Int32
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	// Act: two logical failures reach the breaker threshold
	_, err1 := fx.client.Get(ctx, api.PathMarketItems, nil, api.RequestOptions{})
	_, err2 := fx.client.Get(ctx, api.PathMarketItems, nil, api.RequestOptions{})
	callsBeforeOpen := calls.Load()
	_, err3 := fx.client.Get(ctx, api.PathMarketItems, nil, api.RequestOptions{})

	// Assert
	assert.ErrorIs(t, err1, api.ErrRetriesExhausted)
	assert.ErrorIs(t, err1, api.ErrUpstreamServer)
	assert.True(t, api.IsDegraded(err2))
	assert.Equal(t, int32(8), callsBeforeOpen, "4 attempts per logical request")

	assert.ErrorIs(t, err3, api.ErrCircuitOpen)
	assert.Equal(t, callsBeforeOpen, calls.Load(), "open circuit is not retried and never hits the network")
	assert.True(t, fx.client.Health().Degraded())
	assert.Equal(t, int64(1), fx.client.Health().Counters.CircuitRejections)
}

func TestClient_BackoffSequenceIsMonotonic(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := fx.client.Get(context.Background(), api.PathMarketItems, nil, api.RequestOptions{})
	require.Error(t, err)

	sleeps := fx.clock.Sleeps()
	require.Len(t, sleeps, 3)
	policy := fastConfig("").Retry
	for i, d := range sleeps {
		assert.GreaterOrEqual(t, d, policy.BaseBackoff(i))
		assert.LessOrEqual(t, d, policy.BaseBackoff(i)+time.Duration(float64(policy.BaseBackoff(i))*policy.Jitter))
	}
}

func TestClient_MaxElapsedBoundsRetries(t *testing.T) {
	var calls atomic.Int32
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, func(cfg *api.Config) {
		cfg.Retry.MaxAttempts = 10
		cfg.Retry.MaxElapsed = 250 * time.Millisecond
	})

	_, err := fx.client.Get(context.Background(), api.PathMarketItems, nil, api.RequestOptions{})

	var exhausted *api.RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.LessOrEqual(t, exhausted.Elapsed, 250*time.Millisecond)
	assert.Less(t, calls.Load(), int32(10))
}

func TestClient_CancellationStopsRetries(t *testing.T) {
	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		cancel()
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	// Act
	_, err := fx.client.Get(ctx, api.PathMarketItems, nil, api.RequestOptions{})

	// Assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, api.ErrRetriesExhausted))
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, api.CircuitClosed, fx.client.Breakers().Get(api.ClassMarketRead).GetState())
}

func TestClient_CachesGetsAndInvalidatesOnWrite(t *testing.T) {
	// Arrange
	var reads atomic.Int32
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			reads.Add(1)
		}
		fmt.Fprint(w, `{}`)
	})
	ctx := context.Background()
	opts := api.RequestOptions{Cacheable: true, TTL: time.Minute}

	// Act
	_, err := fx.client.Get(ctx, api.PathUserOffers, url.Values{"GameID": {"a8db"}}, opts)
	require.NoError(t, err)
	_, err = fx.client.Get(ctx, api.PathUserOffers, url.Values{"GameID": {"a8db"}}, opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), reads.Load(), "second read served from cache")

	_, err = fx.client.Do(ctx, http.MethodPost, api.PathUserOffers+"/create", nil, []byte(`{}`),
		api.RequestOptions{Class: api.ClassOrderWrite})
	require.NoError(t, err)
	_, err = fx.client.Get(ctx, api.PathUserOffers, url.Values{"GameID": {"a8db"}}, opts)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int32(2), reads.Load(), "write must invalidate the overlapping read")
}

func TestClient_WriteDuringCachedReadKeepsStaleBodyOut(t *testing.T) {
	// Arrange
	var version atomic.Int32
	var reads atomic.Int32
	readStarted := make(chan struct{}, 1)
	releaseRead := make(chan struct{})
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			version.Add(1)
			fmt.Fprint(w, `{}`)
			return
		}
		v := version.Load()
		if reads.Add(1) == 1 {
			readStarted <- struct{}{}
			<-releaseRead
		}
		fmt.Fprintf(w, `{"v":%d}`, v)
	})
	ctx := context.Background()
	opts := api.RequestOptions{Cacheable: true, TTL: time.Minute}

	firstRead := make(chan string, 1)
	go func() {
		body, err := fx.client.Get(ctx, "/x", nil, opts)
		assert.NoError(t, err)
		firstRead <- string(body)
	}()
	<-readStarted

	// Act
	_, err := fx.client.Do(ctx, http.MethodPost, "/x", nil, []byte(`{}`), api.RequestOptions{Class: api.ClassOrderWrite})
	require.NoError(t, err)
	close(releaseRead)
	assert.Equal(t, `{"v":0}`, <-firstRead)

	body, err := fx.client.Get(ctx, "/x", nil, opts)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(body))
	assert.Equal(t, int32(2), reads.Load())
}

func TestClient_RejectsMalformedRequests(t *testing.T) {
	fx := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := fx.client.Get(context.Background(), "no-slash", nil, api.RequestOptions{})

	assert.ErrorIs(t, err, api.ErrValidation)
}

func TestClient_MissingCredentialsIsAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer server.Close()
	client, err := api.NewClient(fastConfig(server.URL), credentials.NewStaticProvider("", ""))
	require.NoError(t, err)

	_, err = client.Get(context.Background(), api.PathMarketItems, nil, api.RequestOptions{})

	assert.ErrorIs(t, err, api.ErrAuthentication)
	assert.ErrorIs(t, err, credentials.ErrMissingCredentials)
}
