package steps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/cucumber/godog"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
	"github.com/andrescamacho/marketscan-go/internal/adapters/credentials"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

// upstream is a scripted marketplace: a queue of one-shot statuses, then a steady status
type upstream struct {
	mu       sync.Mutex
	queued   []int
	steady   int
	onlyPath string
	requests int
}

func (u *upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.requests++
	status := http.StatusOK
	switch {
	case len(u.queued) > 0:
		status, u.queued = u.queued[0], u.queued[1:]
	case u.onlyPath == "" || u.onlyPath == r.URL.Path:
		status = u.steady
	}
	u.mu.Unlock()

	if status == http.StatusOK {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"objects":[],"cursor":""}`))
		return
	}
	http.Error(w, `{"error":"scripted"}`, status)
}

type resilientClientContext struct {
	upstream  *upstream
	server    *httptest.Server
	clock     *shared.MockClock
	threshold int
	attempts  int
	client    *api.Client
	lastErr   error
}

func (rc *resilientClientContext) reset() {
	if rc.server != nil {
		rc.server.Close()
	}
	rc.upstream = &upstream{steady: http.StatusOK}
	rc.server = httptest.NewServer(rc.upstream)
	rc.clock = shared.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	rc.threshold = 5
	rc.attempts = 3
	rc.client = nil
	rc.lastErr = nil
}

// InitializeResilientClientScenario registers the API client retry and breaker steps
func InitializeResilientClientScenario(sc *godog.ScenarioContext) {
	rc := &resilientClientContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		rc.reset()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		if rc.server != nil {
			rc.server.Close()
			rc.server = nil
		}
		return ctx, nil
	})

	sc.Step(`^a marketplace client with a breaker threshold of (\d+) failures$`, rc.aClientWithBreakerThreshold)
	sc.Step(`^retries limited to (\d+) attempts$`, rc.retriesLimitedTo)
	sc.Step(`^the marketplace answers (\d+) once then succeeds$`, rc.theMarketplaceAnswersOnce)
	sc.Step(`^the marketplace always answers (\d+)$`, rc.theMarketplaceAlwaysAnswers)
	sc.Step(`^the marketplace always answers (\d+) on the listing endpoint$`, rc.theMarketplaceAlwaysAnswersOnListing)
	sc.Step(`^the marketplace recovers$`, rc.theMarketplaceRecovers)
	sc.Step(`^(\d+) seconds pass$`, rc.secondsPass)
	sc.Step(`^I request the market listing$`, rc.iRequestTheMarketListing)
	sc.Step(`^I request the market listing (\d+) times$`, rc.iRequestTheMarketListingTimes)
	sc.Step(`^I request the public price aggregate$`, rc.iRequestThePublicPriceAggregate)
	sc.Step(`^the request should succeed$`, rc.theRequestShouldSucceed)
	sc.Step(`^the request should fail as "([^"]*)"$`, rc.theRequestShouldFailAs)
	sc.Step(`^the request should fail with retries exhausted$`, rc.theRequestShouldFailWithRetriesExhausted)
	sc.Step(`^the marketplace should have received (\d+) requests?$`, rc.theMarketplaceShouldHaveReceived)
	sc.Step(`^the client should report (\d+) retry$`, rc.theClientShouldReportRetries)
	sc.Step(`^the "([^"]*)" circuit should be "([^"]*)"$`, rc.theCircuitShouldBe)
}

func (rc *resilientClientContext) aClientWithBreakerThreshold(n int) error {
	rc.threshold = n
	return nil
}

func (rc *resilientClientContext) retriesLimitedTo(n int) error {
	rc.attempts = n
	return nil
}

func (rc *resilientClientContext) ensureClient() (*api.Client, error) {
	if rc.client != nil {
		return rc.client, nil
	}
	cfg := api.DefaultConfig()
	cfg.BaseURL = rc.server.URL
	cfg.Timeout = 2 * time.Second
	cfg.RateLimits = map[api.EndpointClass]api.BucketConfig{
		api.ClassMarketRead: {RequestsPerSecond: 1000, Burst: 1000},
		api.ClassPublicRead: {RequestsPerSecond: 1000, Burst: 1000},
		api.ClassOrderWrite: {RequestsPerSecond: 1000, Burst: 1000},
	}
	cfg.Retry = api.RetryPolicy{
		MaxAttempts: rc.attempts,
		BaseDelay:   10 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    100 * time.Millisecond,
		MaxElapsed:  time.Minute,
	}
	cfg.Breaker = api.BreakerConfig{FailureThreshold: rc.threshold, Window: time.Minute, OpenDuration: 30 * time.Second}

	client, err := api.NewClient(cfg, credentials.NewStaticProvider("bdd-public", "bdd-secret"),
		api.WithClock(rc.clock),
		api.WithRandom(func() float64 { return 0.5 }),
	)
	if err != nil {
		return nil, err
	}
	rc.client = client
	return client, nil
}

func (rc *resilientClientContext) theMarketplaceAnswersOnce(status int) error {
	rc.upstream.mu.Lock()
	defer rc.upstream.mu.Unlock()
	rc.upstream.queued = append(rc.upstream.queued, status)
	return nil
}

func (rc *resilientClientContext) theMarketplaceAlwaysAnswers(status int) error {
	rc.upstream.mu.Lock()
	defer rc.upstream.mu.Unlock()
	rc.upstream.steady = status
	return nil
}

func (rc *resilientClientContext) theMarketplaceAlwaysAnswersOnListing(status int) error {
	rc.upstream.mu.Lock()
	defer rc.upstream.mu.Unlock()
	rc.upstream.steady = status
	rc.upstream.onlyPath = api.PathMarketItems
	return nil
}

func (rc *resilientClientContext) theMarketplaceRecovers() error {
	return rc.theMarketplaceAlwaysAnswers(http.StatusOK)
}

func (rc *resilientClientContext) secondsPass(n int) error {
	rc.clock.Advance(time.Duration(n) * time.Second)
	return nil
}

func (rc *resilientClientContext) get(path string, class api.EndpointClass) error {
	client, err := rc.ensureClient()
	if err != nil {
		return err
	}
	_, rc.lastErr = client.Get(context.Background(), path, nil, api.RequestOptions{Class: class})
	return nil
}

func (rc *resilientClientContext) iRequestTheMarketListing() error {
	return rc.get(api.PathMarketItems, api.ClassMarketRead)
}

func (rc *resilientClientContext) iRequestTheMarketListingTimes(n int) error {
	for i := 0; i < n; i++ {
		if err := rc.iRequestTheMarketListing(); err != nil {
			return err
		}
	}
	return nil
}

func (rc *resilientClientContext) iRequestThePublicPriceAggregate() error {
	return rc.get(api.PathAggregatedPrices, api.ClassPublicRead)
}

func (rc *resilientClientContext) theRequestShouldSucceed() error {
	if rc.lastErr != nil {
		return fmt.Errorf("expected success, got %v", rc.lastErr)
	}
	return nil
}

func (rc *resilientClientContext) theRequestShouldFailAs(kind string) error {
	if rc.lastErr == nil {
		return errors.New("expected an error, request succeeded")
	}
	if got := api.KindOf(rc.lastErr).String(); got != kind {
		return fmt.Errorf("expected error kind %q, got %q (%v)", kind, got, rc.lastErr)
	}
	return nil
}

func (rc *resilientClientContext) theRequestShouldFailWithRetriesExhausted() error {
	if !errors.Is(rc.lastErr, api.ErrRetriesExhausted) {
		return fmt.Errorf("expected retries exhausted, got %v", rc.lastErr)
	}
	return nil
}

func (rc *resilientClientContext) theMarketplaceShouldHaveReceived(n int) error {
	rc.upstream.mu.Lock()
	defer rc.upstream.mu.Unlock()
	if rc.upstream.requests != n {
		return fmt.Errorf("expected %d upstream requests, got %d", n, rc.upstream.requests)
	}
	return nil
}

func (rc *resilientClientContext) theClientShouldReportRetries(n int) error {
	if got := rc.client.Health().Counters.Retries; got != int64(n) {
		return fmt.Errorf("expected %d retries, got %d", n, got)
	}
	return nil
}

func (rc *resilientClientContext) theCircuitShouldBe(class, state string) error {
	client, err := rc.ensureClient()
	if err != nil {
		return err
	}
	if got := client.Breakers().Get(api.EndpointClass(class)).GetState().String(); got != state {
		return fmt.Errorf("expected %s circuit %q, got %q", class, state, got)
	}
	return nil
}
