package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/andrescamacho/marketscan-go/internal/adapters/credentials"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

const (
	defaultBaseURL   = "https://api.dmarket.com"
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "marketscan-go/1.0"
	maxErrorBody     = 512
)

// NoExpiry as RequestOptions.TTL caches a response until evicted
const NoExpiry time.Duration = -1

// Config configures the marketplace client
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	UserAgent  string
	Retry      RetryPolicy
	RateLimits map[EndpointClass]BucketConfig
	Penalty    PenaltyConfig
	Breaker    BreakerConfig
	Cache      CacheConfig
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		BaseURL:    defaultBaseURL,
		Timeout:    defaultTimeout,
		UserAgent:  defaultUserAgent,
		Retry:      DefaultRetryPolicy(),
		RateLimits: DefaultBucketConfigs(),
		Penalty:    DefaultPenaltyConfig(),
		Breaker:    DefaultBreakerConfig(),
		Cache:      DefaultCacheConfig(),
	}
}

// RequestOptions control how a single call is limited, signed and cached
type RequestOptions struct {
	// Class selects the rate-limit bucket and breaker; empty means market-read
	Class EndpointClass
	// Cacheable GETs go through the response cache
	Cacheable bool
	// TTL overrides the cache's default; NoExpiry keeps the entry until evicted
	TTL time.Duration
}

// Client is the signed marketplace API client.
//
// Every request passes, in order: circuit breaker admission, rate-limit token,
// signing, HTTP attempt, classification, and the retry loop. Safe for concurrent use.
type Client struct {
	httpClient  *http.Client
	baseURL     *url.URL
	userAgent   string
	credentials credentials.Provider
	signer      *Signer
	limiter     *RateLimiter
	breakers    *BreakerSet
	cache       *ResponseCache
	retry       RetryPolicy
	timeout     time.Duration
	pagination  map[string]PaginationSpec
	clock       shared.Clock
	logger      *zap.Logger
	metrics     MetricsRecorder
	random      func() float64

	requests          atomic.Int64
	retries           atomic.Int64
	rateLimited       atomic.Int64
	circuitRejections atomic.Int64
	authFailures      atomic.Int64
	failures          atomic.Int64
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithClock injects the clock used for signing timestamps, backoff sleeps and breaker timing
func WithClock(clock shared.Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithLogger sets the client's logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the telemetry sink
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRandom replaces the jitter source; fn must return values in [0, 1)
func WithRandom(fn func() float64) Option {
	return func(c *Client) { c.random = fn }
}

// WithPagination overrides or adds the paging description for one path
func WithPagination(path string, spec PaginationSpec) Option {
	return func(c *Client) { c.pagination[path] = spec }
}

// NewClient creates a marketplace client. creds is consulted on every signed request.
func NewClient(cfg Config, creds credentials.Provider, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if creds == nil {
		return nil, credentials.ErrMissingCredentials
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	c := &Client{
		baseURL:     base,
		userAgent:   cfg.UserAgent,
		credentials: creds,
		retry:       cfg.Retry.normalized(),
		timeout:     cfg.Timeout,
		pagination:  DefaultPagination(),
		random:      rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.clock == nil {
		c.clock = shared.NewRealClock()
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.metrics == nil {
		c.metrics = noopMetrics{}
	}
	if c.httpClient == nil {
		// per-attempt deadlines come from ctx, not the http.Client
		c.httpClient = &http.Client{}
	}

	c.signer = NewSigner(c.clock)
	c.limiter = NewRateLimiter(cfg.RateLimits, cfg.Penalty)
	c.breakers = NewBreakerSet(cfg.Breaker, c.clock, c.onCircuitChange)
	c.cache, err = NewResponseCache(cfg.Cache, c.clock)
	if err != nil {
		return nil, fmt.Errorf("failed to create response cache: %w", err)
	}
	c.cache.OnLookup(c.metrics.RecordCacheLookup)
	for _, class := range KnownClasses() {
		c.metrics.RecordCircuitState(string(class), int(CircuitClosed))
	}

	return c, nil
}

func (c *Client) onCircuitChange(name string, from, to CircuitState) {
	c.metrics.RecordCircuitState(name, int(to))
	fields := []zap.Field{zap.String("class", name), zap.Stringer("from", from), zap.Stringer("to", to)}
	if to == CircuitOpen {
		c.logger.Warn("circuit breaker opened", fields...)
		return
	}
	c.logger.Info("circuit breaker state changed", fields...)
}

func (c *Client) paginationFor(path string) PaginationSpec {
	if spec, ok := c.pagination[path]; ok {
		return spec
	}
	return defaultPaginationSpec()
}

// Limiter exposes the rate limiter for health reporting and tests
func (c *Client) Limiter() *RateLimiter { return c.limiter }

// Breakers exposes the per-class circuit breakers
func (c *Client) Breakers() *BreakerSet { return c.breakers }

// Cache exposes the response cache
func (c *Client) Cache() *ResponseCache { return c.cache }

// Get performs a GET and returns the raw response body
func (c *Client) Get(ctx context.Context, path string, query url.Values, opts RequestOptions) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil, opts)
}

// Do performs one logical request (possibly several attempts).
//
// Cacheable GETs are served from and stored into the response cache, with concurrent
// identical requests sharing one upstream call. Non-GET requests invalidate every
// cached read whose path overlaps the written path.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body []byte, opts RequestOptions) ([]byte, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		return nil, validationError(method, path, "method is required")
	}
	if !strings.HasPrefix(path, "/") {
		return nil, validationError(method, path, "path must start with /")
	}
	if opts.Class == "" {
		opts.Class = ClassMarketRead
	}

	if method != http.MethodGet {
		defer c.invalidateOverlapping(path)
		return c.execute(ctx, method, path, query, body, opts.Class)
	}

	if !opts.Cacheable {
		return c.execute(ctx, method, path, query, nil, opts.Class)
	}

	ttl := opts.TTL
	switch {
	case ttl == NoExpiry:
		ttl = 0
	case ttl <= 0:
		ttl = c.cache.DefaultTTL()
	}
	return c.cache.GetOrFetch(ctx, cacheKey(method, path, query), ttl, func(fetchCtx context.Context) ([]byte, error) {
		return c.execute(fetchCtx, method, path, query, nil, opts.Class)
	})
}

// cacheKey is the canonical request line; url.Values.Encode sorts by key
func cacheKey(method, path string, query url.Values) string {
	if len(query) == 0 {
		return method + " " + path
	}
	return method + " " + path + "?" + query.Encode()
}

// invalidateOverlapping drops cached reads of the written path, its sub-paths and its parents
func (c *Client) invalidateOverlapping(path string) {
	written := strings.TrimRight(path, "/")
	removed := c.cache.InvalidateFunc(func(key string) bool {
		rest, ok := strings.CutPrefix(key, http.MethodGet+" ")
		if !ok {
			return false
		}
		read, _, _ := strings.Cut(rest, "?")
		read = strings.TrimRight(read, "/")
		return pathWithin(read, written) || pathWithin(written, read)
	})
	if removed > 0 {
		c.logger.Debug("invalidated cached reads", zap.String("path", path), zap.Int("entries", removed))
	}
}

// pathWithin reports whether p equals base or sits below it on a segment boundary
func pathWithin(p, base string) bool {
	return p == base || strings.HasPrefix(p, base+"/")
}

// execute runs the breaker-guarded retry loop
func (c *Client) execute(ctx context.Context, method, path string, query url.Values, body []byte, class EndpointClass) ([]byte, error) {
	c.requests.Add(1)
	breaker := c.breakers.Get(class)

	probe, err := breaker.Allow()
	if err != nil {
		c.circuitRejections.Add(1)
		c.metrics.RecordCircuitRejection(string(class))
		return nil, &APIError{Kind: KindCircuitOpen, Class: class, Method: method, Path: path, Err: err}
	}

	start := c.clock.Now()
	var lastErr error
	attempts := 0

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			breaker.ReleaseProbe(probe)
			return nil, err
		}

		waitStart := time.Now()
		if err := c.limiter.Acquire(ctx, class); err != nil {
			breaker.ReleaseProbe(probe)
			return nil, err
		}
		c.metrics.RecordRateLimitWait(string(class), time.Since(waitStart).Seconds())

		attempts++
		respBody, err := c.attempt(ctx, method, path, query, body, class)
		if err == nil {
			breaker.RecordSuccess(probe)
			c.limiter.Recover(class)
			return respBody, nil
		}

		if ctx.Err() != nil {
			breaker.ReleaseProbe(probe)
			return nil, ctx.Err()
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Kind.Retryable() {
			// the upstream answered; a rejected request says nothing about its health
			if KindOf(err) == KindAuthentication {
				c.authFailures.Add(1)
			}
			breaker.RecordSuccess(probe)
			c.failures.Add(1)
			return nil, err
		}

		lastErr = err
		if apiErr.Kind == KindRateLimitExceeded {
			c.rateLimited.Add(1)
			c.metrics.RecordRateLimited(string(class))
			c.limiter.Penalize(class)
		}

		if attempt == c.retry.MaxAttempts-1 {
			break
		}

		delay := c.retry.Backoff(attempt, c.random)
		if apiErr.RetryAfter > delay {
			delay = min(apiErr.RetryAfter, c.retry.MaxRetryAfter)
		}
		elapsed := c.clock.Now().Sub(start)
		if c.retry.MaxElapsed > 0 && elapsed+delay > c.retry.MaxElapsed {
			c.logger.Debug("retry budget exhausted",
				zap.String("method", method),
				zap.String("path", path),
				zap.Duration("elapsed", elapsed),
				zap.Duration("next_delay", delay),
			)
			break
		}

		c.retries.Add(1)
		c.metrics.RecordAPIRetry(method, string(class), apiErr.Kind.String())
		c.logger.Debug("retrying request",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("class", string(class)),
			zap.Int("attempt", attempt+1),
			zap.Stringer("kind", apiErr.Kind),
			zap.Duration("delay", delay),
		)

		if err := c.clock.Sleep(ctx, delay); err != nil {
			breaker.ReleaseProbe(probe)
			return nil, err
		}
	}

	breaker.RecordFailure(probe)
	c.failures.Add(1)
	exhausted := &RetriesExhaustedError{Attempts: attempts, Elapsed: c.clock.Now().Sub(start), Last: lastErr}
	c.logger.Warn("request failed after retries",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("class", string(class)),
		zap.Int("attempts", attempts),
		zap.Error(lastErr),
	)
	return nil, exhausted
}

// attempt performs exactly one HTTP exchange and classifies the outcome
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, body []byte, class EndpointClass) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, u.String(), reader)
	if err != nil {
		return nil, validationError(method, path, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if class != ClassPublicRead {
		keys, err := c.credentials.Credentials(ctx)
		if err != nil {
			return nil, &APIError{Kind: KindAuthentication, Class: class, Method: method, Path: path, Err: err}
		}
		c.signer.Sign(req, body, keys)
	}

	sent := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{Kind: KindTransientNetwork, Class: class, Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.metrics.RecordAPIRequest(method, string(class), resp.StatusCode, time.Since(sent).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{Kind: KindTransientNetwork, Class: class, Method: method, Path: path, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	apiErr := &APIError{
		Kind:       classifyStatus(resp.StatusCode),
		Class:      class,
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       truncate(string(respBody), maxErrorBody),
	}
	if apiErr.Kind == KindRateLimitExceeded {
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.clock.Now())
	}
	return nil, apiErr
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimitExceeded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthentication
	case status == http.StatusRequestTimeout:
		return KindTransientNetwork
	case status >= 500:
		return KindUpstreamServer
	case status >= 400:
		return KindValidation
	default:
		return KindUnknown
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
