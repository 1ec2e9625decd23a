// Package scanning runs arbitrage scans over the marketplace.
//
// A scan is a pure function of its ScanRequest plus live market state: list items through
// the level's server-side filters, re-check them with the client predicate, price the
// survivors against an external sell estimate, keep what clears the level's margin, rank.
package scanning

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andrescamacho/marketscan-go/internal/application/common"
	"github.com/andrescamacho/marketscan-go/internal/domain/filtering"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
	"github.com/andrescamacho/marketscan-go/internal/domain/trading"
	"github.com/andrescamacho/marketscan-go/pkg/utils"
)

// Config bounds scanner fan-out and shapes the adaptive interval
type Config struct {
	// Concurrency caps simultaneous scans in ScanMany
	Concurrency int
	// PricingConcurrency caps simultaneous sell-estimate lookups within one scan
	PricingConcurrency int
	// MaxFetchItems caps listings pulled per scan; 0 means no cap
	MaxFetchItems int
	Interval      IntervalConfig
}

// DefaultConfig returns conservative defaults sized for the default rate limits
func DefaultConfig() Config {
	return Config{
		Concurrency:        4,
		PricingConcurrency: 8,
		MaxFetchItems:      1000,
		Interval:           DefaultIntervalConfig(),
	}
}

// Option customizes a Scanner
type Option func(*Scanner)

// WithClock injects the clock used for timestamps and durations
func WithClock(clock shared.Clock) Option {
	return func(s *Scanner) { s.clock = clock }
}

// WithLogger sets the scanner's fallback logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithMetrics sets the telemetry sink
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Scanner) { s.metrics = m }
}

// Scanner orchestrates listing, filtering, pricing and ranking.
// This is an application service that coordinates infrastructure (lister, price source)
// with domain logic (pipeline, analyzer). Safe for concurrent use.
type Scanner struct {
	lister     ItemLister
	prices     PriceSource
	pipeline   *filtering.Pipeline
	analyzer   *trading.ArbitrageAnalyzer
	volatility *VolatilityTracker
	cfg        Config
	clock      shared.Clock
	logger     *zap.Logger
	metrics    MetricsRecorder
}

// NewScanner creates a new scanner
func NewScanner(
	lister ItemLister,
	prices PriceSource,
	pipeline *filtering.Pipeline,
	analyzer *trading.ArbitrageAnalyzer,
	cfg Config,
	opts ...Option,
) *Scanner {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PricingConcurrency <= 0 {
		cfg.PricingConcurrency = def.PricingConcurrency
	}
	if cfg.MaxFetchItems < 0 {
		cfg.MaxFetchItems = 0
	}
	cfg.Interval = cfg.Interval.normalized()
	if pipeline == nil {
		pipeline = filtering.NewPipeline(nil)
	}

	s := &Scanner{
		lister:   lister,
		prices:   prices,
		pipeline: pipeline,
		analyzer: analyzer,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = shared.NewRealClock()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	s.volatility = NewVolatilityTracker(cfg.Interval.Window)
	return s
}

// Volatility exposes the rolling price windows used for the adaptive interval
func (s *Scanner) Volatility() *VolatilityTracker {
	return s.volatility
}

// Scan runs one request and returns opportunities best first, truncated to req.MaxItems.
//
// Per-item pricing failures skip the item. A listing failure fails the whole scan.
func (s *Scanner) Scan(ctx context.Context, req market.ScanRequest) ([]*trading.ArbitrageOpportunity, error) {
	res := s.scan(ctx, req)
	return res.Opportunities, res.Err
}

// ScanWithResult runs one request and returns the full result including stats
func (s *Scanner) ScanWithResult(ctx context.Context, req market.ScanRequest) ScanResult {
	return s.scan(ctx, req)
}

func (s *Scanner) scan(ctx context.Context, req market.ScanRequest) (res ScanResult) {
	started := s.clock.Now()
	res = ScanResult{
		ScanID:    utils.GenerateScanID(string(req.Game), string(req.Level)),
		Request:   req,
		StartedAt: started,
	}
	logger := common.LoggerFromContext(ctx, s.logger).With(
		zap.String("scan_id", res.ScanID),
		zap.String("game", string(req.Game)),
		zap.String("level", string(req.Level)),
	)

	defer func() {
		res.Duration = s.clock.Now().Sub(started)
		s.metrics.RecordScan(string(req.Game), string(req.Level), res.Outcome(), res.Duration.Seconds(), len(res.Opportunities))
	}()

	res = s.run(ctx, req, res, logger)
	switch res.Outcome() {
	case OutcomeSuccess:
		logger.Info("scan complete",
			zap.Int("fetched", res.Stats.ItemsFetched),
			zap.Int("matched", res.Stats.ItemsMatched),
			zap.Int("opportunities", len(res.Opportunities)),
		)
	case OutcomeCancelled:
		logger.Debug("scan cancelled", zap.Error(res.Err))
	default:
		logger.Warn("scan failed", zap.Bool("degraded", res.Degraded), zap.Error(res.Err))
	}
	return res
}

func (s *Scanner) run(ctx context.Context, req market.ScanRequest, res ScanResult, logger *zap.Logger) ScanResult {
	if err := req.Validate(); err != nil {
		return newFailedResult(res, err)
	}
	if s.lister == nil || s.prices == nil || s.analyzer == nil {
		return newFailedResult(res, errors.New("scanner is missing a collaborator"))
	}

	filters, err := s.pipeline.BuildRequestFilters(req)
	if err != nil {
		return newFailedResult(res, err)
	}
	predicate, err := s.pipeline.RequestPredicate(req)
	if err != nil {
		return newFailedResult(res, err)
	}
	minProfit, err := s.pipeline.MinProfitPercent(req.Game, req.Level)
	if err != nil {
		return newFailedResult(res, err)
	}

	candidates, err := s.collect(ctx, req, filters, predicate, &res.Stats, logger)
	if err != nil {
		return newFailedResult(res, fmt.Errorf("listing %s: %w", req, err))
	}
	s.metrics.RecordItemsScanned(string(req.Game), string(req.Level), res.Stats.ItemsFetched, res.Stats.ItemsMatched)
	s.observeVolatility(req, candidates)

	opps, err := s.price(ctx, req, candidates, minProfit, &res.Stats, logger)
	if err != nil {
		return newFailedResult(res, err)
	}

	res.Opportunities = trading.TopN(opps, req.MaxItems)
	return res
}

// collect drains the listing and applies the client-side predicate
func (s *Scanner) collect(
	ctx context.Context,
	req market.ScanRequest,
	filters filtering.ServerFilters,
	predicate filtering.Predicate,
	stats *ScanStats,
	logger *zap.Logger,
) ([]*market.Item, error) {
	var candidates []*market.Item
	for item, err := range s.lister.ListMarketItems(ctx, filters, s.cfg.MaxFetchItems, req.UseCursor) {
		if err != nil {
			if errors.Is(err, market.ErrMalformedItem) {
				stats.MalformedItems++
				logger.Debug("skipping malformed item", zap.Error(err))
				continue
			}
			return nil, err
		}
		stats.ItemsFetched++
		if predicate(item) {
			candidates = append(candidates, item)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stats.ItemsMatched = len(candidates)
	return candidates, nil
}

// price looks up sell estimates with bounded concurrency.
// Output keeps candidate order so ranking stays deterministic.
func (s *Scanner) price(
	ctx context.Context,
	req market.ScanRequest,
	candidates []*market.Item,
	minProfit float64,
	stats *ScanStats,
	logger *zap.Logger,
) ([]*trading.ArbitrageOpportunity, error) {
	results := make([]*trading.ArbitrageOpportunity, len(candidates))
	s.warmPrices(ctx, req.Game, candidates, logger)

	var mu sync.Mutex
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	// errgroup without a derived context: one item's failure never cancels its siblings
	var g errgroup.Group
	g.SetLimit(s.cfg.PricingConcurrency)

	for i, item := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			estimate, ok, err := s.lookup(ctx, item.Title(), req.Game)
			switch {
			case err != nil:
				if ctx.Err() == nil {
					count(&stats.PricingFailures)
					s.metrics.RecordPricingFailure(s.prices.Name())
					logger.Debug("pricing lookup failed, skipping item", zap.String("item_id", item.ID()), zap.Error(err))
				}
				return nil
			case !ok || estimate.PriceMinorUnits <= 0:
				count(&stats.PriceUnavailable)
				return nil
			}

			opp, err := s.analyzer.AnalyzeQuote(trading.NewQuote(item, estimate.PriceMinorUnits, estimate.Source), minProfit, s.clock.Now())
			if err != nil {
				count(&stats.BelowThreshold)
				return nil
			}
			results[i] = opp
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opps := make([]*trading.ArbitrageOpportunity, 0, len(results))
	for _, opp := range results {
		if opp != nil {
			opps = append(opps, opp)
		}
	}
	return opps, nil
}

// warmPrices hands every distinct candidate title to a batching source in one go
func (s *Scanner) warmPrices(ctx context.Context, game market.Game, candidates []*market.Item, logger *zap.Logger) {
	warmer, ok := s.prices.(PriceWarmer)
	if !ok || len(candidates) == 0 {
		return
	}
	titles := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, item := range candidates {
		if !seen[item.Title()] {
			seen[item.Title()] = true
			titles = append(titles, item.Title())
		}
	}
	if err := warmer.Prefetch(ctx, game, titles); err != nil && ctx.Err() == nil {
		logger.Debug("price prefetch failed, looking up titles one by one",
			zap.Int("titles", len(titles)), zap.Error(err))
	}
}

func (s *Scanner) lookup(ctx context.Context, title string, game market.Game) (Estimate, bool, error) {
	if attributed, ok := s.prices.(AttributedPriceSource); ok {
		return attributed.LookupAttributed(ctx, title, game)
	}
	price, ok, err := s.prices.LookupSellEstimate(ctx, title, game)
	return Estimate{PriceMinorUnits: price, Source: s.prices.Name()}, ok, err
}

func (s *Scanner) observeVolatility(req market.ScanRequest, items []*market.Item) {
	if len(items) == 0 {
		return
	}
	prices := make([]int64, len(items))
	for i, it := range items {
		prices[i] = it.PriceMinorUnits()
	}
	key := KeyOf(req)
	s.volatility.Observe(key, float64(utils.Median(prices)))
	if cv, ok := s.volatility.Score(key); ok {
		s.metrics.RecordVolatility(string(req.Game), string(req.Level), cv)
	}
}

// ScanMany runs every distinct request with at most Config.Concurrency scans in flight.
//
// Failures are isolated: each request's result or error is reported independently and
// one failing request never cancels the others. Cancelling ctx stops them all.
func (s *Scanner) ScanMany(ctx context.Context, requests []market.ScanRequest) map[market.ScanRequest]ScanResult {
	results := make(map[market.ScanRequest]ScanResult, len(requests))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	seen := make(map[market.ScanRequest]bool, len(requests))
	for _, req := range requests {
		if seen[req] {
			continue
		}
		seen[req] = true

		g.Go(func() error {
			res := s.scan(ctx, req)
			mu.Lock()
			results[req] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// NextInterval returns the wait before the next cycle over requests.
// The most volatile (game, level) window among them decides.
func (s *Scanner) NextInterval(requests []market.ScanRequest) time.Duration {
	keys := make([]WindowKey, 0, len(requests))
	for _, req := range requests {
		if k := KeyOf(req); !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	d := s.cfg.Interval.Next(s.volatility, keys)
	s.metrics.RecordNextInterval(d.Seconds())
	return d
}
