package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

const (
	defaultAggregateBatchSize = 50
	defaultAggregateQuoteTTL  = 30 * time.Second
	aggregateMemoEntries      = 4096
)

// AggregatedPriceFetcher is the slice of the API client this source needs
type AggregatedPriceFetcher interface {
	AggregatedPrices(ctx context.Context, gameID string, titles []string) ([]api.AggregatedPrice, error)
}

// AggregateSource estimates the sell price from the marketplace's own best buy order.
// An item bought from a listing can be sold instantly into that order.
//
// Prefetch asks for many titles per request and memoizes the answers, including
// titles the endpoint knows nothing about, so per-item lookups inside one scan
// stay off the public read bucket.
type AggregateSource struct {
	fetcher   AggregatedPriceFetcher
	batchSize int
	ttl       time.Duration
	clock     shared.Clock
	memo      *lru.Cache
}

type aggregateQuote struct {
	price    int64
	ok       bool
	storedAt time.Time
}

// AggregateOption configures an AggregateSource
type AggregateOption func(*AggregateSource)

// WithBatchSize caps the titles sent in one aggregated prices request
func WithBatchSize(n int) AggregateOption {
	return func(a *AggregateSource) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithQuoteTTL sets how long a fetched best order is reused
func WithQuoteTTL(ttl time.Duration) AggregateOption {
	return func(a *AggregateSource) { a.ttl = ttl }
}

// WithAggregateClock injects the clock used for quote expiry
func WithAggregateClock(clock shared.Clock) AggregateOption {
	return func(a *AggregateSource) { a.clock = clock }
}

// NewAggregateSource creates a source backed by the aggregated prices endpoint
func NewAggregateSource(fetcher AggregatedPriceFetcher, opts ...AggregateOption) *AggregateSource {
	a := &AggregateSource{
		fetcher:   fetcher,
		batchSize: defaultAggregateBatchSize,
		ttl:       defaultAggregateQuoteTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.clock == nil {
		a.clock = shared.NewRealClock()
	}
	// only fails for a non-positive size
	a.memo, _ = lru.New(aggregateMemoEntries)
	return a
}

func (a *AggregateSource) Name() string { return "aggregated-orders" }

// LookupSellEstimate returns the best buy order for title, ok=false without orders
func (a *AggregateSource) LookupSellEstimate(ctx context.Context, title string, game market.Game) (int64, bool, error) {
	gameID, err := game.WireID()
	if err != nil {
		return 0, false, err
	}
	if q, fresh := a.cached(gameID, title); fresh {
		return q.price, q.ok, nil
	}
	if err := a.fetch(ctx, gameID, []string{title}); err != nil {
		return 0, false, err
	}
	q, _ := a.cached(gameID, title)
	return q.price, q.ok, nil
}

// Prefetch loads the best orders for every title not already fresh, batchSize titles per request
func (a *AggregateSource) Prefetch(ctx context.Context, game market.Game, titles []string) error {
	gameID, err := game.WireID()
	if err != nil {
		return err
	}
	missing := make([]string, 0, len(titles))
	for _, title := range titles {
		if _, fresh := a.cached(gameID, title); !fresh {
			missing = append(missing, title)
		}
	}

	var errs []error
	for start := 0; start < len(missing); start += a.batchSize {
		end := min(start+a.batchSize, len(missing))
		if err := a.fetch(ctx, gameID, missing[start:end]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, fmt.Errorf("titles %d-%d: %w", start, end-1, err))
		}
	}
	return errors.Join(errs...)
}

func (a *AggregateSource) fetch(ctx context.Context, gameID string, titles []string) error {
	prices, err := a.fetcher.AggregatedPrices(ctx, gameID, titles)
	if err != nil {
		return err
	}
	now := a.clock.Now()
	found := make(map[string]aggregateQuote, len(prices))
	for _, p := range prices {
		if p.OrderCount > 0 && p.OrderBestPrice > 0 {
			found[p.Title] = aggregateQuote{price: p.OrderBestPrice, ok: true, storedAt: now}
		}
	}
	for _, title := range titles {
		q, ok := found[title]
		if !ok {
			q = aggregateQuote{storedAt: now}
		}
		a.memo.Add(memoKey(gameID, title), q)
	}
	return nil
}

func (a *AggregateSource) cached(gameID, title string) (aggregateQuote, bool) {
	v, ok := a.memo.Get(memoKey(gameID, title))
	if !ok {
		return aggregateQuote{}, false
	}
	q := v.(aggregateQuote)
	if a.clock.Now().Sub(q.storedAt) >= a.ttl {
		return aggregateQuote{}, false
	}
	return q, true
}

func memoKey(gameID, title string) string { return gameID + "\x00" + title }
