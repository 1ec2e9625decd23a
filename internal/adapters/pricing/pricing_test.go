package pricing_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
	"github.com/andrescamacho/marketscan-go/internal/adapters/pricing"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
	"github.com/andrescamacho/marketscan-go/test/helpers"
)

func TestStaticSource_Lookup(t *testing.T) {
	src := pricing.NewStaticSource().
		Set(market.GameCSGO, "AK-47 | Redline", 1500).
		Set(market.GameCSGO, "Zero", 0)

	price, ok, err := src.LookupSellEstimate(context.Background(), "AK-47 | Redline", market.GameCSGO)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1500), price)

	_, ok, err = src.LookupSellEstimate(context.Background(), "AK-47 | Redline", market.GameDota2)
	require.NoError(t, err)
	assert.False(t, ok, "estimates are per game")

	_, ok, _ = src.LookupSellEstimate(context.Background(), "Zero", market.GameCSGO)
	assert.False(t, ok, "non-positive estimates are treated as unavailable")
}

func TestStaticSource_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := pricing.NewStaticSource().LookupSellEstimate(ctx, "x", market.GameCSGO)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestChain_FallsThroughToNextSource(t *testing.T) {
	// Arrange
	failing := helpers.NewMockPriceSource().FailTitle("Karambit")
	empty := pricing.NewStaticSource()
	last := pricing.NewStaticSource().Set(market.GameCSGO, "Karambit", 9000)
	chain := pricing.NewChain(failing, nil, empty, last)

	// Act
	price, ok, err := chain.LookupSellEstimate(context.Background(), "Karambit", market.GameCSGO)

	// Assert
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(9000), price)
	assert.Equal(t, "chain(mock,static,static)", chain.Name())
}

func TestChain_ReportsErrorsWhenNobodyAnswers(t *testing.T) {
	chain := pricing.NewChain(helpers.NewMockPriceSource().FailTitle("Karambit"), pricing.NewStaticSource())

	_, ok, err := chain.LookupSellEstimate(context.Background(), "Karambit", market.GameCSGO)

	assert.False(t, ok)
	assert.ErrorIs(t, err, helpers.ErrMockPricing)
}

func TestChain_NoEstimateIsNotAnError(t *testing.T) {
	chain := pricing.NewChain(pricing.NewStaticSource())

	_, ok, err := chain.LookupSellEstimate(context.Background(), "unknown", market.GameCSGO)

	assert.False(t, ok)
	assert.NoError(t, err)
}

type stubFetcher struct {
	prices []api.AggregatedPrice
	err    error
	gameID string
	titles []string
	calls  [][]string
}

func (s *stubFetcher) AggregatedPrices(_ context.Context, gameID string, titles []string) ([]api.AggregatedPrice, error) {
	s.gameID = gameID
	s.titles = titles
	s.calls = append(s.calls, append([]string(nil), titles...))
	return s.prices, s.err
}

func TestAggregateSource_UsesBestBuyOrder(t *testing.T) {
	// Arrange
	fetcher := &stubFetcher{prices: []api.AggregatedPrice{
		{Title: "Karambit", OrderBestPrice: 8200, OrderCount: 3, OfferBestPrice: 8600, OfferCount: 10},
	}}
	src := pricing.NewAggregateSource(fetcher)

	// Act
	price, ok, err := src.LookupSellEstimate(context.Background(), "Karambit", market.GameCSGO)

	// Assert
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(8200), price)
	assert.Equal(t, "a8db", fetcher.gameID)
	assert.Equal(t, []string{"Karambit"}, fetcher.titles)
}

func TestAggregateSource_NoOrders(t *testing.T) {
	src := pricing.NewAggregateSource(&stubFetcher{prices: []api.AggregatedPrice{
		{Title: "Karambit", OfferBestPrice: 8600, OfferCount: 10},
	}})

	_, ok, err := src.LookupSellEstimate(context.Background(), "Karambit", market.GameCSGO)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAggregateSource_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	src := pricing.NewAggregateSource(&stubFetcher{err: boom})

	_, _, err := src.LookupSellEstimate(context.Background(), "Karambit", market.GameCSGO)

	assert.ErrorIs(t, err, boom)
}

func TestChain_AttributesTheSourceThatAnswered(t *testing.T) {
	// Arrange
	empty := pricing.NewStaticSource()
	orders := pricing.NewAggregateSource(&stubFetcher{prices: []api.AggregatedPrice{
		{Title: "Karambit", OrderBestPrice: 8200, OrderCount: 1},
	}})
	chain := pricing.NewChain(empty, orders)

	// Act
	estimate, ok, err := chain.LookupAttributed(context.Background(), "Karambit", market.GameCSGO)

	// Assert
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(8200), estimate.PriceMinorUnits)
	assert.Equal(t, "aggregated-orders", estimate.Source)
}

func TestChain_NestedChainKeepsInnerAttribution(t *testing.T) {
	inner := pricing.NewChain(pricing.NewStaticSource(), pricing.NewStaticSource().Set(market.GameCSGO, "Karambit", 9000))
	outer := pricing.NewChain(helpers.NewMockPriceSource().FailTitle("Karambit"), inner)

	estimate, ok, err := outer.LookupAttributed(context.Background(), "Karambit", market.GameCSGO)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "static", estimate.Source)
}

func TestChain_PrefetchForwardsToBatchingSources(t *testing.T) {
	fetcher := &stubFetcher{}
	chain := pricing.NewChain(pricing.NewStaticSource(), pricing.NewAggregateSource(fetcher))

	err := chain.Prefetch(context.Background(), market.GameCSGO, []string{"a", "b"})

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}}, fetcher.calls)
}

func TestAggregateSource_PrefetchBatchesTitles(t *testing.T) {
	// Arrange
	titles := make([]string, 120)
	var prices []api.AggregatedPrice
	for i := range titles {
		titles[i] = fmt.Sprintf("item-%03d", i)
		if i%2 == 0 {
			prices = append(prices, api.AggregatedPrice{Title: titles[i], OrderBestPrice: int64(100 + i), OrderCount: 1})
		}
	}
	fetcher := &stubFetcher{prices: prices}
	src := pricing.NewAggregateSource(fetcher, pricing.WithBatchSize(50))

	// Act
	err := src.Prefetch(context.Background(), market.GameCSGO, titles)
	require.NoError(t, err)
	priced, pricedOK, pricedErr := src.LookupSellEstimate(context.Background(), "item-010", market.GameCSGO)
	_, unpricedOK, unpricedErr := src.LookupSellEstimate(context.Background(), "item-011", market.GameCSGO)

	// Assert
	require.Len(t, fetcher.calls, 3)
	assert.Len(t, fetcher.calls[0], 50)
	assert.Len(t, fetcher.calls[1], 50)
	assert.Len(t, fetcher.calls[2], 20)
	require.NoError(t, pricedErr)
	require.NoError(t, unpricedErr)
	assert.True(t, pricedOK)
	assert.Equal(t, int64(110), priced)
	assert.False(t, unpricedOK, "titles without orders are remembered as unavailable")
	assert.Len(t, fetcher.calls, 3, "lookups after a prefetch are served from memory")
}

func TestAggregateSource_PrefetchSkipsFreshTitles(t *testing.T) {
	fetcher := &stubFetcher{}
	src := pricing.NewAggregateSource(fetcher)

	require.NoError(t, src.Prefetch(context.Background(), market.GameCSGO, []string{"a", "b"}))
	require.NoError(t, src.Prefetch(context.Background(), market.GameCSGO, []string{"a", "b", "c"}))

	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, fetcher.calls)
}

func TestAggregateSource_RefetchesAfterQuoteTTL(t *testing.T) {
	// Arrange
	clock := shared.NewMockClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	fetcher := &stubFetcher{prices: []api.AggregatedPrice{{Title: "Karambit", OrderBestPrice: 8200, OrderCount: 1}}}
	src := pricing.NewAggregateSource(fetcher, pricing.WithQuoteTTL(30*time.Second), pricing.WithAggregateClock(clock))

	// Act
	_, _, err := src.LookupSellEstimate(context.Background(), "Karambit", market.GameCSGO)
	require.NoError(t, err)
	clock.Advance(10 * time.Second)
	_, _, err = src.LookupSellEstimate(context.Background(), "Karambit", market.GameCSGO)
	require.NoError(t, err)
	clock.Advance(30 * time.Second)
	fetcher.prices[0].OrderBestPrice = 8300
	price, ok, err := src.LookupSellEstimate(context.Background(), "Karambit", market.GameCSGO)

	// Assert
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(8300), price)
	assert.Len(t, fetcher.calls, 2)
}

func TestAggregateSource_PrefetchErrorsLeaveLookupsWorking(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("rate limited")}
	src := pricing.NewAggregateSource(fetcher)

	err := src.Prefetch(context.Background(), market.GameCSGO, []string{"Karambit"})
	require.Error(t, err)

	fetcher.err = nil
	fetcher.prices = []api.AggregatedPrice{{Title: "Karambit", OrderBestPrice: 8200, OrderCount: 1}}
	price, ok, err := src.LookupSellEstimate(context.Background(), "Karambit", market.GameCSGO)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(8200), price)
}
