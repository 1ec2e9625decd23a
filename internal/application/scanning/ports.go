package scanning

import (
	"context"
	"iter"

	"github.com/andrescamacho/marketscan-go/internal/domain/filtering"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

// ItemLister streams listings matching server-side filters.
// Implemented by the marketplace API client.
type ItemLister interface {
	ListMarketItems(ctx context.Context, filters filtering.ServerFilters, maxItems int, useCursor bool) iter.Seq2[*market.Item, error]
}

// PriceSource estimates what an item could be sold for elsewhere.
// ok=false means no estimate exists; the item is then skipped, never guessed.
type PriceSource interface {
	Name() string
	LookupSellEstimate(ctx context.Context, title string, game market.Game) (priceMinorUnits int64, ok bool, err error)
}

// Estimate is a sell price credited to the source that produced it
type Estimate struct {
	PriceMinorUnits int64
	Source          string
}

// AttributedPriceSource is implemented by composite sources so each opportunity
// names the underlying source that answered rather than the composite.
type AttributedPriceSource interface {
	PriceSource
	LookupAttributed(ctx context.Context, title string, game market.Game) (Estimate, bool, error)
}

// PriceWarmer fetches estimates for many titles at once ahead of per-item lookups.
// A failed warm-up is not fatal: lookups fall back to fetching one title at a time.
type PriceWarmer interface {
	Prefetch(ctx context.Context, game market.Game, titles []string) error
}

// OpportunitySink receives every scan result produced by the Runner
type OpportunitySink interface {
	Name() string
	Publish(ctx context.Context, result ScanResult) error
}

// MetricsRecorder receives scanner telemetry
type MetricsRecorder interface {
	RecordScan(game, level, outcome string, durationSeconds float64, opportunities int)
	RecordItemsScanned(game, level string, fetched, matched int)
	RecordPricingFailure(source string)
	RecordVolatility(game, level string, coefficient float64)
	RecordNextInterval(seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) RecordScan(string, string, string, float64, int) {}
func (noopMetrics) RecordItemsScanned(string, string, int, int) {}
func (noopMetrics) RecordPricingFailure(string) {}
func (noopMetrics) RecordVolatility(string, string, float64) {}
func (noopMetrics) RecordNextInterval(float64) {}
