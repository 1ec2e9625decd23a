package trading

import (
	"errors"
	"fmt"
	"time"

	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

// ArbitrageOpportunity represents an immutable profitable listing found by a scan.
//
// Price Terminology (from the trader's perspective):
//   - BuyPrice: What we PAY for the listed item (its marketplace price)
//   - EstimatedSellPrice: What we expect to RECEIVE by relisting it elsewhere, before fees
//
// The net profit always satisfies
//
//	netProfit == estimatedSell*(1-sellFee) - buy*(1+buyFee)
//
// rounded to whole minor units. Opportunities are recomputed on every scan and never cached.
type ArbitrageOpportunity struct {
	item                         *market.Item
	buyPriceMinorUnits           int64
	estimatedSellPriceMinorUnits int64
	netProfitMinorUnits          int64
	netProfitPercent             float64
	sellSource                   string
	discoveredAt                 time.Time
}

// NewArbitrageOpportunity creates a new opportunity from a quote, computing profit with the given fees.
//
// Returns error if:
//   - the quote has no item
//   - the buy price is non-positive
//   - the estimated sell price is non-positive
func NewArbitrageOpportunity(quote Quote, fees FeeSchedule, discoveredAt time.Time) (*ArbitrageOpportunity, error) {
	if quote.Item() == nil {
		return nil, errors.New("quote item required")
	}
	buy := quote.Item().PriceMinorUnits()
	sell := quote.SellEstimateMinorUnits()
	if buy <= 0 {
		return nil, fmt.Errorf("buy price must be positive, got %d", buy)
	}
	if sell <= 0 {
		return nil, fmt.Errorf("estimated sell price must be positive, got %d", sell)
	}

	net := fees.NetProfit(buy, sell)
	pct := fees.NetProfitPercent(buy, sell)

	return &ArbitrageOpportunity{
		item:                         quote.Item(),
		buyPriceMinorUnits:           buy,
		estimatedSellPriceMinorUnits: sell,
		netProfitMinorUnits:          net.Round(0).IntPart(),
		netProfitPercent:             pct.Round(4).InexactFloat64(),
		sellSource:                   quote.Source(),
		discoveredAt:                 discoveredAt,
	}, nil
}

// Getters - provide read-only access to maintain immutability

func (o *ArbitrageOpportunity) Item() *market.Item {
	return o.item
}

func (o *ArbitrageOpportunity) BuyPriceMinorUnits() int64 {
	return o.buyPriceMinorUnits
}

func (o *ArbitrageOpportunity) EstimatedSellPriceMinorUnits() int64 {
	return o.estimatedSellPriceMinorUnits
}

func (o *ArbitrageOpportunity) NetProfitMinorUnits() int64 {
	return o.netProfitMinorUnits
}

func (o *ArbitrageOpportunity) NetProfitPercent() float64 {
	return o.netProfitPercent
}

func (o *ArbitrageOpportunity) SellSource() string {
	return o.sellSource
}

func (o *ArbitrageOpportunity) DiscoveredAt() time.Time {
	return o.discoveredAt
}

// IsProfitable returns true if the opportunity clears fees
func (o *ArbitrageOpportunity) IsProfitable() bool {
	return o.netProfitMinorUnits > 0
}

// MeetsThreshold reports whether the net profit percent reaches minPercent
func (o *ArbitrageOpportunity) MeetsThreshold(minPercent float64) bool {
	return o.netProfitPercent >= minPercent
}

// Record flattens the opportunity into a serializable form for sinks and the CLI
func (o *ArbitrageOpportunity) Record() OpportunityRecord {
	return OpportunityRecord{
		ItemID:                       o.item.ID(),
		Title:                        o.item.Title(),
		GameID:                       o.item.GameID(),
		BuyPriceMinorUnits:           o.buyPriceMinorUnits,
		EstimatedSellPriceMinorUnits: o.estimatedSellPriceMinorUnits,
		NetProfitMinorUnits:          o.netProfitMinorUnits,
		NetProfitPercent:             o.netProfitPercent,
		SalesVolume24h:               o.item.SalesVolume24h(),
		SellSource:                   o.sellSource,
		DiscoveredAt:                 o.discoveredAt,
	}
}

// String returns a human-readable representation
func (o *ArbitrageOpportunity) String() string {
	return fmt.Sprintf("ArbitrageOpportunity{item=%s, buy=%d, sell=%d, profit=%d, margin=%.2f%%}",
		o.item.Title(), o.buyPriceMinorUnits, o.estimatedSellPriceMinorUnits, o.netProfitMinorUnits, o.netProfitPercent)
}

// OpportunityRecord is the wire/display form of an ArbitrageOpportunity
type OpportunityRecord struct {
	ItemID                       string    `json:"item_id"`
	Title                        string    `json:"title"`
	GameID                       string    `json:"game_id"`
	BuyPriceMinorUnits           int64     `json:"buy_price"`
	EstimatedSellPriceMinorUnits int64     `json:"estimated_sell_price"`
	NetProfitMinorUnits          int64     `json:"net_profit"`
	NetProfitPercent             float64   `json:"net_profit_percent"`
	SalesVolume24h               int       `json:"sales_volume_24h"`
	SellSource                   string    `json:"sell_source,omitempty"`
	DiscoveredAt                 time.Time `json:"discovered_at"`
}
