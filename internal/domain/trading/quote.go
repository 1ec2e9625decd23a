package trading

import "github.com/andrescamacho/marketscan-go/internal/domain/market"

// Quote pairs a buy-side listing with an estimated sell-side price.
// Created transiently while ranking; never persisted.
type Quote struct {
	item                   *market.Item
	sellEstimateMinorUnits int64
	source                 string
}

// NewQuote creates a quote. source names the pricing collaborator that produced the estimate.
func NewQuote(item *market.Item, sellEstimateMinorUnits int64, source string) Quote {
	return Quote{
		item:                   item,
		sellEstimateMinorUnits: sellEstimateMinorUnits,
		source:                 source,
	}
}

func (q Quote) Item() *market.Item {
	return q.item
}

func (q Quote) SellEstimateMinorUnits() int64 {
	return q.sellEstimateMinorUnits
}

func (q Quote) Source() string {
	return q.source
}

// Spread is the raw price difference before fees
func (q Quote) Spread() int64 {
	if q.item == nil {
		return 0
	}
	return q.sellEstimateMinorUnits - q.item.PriceMinorUnits()
}
