package trading

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// ArbitrageAnalyzer provides pure business logic for turning quotes into
// ranked arbitrage opportunities.
//
// This is a domain service with no infrastructure dependencies (no database, API, etc.).
// All methods are stateless and deterministic.
type ArbitrageAnalyzer struct {
	fees FeeSchedule
}

// NewArbitrageAnalyzer creates a new analyzer using the given fee schedule
func NewArbitrageAnalyzer(fees FeeSchedule) *ArbitrageAnalyzer {
	return &ArbitrageAnalyzer{fees: fees}
}

// Fees returns the fee schedule used for profit calculations
func (a *ArbitrageAnalyzer) Fees() FeeSchedule {
	return a.fees
}

// AnalyzeQuote evaluates a single quote.
//
// Returns:
//   - ArbitrageOpportunity if net profit percent >= minProfitPercent
//   - ErrInsufficientProfit (wrapped) if the quote does not clear the threshold
//   - Error if the quote cannot be analyzed
func (a *ArbitrageAnalyzer) AnalyzeQuote(quote Quote, minProfitPercent float64, now time.Time) (*ArbitrageOpportunity, error) {
	opp, err := NewArbitrageOpportunity(quote, a.fees, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create opportunity: %w", err)
	}
	if !opp.IsProfitable() || !opp.MeetsThreshold(minProfitPercent) {
		return nil, fmt.Errorf("%w: %.2f%% < %.2f%%", ErrInsufficientProfit, opp.NetProfitPercent(), minProfitPercent)
	}
	return opp, nil
}

// Rank sorts opportunities best first, in place, and returns the slice.
//
// Ordering:
//  1. Higher net profit percent
//  2. Higher absolute net profit
//  3. Lower buy price (cheaper capital commitment)
//
// The sort is stable, so equal opportunities keep their input order.
func Rank(opps []*ArbitrageOpportunity) []*ArbitrageOpportunity {
	slices.SortStableFunc(opps, CompareOpportunities)
	return opps
}

// CompareOpportunities orders a before b when a is the better opportunity
func CompareOpportunities(a, b *ArbitrageOpportunity) int {
	if c := cmp.Compare(b.NetProfitPercent(), a.NetProfitPercent()); c != 0 {
		return c
	}
	if c := cmp.Compare(b.NetProfitMinorUnits(), a.NetProfitMinorUnits()); c != 0 {
		return c
	}
	return cmp.Compare(a.BuyPriceMinorUnits(), b.BuyPriceMinorUnits())
}

// TopN ranks opportunities and truncates to at most n entries
func TopN(opps []*ArbitrageOpportunity, n int) []*ArbitrageOpportunity {
	Rank(opps)
	if n > 0 && len(opps) > n {
		return opps[:n]
	}
	return opps
}
