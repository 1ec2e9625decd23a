package trading

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// FeeSchedule holds the commission fractions applied on each side of a trade.
// Fees are fractions (0.07 == 7%), kept as decimals so minor-unit arithmetic is exact.
type FeeSchedule struct {
	sellFee decimal.Decimal
	buyFee  decimal.Decimal
}

// NewFeeSchedule creates a fee schedule. Both fees must lie in [0, 1).
func NewFeeSchedule(sellFee, buyFee float64) (FeeSchedule, error) {
	if sellFee < 0 || sellFee >= 1 {
		return FeeSchedule{}, fmt.Errorf("%w: sell fee %v", ErrInvalidFee, sellFee)
	}
	if buyFee < 0 || buyFee >= 1 {
		return FeeSchedule{}, fmt.Errorf("%w: buy fee %v", ErrInvalidFee, buyFee)
	}
	return FeeSchedule{
		sellFee: decimal.NewFromFloat(sellFee),
		buyFee:  decimal.NewFromFloat(buyFee),
	}, nil
}

// MustFeeSchedule is NewFeeSchedule for constants known to be valid
func MustFeeSchedule(sellFee, buyFee float64) FeeSchedule {
	fs, err := NewFeeSchedule(sellFee, buyFee)
	if err != nil {
		panic(err)
	}
	return fs
}

func (f FeeSchedule) SellFee() decimal.Decimal {
	return f.sellFee
}

func (f FeeSchedule) BuyFee() decimal.Decimal {
	return f.buyFee
}

// NetProceeds is what the seller receives after the sell-side commission
func (f FeeSchedule) NetProceeds(sellPriceMinorUnits int64) decimal.Decimal {
	return decimal.NewFromInt(sellPriceMinorUnits).Mul(one.Sub(f.sellFee))
}

// TotalCost is what the buyer pays including the buy-side commission
func (f FeeSchedule) TotalCost(buyPriceMinorUnits int64) decimal.Decimal {
	return decimal.NewFromInt(buyPriceMinorUnits).Mul(one.Add(f.buyFee))
}

// NetProfit computes sell*(1-sellFee) - buy*(1+buyFee) exactly
func (f FeeSchedule) NetProfit(buyPriceMinorUnits, sellPriceMinorUnits int64) decimal.Decimal {
	return f.NetProceeds(sellPriceMinorUnits).Sub(f.TotalCost(buyPriceMinorUnits))
}

// NetProfitPercent expresses net profit relative to total cost, in percent
func (f FeeSchedule) NetProfitPercent(buyPriceMinorUnits, sellPriceMinorUnits int64) decimal.Decimal {
	cost := f.TotalCost(buyPriceMinorUnits)
	if cost.IsZero() {
		return decimal.Zero
	}
	return f.NetProfit(buyPriceMinorUnits, sellPriceMinorUnits).Div(cost).Mul(hundred)
}

// BreakEvenSellPrice is the lowest sell price (minor units, rounded up) that does not lose money
func (f FeeSchedule) BreakEvenSellPrice(buyPriceMinorUnits int64) int64 {
	return f.TotalCost(buyPriceMinorUnits).Div(one.Sub(f.sellFee)).Ceil().IntPart()
}

func (f FeeSchedule) String() string {
	return fmt.Sprintf("FeeSchedule{sell=%s, buy=%s}", f.sellFee.String(), f.buyFee.String())
}
