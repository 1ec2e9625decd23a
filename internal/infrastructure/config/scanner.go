package config

import (
	"fmt"
	"time"

	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

// ScannerConfig holds arbitrage scanner configuration
type ScannerConfig struct {
	// Maximum scans in flight during one cycle
	Concurrency int `mapstructure:"concurrency" validate:"min=1"`

	// Maximum sell-estimate lookups in flight within one scan
	PricingConcurrency int `mapstructure:"pricing_concurrency" validate:"min=1"`

	// Listings fetched per scan, 0 = unlimited
	MaxFetchItems int `mapstructure:"max_fetch_items" validate:"min=0"`

	// Fee fractions applied to the sell and buy legs
	SellFee float64 `mapstructure:"sell_fee" validate:"gte=0,lt=1"`
	BuyFee  float64 `mapstructure:"buy_fee" validate:"gte=0,lt=1"`

	// Adaptive interval bounds
	MinInterval time.Duration `mapstructure:"min_interval" validate:"required"`
	MaxInterval time.Duration `mapstructure:"max_interval" validate:"required,gtefield=MinInterval"`

	// Volatility window size and the coefficient-of-variation band mapped onto the interval
	VolatilityWindow int     `mapstructure:"volatility_window" validate:"min=2"`
	VolatilityLow    float64 `mapstructure:"volatility_low" validate:"gte=0"`
	VolatilityHigh   float64 `mapstructure:"volatility_high" validate:"gtfield=VolatilityLow"`

	// Requests scanned every cycle by the daemon
	Requests []ScanRequestConfig `mapstructure:"requests" validate:"dive"`
}

// ScanRequestConfig is one configured scan
type ScanRequestConfig struct {
	Game      string `mapstructure:"game" validate:"required"`
	Level     string `mapstructure:"level" validate:"required"`
	MaxItems  int    `mapstructure:"max_items" validate:"min=1"`
	PriceFrom int64  `mapstructure:"price_from" validate:"min=0"`
	PriceTo   int64  `mapstructure:"price_to" validate:"min=0"`

	// Paging strategy: cursor (default) or offset
	Paging string `mapstructure:"paging" validate:"omitempty,oneof=cursor offset"`
}

// ToScanRequest converts the configured entry into a validated domain request
func (c ScanRequestConfig) ToScanRequest() (market.ScanRequest, error) {
	game, err := market.ParseGame(c.Game)
	if err != nil {
		return market.ScanRequest{}, err
	}
	level, err := market.ParseLevel(c.Level)
	if err != nil {
		return market.ScanRequest{}, err
	}
	req := market.ScanRequest{
		Game:       game,
		Level:      level,
		MaxItems:   c.MaxItems,
		PriceRange: market.PriceRange{MinMinorUnits: c.PriceFrom, MaxMinorUnits: c.PriceTo},
		UseCursor:  c.Paging != "offset",
	}
	if err := req.Validate(); err != nil {
		return market.ScanRequest{}, err
	}
	return req, nil
}

// ScanRequests converts every configured request
func (c ScannerConfig) ScanRequests() ([]market.ScanRequest, error) {
	out := make([]market.ScanRequest, 0, len(c.Requests))
	for i, rc := range c.Requests {
		req, err := rc.ToScanRequest()
		if err != nil {
			return nil, fmt.Errorf("scanner.requests[%d]: %w", i, err)
		}
		out = append(out, req)
	}
	return out, nil
}
