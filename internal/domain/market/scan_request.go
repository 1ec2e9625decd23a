package market

import (
	"fmt"

	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

// PriceRange bounds item prices in minor units. A zero bound means "unbounded".
type PriceRange struct {
	MinMinorUnits int64
	MaxMinorUnits int64
}

// IsZero reports whether neither bound is set
func (r PriceRange) IsZero() bool {
	return r.MinMinorUnits == 0 && r.MaxMinorUnits == 0
}

// Contains reports whether price falls within the range (inclusive)
func (r PriceRange) Contains(price int64) bool {
	if r.MinMinorUnits > 0 && price < r.MinMinorUnits {
		return false
	}
	if r.MaxMinorUnits > 0 && price > r.MaxMinorUnits {
		return false
	}
	return true
}

// Intersect narrows r by other; zero bounds on either side defer to the other
func (r PriceRange) Intersect(other PriceRange) PriceRange {
	out := r
	if other.MinMinorUnits > out.MinMinorUnits {
		out.MinMinorUnits = other.MinMinorUnits
	}
	if other.MaxMinorUnits > 0 && (out.MaxMinorUnits == 0 || other.MaxMinorUnits < out.MaxMinorUnits) {
		out.MaxMinorUnits = other.MaxMinorUnits
	}
	return out
}

func (r PriceRange) String() string {
	return fmt.Sprintf("[%d..%d]", r.MinMinorUnits, r.MaxMinorUnits)
}

// ScanRequest fully describes one scan invocation. It is a comparable value
// object so it can key result maps.
type ScanRequest struct {
	Game       Game
	Level      Level
	MaxItems   int
	PriceRange PriceRange
	UseCursor  bool
}

// Validate checks the request parameters before any network work happens
func (r ScanRequest) Validate() error {
	if _, err := r.Game.WireID(); err != nil {
		return shared.NewValidationError("game", err.Error())
	}
	if _, err := ParseLevel(string(r.Level)); err != nil {
		return shared.NewValidationError("level", err.Error())
	}
	if r.MaxItems <= 0 {
		return shared.NewValidationError("max_items", fmt.Sprintf("must be positive, got %d", r.MaxItems))
	}
	if r.PriceRange.MinMinorUnits < 0 || r.PriceRange.MaxMinorUnits < 0 {
		return shared.NewValidationError("price_range", "bounds must be non-negative")
	}
	if r.PriceRange.MaxMinorUnits > 0 && r.PriceRange.MinMinorUnits > r.PriceRange.MaxMinorUnits {
		return shared.NewValidationError("price_range", fmt.Sprintf("min %d exceeds max %d",
			r.PriceRange.MinMinorUnits, r.PriceRange.MaxMinorUnits))
	}
	return nil
}

func (r ScanRequest) String() string {
	return fmt.Sprintf("%s/%s(max=%d, price=%s, cursor=%t)", r.Game, r.Level, r.MaxItems, r.PriceRange, r.UseCursor)
}
