package trading

import "errors"

var (
	// ErrInvalidMarginThreshold indicates the minimum margin threshold is invalid
	ErrInvalidMarginThreshold = errors.New("minimum margin threshold must be non-negative")

	// ErrInvalidFee indicates a commission fraction outside [0, 1)
	ErrInvalidFee = errors.New("fee must be within [0, 1)")

	// ErrInsufficientProfit indicates the opportunity does not meet minimum margin
	ErrInsufficientProfit = errors.New("profit margin below threshold")

	// ErrPriceUnavailable indicates no sell estimate exists for an item
	ErrPriceUnavailable = errors.New("sell estimate unavailable")
)
