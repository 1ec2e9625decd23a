package market

import "errors"

var (
	// ErrUnknownGame indicates the game name or wire id is not supported
	ErrUnknownGame = errors.New("unknown game")

	// ErrUnknownLevel indicates the scan level is not one of the known tiers
	ErrUnknownLevel = errors.New("unknown scan level")

	// ErrMalformedItem indicates a listing that could not be decoded; callers skip it
	ErrMalformedItem = errors.New("malformed market item")
)
