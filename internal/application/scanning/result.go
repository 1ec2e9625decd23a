package scanning

import (
	"context"
	"errors"
	"time"

	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
	"github.com/andrescamacho/marketscan-go/internal/domain/trading"
)

// Scan outcomes reported to metrics and sinks
const (
	OutcomeSuccess   = "success"
	OutcomeDegraded  = "degraded"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// ScanStats counts what happened to the listings of one scan
type ScanStats struct {
	ItemsFetched     int
	ItemsMatched     int
	MalformedItems   int
	PriceUnavailable int
	PricingFailures  int
	BelowThreshold   int
}

// ScanResult is the outcome of one ScanRequest.
// Err is nil on success; an empty Opportunities slice is not an error.
type ScanResult struct {
	ScanID        string
	Request       market.ScanRequest
	Opportunities []*trading.ArbitrageOpportunity
	Err           error
	// Degraded is set when Err means the upstream is temporarily unavailable
	// (circuit open or retries exhausted) rather than a permanent failure.
	Degraded  bool
	Stats     ScanStats
	StartedAt time.Time
	Duration  time.Duration
}

// Outcome classifies the result for metrics and logs
func (r ScanResult) Outcome() string {
	switch {
	case r.Err == nil:
		return OutcomeSuccess
	case errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded):
		return OutcomeCancelled
	case r.Degraded:
		return OutcomeDegraded
	default:
		return OutcomeFailed
	}
}

func newFailedResult(res ScanResult, err error) ScanResult {
	res.Err = err
	res.Degraded = shared.IsDegraded(err)
	res.Opportunities = nil
	return res
}
