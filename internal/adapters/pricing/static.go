// Package pricing provides external sell-price estimates for the scanner.
package pricing

import (
	"context"
	"sync"

	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

// StaticSource serves estimates from an in-memory table keyed by game and title.
// Used for tests, dry runs and as the last link of a Chain.
type StaticSource struct {
	mu     sync.RWMutex
	prices map[market.Game]map[string]int64
}

// NewStaticSource creates an empty table
func NewStaticSource() *StaticSource {
	return &StaticSource{prices: make(map[market.Game]map[string]int64)}
}

// Set records the sell estimate for a title
func (s *StaticSource) Set(game market.Game, title string, priceMinorUnits int64) *StaticSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	byTitle, ok := s.prices[game]
	if !ok {
		byTitle = make(map[string]int64)
		s.prices[game] = byTitle
	}
	byTitle[title] = priceMinorUnits
	return s
}

func (s *StaticSource) Name() string { return "static" }

// LookupSellEstimate returns the recorded estimate, ok=false when none is known
func (s *StaticSource) LookupSellEstimate(ctx context.Context, title string, game market.Game) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[game][title]
	return price, ok && price > 0, nil
}
