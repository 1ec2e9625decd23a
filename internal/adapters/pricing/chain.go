package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andrescamacho/marketscan-go/internal/application/scanning"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

// Chain asks each source in order and returns the first estimate found.
// A failing source is skipped; the error surfaces only if no later source answers.
type Chain struct {
	sources []scanning.PriceSource
}

// NewChain builds a chain, nil sources are dropped
func NewChain(sources ...scanning.PriceSource) *Chain {
	c := &Chain{}
	for _, s := range sources {
		if s != nil {
			c.sources = append(c.sources, s)
		}
	}
	return c
}

func (c *Chain) Name() string {
	names := make([]string, len(c.sources))
	for i, s := range c.sources {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) LookupSellEstimate(ctx context.Context, title string, game market.Game) (int64, bool, error) {
	estimate, ok, err := c.LookupAttributed(ctx, title, game)
	return estimate.PriceMinorUnits, ok, err
}

// LookupAttributed is LookupSellEstimate that also names the source that answered
func (c *Chain) LookupAttributed(ctx context.Context, title string, game market.Game) (scanning.Estimate, bool, error) {
	var errs []error
	for _, s := range c.sources {
		estimate, ok, err := lookupAttributed(ctx, s, title, game)
		if err != nil {
			if ctx.Err() != nil {
				return scanning.Estimate{}, false, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		if ok {
			return estimate, true, nil
		}
	}
	return scanning.Estimate{}, false, errors.Join(errs...)
}

// Prefetch warms every source that batches its lookups
func (c *Chain) Prefetch(ctx context.Context, game market.Game, titles []string) error {
	var errs []error
	for _, s := range c.sources {
		warmer, ok := s.(scanning.PriceWarmer)
		if !ok {
			continue
		}
		if err := warmer.Prefetch(ctx, game, titles); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func lookupAttributed(ctx context.Context, s scanning.PriceSource, title string, game market.Game) (scanning.Estimate, bool, error) {
	if attributed, ok := s.(scanning.AttributedPriceSource); ok {
		return attributed.LookupAttributed(ctx, title, game)
	}
	price, ok, err := s.LookupSellEstimate(ctx, title, game)
	return scanning.Estimate{PriceMinorUnits: price, Source: s.Name()}, ok, err
}
