// Package filtering maps a scan level and game to the server-side filter payload
// and the client-side predicate used to re-validate fetched items.
//
// The mapping is a pure data Table so every (game, level) combination is
// auditable and testable on its own.
package filtering

import (
	"fmt"
	"slices"
	"strings"

	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

const defaultCurrency = "USD"

// Predicate reports whether a fetched item still satisfies the level's filter
type Predicate func(item *market.Item) bool

// Pipeline translates (game, level) pairs into server filters and client predicates
type Pipeline struct {
	table Table
}

// NewPipeline creates a pipeline over the given table; nil uses DefaultTable
func NewPipeline(table Table) *Pipeline {
	if table == nil {
		table = DefaultTable()
	}
	return &Pipeline{table: table}
}

// Filter returns the raw level filter for a pair
func (p *Pipeline) Filter(game market.Game, level market.Level) (LevelFilter, error) {
	f, ok := p.table.Lookup(game, level)
	if !ok {
		return LevelFilter{}, fmt.Errorf("%w: %s/%s", ErrNoFilter, game, level)
	}
	return f, nil
}

// BuildServerFilters returns the minimal upstream filter payload for a pair
func (p *Pipeline) BuildServerFilters(game market.Game, level market.Level) (ServerFilters, error) {
	f, err := p.Filter(game, level)
	if err != nil {
		return ServerFilters{}, err
	}
	gameID, err := game.WireID()
	if err != nil {
		return ServerFilters{}, err
	}

	tree := map[string][]string{}
	if len(f.Categories) > 0 {
		tree[DimensionCategory] = slices.Clone(f.Categories)
	}
	if len(f.Rarities) > 0 {
		tree[DimensionRarity] = slices.Clone(f.Rarities)
	}
	if len(f.Exteriors) > 0 {
		tree[DimensionExterior] = slices.Clone(f.Exteriors)
	}

	return ServerFilters{
		GameID:    gameID,
		Currency:  defaultCurrency,
		PriceFrom: f.PriceRange.MinMinorUnits,
		PriceTo:   f.PriceRange.MaxMinorUnits,
		OrderBy:   "price",
		OrderDir:  "asc",
		Tree:      tree,
	}, nil
}

// BuildRequestFilters applies a request's own price range on top of the level's
func (p *Pipeline) BuildRequestFilters(req market.ScanRequest) (ServerFilters, error) {
	sf, err := p.BuildServerFilters(req.Game, req.Level)
	if err != nil {
		return ServerFilters{}, err
	}
	narrowed := market.PriceRange{MinMinorUnits: sf.PriceFrom, MaxMinorUnits: sf.PriceTo}.Intersect(req.PriceRange)
	sf.PriceFrom = narrowed.MinMinorUnits
	sf.PriceTo = narrowed.MaxMinorUnits
	return sf, nil
}

// ClientPredicate returns the post-fetch check for a pair
func (p *Pipeline) ClientPredicate(game market.Game, level market.Level) (Predicate, error) {
	return p.RequestPredicate(market.ScanRequest{Game: game, Level: level})
}

// RequestPredicate is ClientPredicate narrowed by the request's price range
func (p *Pipeline) RequestPredicate(req market.ScanRequest) (Predicate, error) {
	f, err := p.Filter(req.Game, req.Level)
	if err != nil {
		return nil, err
	}
	gameID, err := req.Game.WireID()
	if err != nil {
		return nil, err
	}

	priceRange := f.PriceRange.Intersect(req.PriceRange)
	categories := lowerSet(f.Categories)
	rarities := lowerSet(f.Rarities)
	exteriors := lowerSet(f.Exteriors)
	excluded := make([]string, 0, len(f.ExcludeTitleKeywords))
	for _, kw := range f.ExcludeTitleKeywords {
		excluded = append(excluded, strings.ToLower(kw))
	}

	return func(item *market.Item) bool {
		if item == nil {
			return false
		}
		if item.GameID() != "" && item.GameID() != gameID {
			return false
		}
		if item.PriceMinorUnits() <= 0 || !priceRange.Contains(item.PriceMinorUnits()) {
			return false
		}
		if !matchesDimension(item, market.AttrCategory, categories) {
			return false
		}
		if !matchesDimension(item, market.AttrRarity, rarities) {
			return false
		}
		if !matchesDimension(item, market.AttrExterior, exteriors) {
			return false
		}
		if item.SalesVolume24h() < f.MinSalesVolume24h {
			return false
		}
		title := strings.ToLower(item.Title())
		for _, kw := range excluded {
			if strings.Contains(title, kw) {
				return false
			}
		}
		return true
	}, nil
}

// MinProfitPercent returns the profit threshold for a pair
func (p *Pipeline) MinProfitPercent(game market.Game, level market.Level) (float64, error) {
	f, err := p.Filter(game, level)
	if err != nil {
		return 0, err
	}
	return f.MinProfitPercent, nil
}

func lowerSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}

// matchesDimension passes when the dimension is not narrowed or the item's tag is allowed
func matchesDimension(item *market.Item, attr string, allowed map[string]struct{}) bool {
	if allowed == nil {
		return true
	}
	v, ok := item.Attribute(attr)
	if !ok {
		return false
	}
	_, ok = allowed[strings.ToLower(v)]
	return ok
}
