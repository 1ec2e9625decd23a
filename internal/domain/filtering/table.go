package filtering

import (
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

// LevelFilter is the full filter definition for one (game, level) pair.
//
// Categories, Rarities and Exteriors are sent to the server as tree filters and
// re-checked on the client. MinSalesVolume24h and ExcludeTitleKeywords cannot be
// expressed server-side and are enforced only by the client predicate.
type LevelFilter struct {
	PriceRange           market.PriceRange
	MinProfitPercent     float64
	Categories           []string
	Rarities             []string
	Exteriors            []string
	MinSalesVolume24h    int
	ExcludeTitleKeywords []string
}

// Table maps every supported (game, level) pair to its filter. It is pure data.
type Table map[market.Game]map[market.Level]LevelFilter

// Lookup returns the filter for a pair, or false when the pair is not configured
func (t Table) Lookup(game market.Game, level market.Level) (LevelFilter, bool) {
	levels, ok := t[game]
	if !ok {
		return LevelFilter{}, false
	}
	f, ok := levels[level]
	return f, ok
}

func usd(dollars float64) int64 {
	return int64(dollars * 100)
}

var skinsExcluded = []string{"Sticker", "Graffiti", "Souvenir Package"}

// DefaultTable returns the built-in tier definitions.
// Prices are USD cents. Each level widens the price band and raises the profit bar.
func DefaultTable() Table {
	return Table{
		market.GameCSGO: {
			market.LevelBoost: {
				PriceRange:           market.PriceRange{MinMinorUnits: usd(0.5), MaxMinorUnits: usd(3)},
				MinProfitPercent:     1.5,
				Categories:           []string{"rifle", "pistol", "smg"},
				Rarities:             []string{"mil-spec grade", "restricted"},
				MinSalesVolume24h:    20,
				ExcludeTitleKeywords: skinsExcluded,
			},
			market.LevelStandard: {
				PriceRange:           market.PriceRange{MinMinorUnits: usd(3), MaxMinorUnits: usd(10)},
				MinProfitPercent:     3,
				Categories:           []string{"rifle", "pistol", "smg", "shotgun"},
				Rarities:             []string{"restricted", "classified"},
				MinSalesVolume24h:    10,
				ExcludeTitleKeywords: skinsExcluded,
			},
			market.LevelMedium: {
				PriceRange:           market.PriceRange{MinMinorUnits: usd(10), MaxMinorUnits: usd(30)},
				MinProfitPercent:     5,
				Categories:           []string{"rifle", "sniper rifle", "pistol"},
				Rarities:             []string{"classified", "covert"},
				Exteriors:            []string{"factory new", "minimal wear", "field-tested"},
				MinSalesVolume24h:    5,
				ExcludeTitleKeywords: skinsExcluded,
			},
			market.LevelAdvanced: {
				PriceRange:           market.PriceRange{MinMinorUnits: usd(30), MaxMinorUnits: usd(100)},
				MinProfitPercent:     7,
				Categories:           []string{"rifle", "sniper rifle", "gloves"},
				Rarities:             []string{"covert", "extraordinary"},
				Exteriors:            []string{"factory new", "minimal wear"},
				MinSalesVolume24h:    3,
				ExcludeTitleKeywords: skinsExcluded,
			},
			market.LevelPro: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(100), MaxMinorUnits: usd(1000)},
				MinProfitPercent:  10,
				Categories:        []string{"knife", "gloves"},
				Rarities:          []string{"covert", "extraordinary"},
				MinSalesVolume24h: 1,
			},
		},
		market.GameDota2: {
			market.LevelBoost: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(0.5), MaxMinorUnits: usd(3)},
				MinProfitPercent:  1.5,
				Rarities:          []string{"common", "uncommon", "rare"},
				MinSalesVolume24h: 20,
			},
			market.LevelStandard: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(3), MaxMinorUnits: usd(10)},
				MinProfitPercent:  3,
				Rarities:          []string{"rare", "mythical"},
				MinSalesVolume24h: 10,
			},
			market.LevelMedium: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(10), MaxMinorUnits: usd(30)},
				MinProfitPercent:  5,
				Rarities:          []string{"mythical", "legendary"},
				MinSalesVolume24h: 5,
			},
			market.LevelAdvanced: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(30), MaxMinorUnits: usd(100)},
				MinProfitPercent:  7,
				Rarities:          []string{"legendary", "immortal"},
				MinSalesVolume24h: 3,
			},
			market.LevelPro: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(100), MaxMinorUnits: usd(1000)},
				MinProfitPercent:  10,
				Rarities:          []string{"immortal", "arcana"},
				MinSalesVolume24h: 1,
			},
		},
		market.GameTF2: {
			market.LevelBoost: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(0.5), MaxMinorUnits: usd(3)},
				MinProfitPercent:  1.5,
				Categories:        []string{"weapon", "tool"},
				MinSalesVolume24h: 20,
			},
			market.LevelStandard: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(3), MaxMinorUnits: usd(10)},
				MinProfitPercent:  3,
				Categories:        []string{"weapon", "cosmetic"},
				MinSalesVolume24h: 10,
			},
			market.LevelMedium: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(10), MaxMinorUnits: usd(30)},
				MinProfitPercent:  5,
				Categories:        []string{"cosmetic"},
				Exteriors:         []string{"unusual", "strange"},
				MinSalesVolume24h: 5,
			},
			market.LevelAdvanced: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(30), MaxMinorUnits: usd(100)},
				MinProfitPercent:  7,
				Categories:        []string{"cosmetic"},
				Exteriors:         []string{"unusual"},
				MinSalesVolume24h: 3,
			},
			market.LevelPro: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(100), MaxMinorUnits: usd(1000)},
				MinProfitPercent:  10,
				Exteriors:         []string{"unusual"},
				MinSalesVolume24h: 1,
			},
		},
		market.GameRust: {
			market.LevelBoost: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(0.5), MaxMinorUnits: usd(3)},
				MinProfitPercent:  1.5,
				Categories:        []string{"weapon", "clothing"},
				MinSalesVolume24h: 20,
			},
			market.LevelStandard: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(3), MaxMinorUnits: usd(10)},
				MinProfitPercent:  3,
				Categories:        []string{"weapon", "clothing", "deployable"},
				MinSalesVolume24h: 10,
			},
			market.LevelMedium: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(10), MaxMinorUnits: usd(30)},
				MinProfitPercent:  5,
				Categories:        []string{"weapon", "armor"},
				MinSalesVolume24h: 5,
			},
			market.LevelAdvanced: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(30), MaxMinorUnits: usd(100)},
				MinProfitPercent:  7,
				Categories:        []string{"weapon", "armor"},
				MinSalesVolume24h: 3,
			},
			market.LevelPro: {
				PriceRange:        market.PriceRange{MinMinorUnits: usd(100), MaxMinorUnits: usd(1000)},
				MinProfitPercent:  10,
				MinSalesVolume24h: 1,
			},
		},
	}
}
