package market

import (
	"fmt"
	"sort"
	"strings"
)

// Game is the logical game identifier used throughout the scanner ("csgo", "dota2", ...)
type Game string

const (
	GameCSGO  Game = "csgo"
	GameDota2 Game = "dota2"
	GameTF2   Game = "tf2"
	GameRust  Game = "rust"
)

// wireGameIDs maps logical games to the marketplace's gameId query values
var wireGameIDs = map[Game]string{
	GameCSGO:  "a8db",
	GameDota2: "9a92",
	GameTF2:   "tf2",
	GameRust:  "rust",
}

var gameAliases = map[string]Game{
	"csgo":  GameCSGO,
	"cs2":   GameCSGO,
	"cs":    GameCSGO,
	"dota2": GameDota2,
	"dota":  GameDota2,
	"tf2":   GameTF2,
	"tf":    GameTF2,
	"rust":  GameRust,
}

// ParseGame resolves a user-supplied game name or alias
func ParseGame(s string) (Game, error) {
	g, ok := gameAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownGame, s)
	}
	return g, nil
}

// WireID returns the marketplace gameId for this game
func (g Game) WireID() (string, error) {
	id, ok := wireGameIDs[g]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownGame, string(g))
	}
	return id, nil
}

// GameFromWireID maps a marketplace gameId back to the logical game
func GameFromWireID(id string) (Game, bool) {
	for g, wid := range wireGameIDs {
		if wid == id {
			return g, true
		}
	}
	return "", false
}

// SupportedGames returns all known games in a stable order
func SupportedGames() []Game {
	games := make([]Game, 0, len(wireGameIDs))
	for g := range wireGameIDs {
		games = append(games, g)
	}
	sort.Slice(games, func(i, j int) bool { return games[i] < games[j] })
	return games
}
