package market

import (
	"fmt"
	"strings"
)

// Level is a coarse risk/reward tier for a scan
type Level string

const (
	LevelBoost    Level = "boost"
	LevelStandard Level = "standard"
	LevelMedium   Level = "medium"
	LevelAdvanced Level = "advanced"
	LevelPro      Level = "pro"
)

// AllLevels lists every level from lowest to highest capital commitment
var AllLevels = []Level{LevelBoost, LevelStandard, LevelMedium, LevelAdvanced, LevelPro}

// ParseLevel resolves a user-supplied level name
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllLevels {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}
