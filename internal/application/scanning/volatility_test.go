package scanning_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/andrescamacho/marketscan-go/internal/application/scanning"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

func intervalConfig() scanning.IntervalConfig {
	return scanning.IntervalConfig{Min: 10 * time.Second, Max: 110 * time.Second, Low: 0.0, High: 0.2, Window: 4}
}

func TestIntervalConfig_ForScoreIsBoundedAndLinear(t *testing.T) {
	cfg := intervalConfig()

	assert.Equal(t, 110*time.Second, cfg.ForScore(-1), "calm clamps to max")
	assert.Equal(t, 110*time.Second, cfg.ForScore(0))
	assert.Equal(t, 60*time.Second, cfg.ForScore(0.1))
	assert.Equal(t, 10*time.Second, cfg.ForScore(0.2))
	assert.Equal(t, 10*time.Second, cfg.ForScore(50), "extreme volatility clamps to min")
}

var (
	csgoBoost = scanning.WindowKey{Game: market.GameCSGO, Level: market.LevelBoost}
	csgoPro   = scanning.WindowKey{Game: market.GameCSGO, Level: market.LevelPro}
	dotaBoost = scanning.WindowKey{Game: market.GameDota2, Level: market.LevelBoost}
)

func TestIntervalConfig_NextUsesMostVolatileWindow(t *testing.T) {
	cfg := intervalConfig()
	tracker := scanning.NewVolatilityTracker(cfg.Window)
	keys := []scanning.WindowKey{csgoBoost, dotaBoost}

	assert.Equal(t, cfg.Max, cfg.Next(tracker, keys), "no history waits the maximum")

	for _, p := range []float64{100, 100, 100} {
		tracker.Observe(csgoBoost, p)
	}
	assert.Equal(t, cfg.Max, cfg.Next(tracker, keys))

	tracker.Observe(dotaBoost, 50)
	tracker.Observe(dotaBoost, 150)
	assert.Equal(t, cfg.Min, cfg.Next(tracker, keys), "cv of 0.5 is beyond High")
}

func TestVolatilityTracker_LevelsOfOneGameKeepSeparateWindows(t *testing.T) {
	// Arrange
	cfg := intervalConfig()
	tracker := scanning.NewVolatilityTracker(cfg.Window)

	// Act
	for i := 0; i < 3; i++ {
		tracker.Observe(csgoBoost, 200)
		tracker.Observe(csgoPro, 20000)
	}

	// Assert
	assert.Equal(t, []float64{200, 200, 200}, tracker.Samples(csgoBoost))
	assert.Equal(t, []float64{20000, 20000, 20000}, tracker.Samples(csgoPro))
	assert.Equal(t, cfg.Max, cfg.Next(tracker, []scanning.WindowKey{csgoBoost, csgoPro}))
}

func TestVolatilityTracker_RollingWindow(t *testing.T) {
	tracker := scanning.NewVolatilityTracker(3)
	rust := scanning.WindowKey{Game: market.GameRust, Level: market.LevelBoost}

	for _, p := range []float64{1, 2, 3, 4, 5} {
		tracker.Observe(rust, p)
	}

	assert.Equal(t, []float64{3, 4, 5}, tracker.Samples(rust))
	_, ok := tracker.Score(scanning.WindowKey{Game: market.GameTF2, Level: market.LevelBoost})
	assert.False(t, ok)
}
