package scanning

import (
	"sync"
	"time"

	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/pkg/utils"
)

// IntervalConfig maps volatility onto the wait between scan cycles.
// A coefficient of variation at or above High waits Min; at or below Low waits Max.
type IntervalConfig struct {
	Min    time.Duration
	Max    time.Duration
	Low    float64
	High   float64
	Window int
}

// DefaultIntervalConfig waits between 30s and 10m
func DefaultIntervalConfig() IntervalConfig {
	return IntervalConfig{
		Min:    30 * time.Second,
		Max:    10 * time.Minute,
		Low:    0.01,
		High:   0.10,
		Window: 10,
	}
}

func (c IntervalConfig) normalized() IntervalConfig {
	def := DefaultIntervalConfig()
	if c.Min <= 0 {
		c.Min = def.Min
	}
	if c.Max <= 0 {
		c.Max = def.Max
	}
	if c.Max < c.Min {
		c.Min, c.Max = c.Max, c.Min
	}
	if c.High <= c.Low {
		c.Low, c.High = def.Low, def.High
	}
	if c.Window < 2 {
		c.Window = def.Window
	}
	return c
}

// WindowKey identifies one rolling price window. Levels of one game cover disjoint
// price bands, so each (game, level) pair keeps its own history.
type WindowKey struct {
	Game  market.Game
	Level market.Level
}

// KeyOf returns the window a request's snapshots belong to
func KeyOf(req market.ScanRequest) WindowKey {
	return WindowKey{Game: req.Game, Level: req.Level}
}

// Next returns the wait before the next cycle. The most volatile window among keys
// decides; with no usable history the wait is Max. Result is always within [Min, Max].
func (c IntervalConfig) Next(tracker *VolatilityTracker, keys []WindowKey) time.Duration {
	highest, found := 0.0, false
	for _, k := range keys {
		if cv, ok := tracker.Score(k); ok {
			if !found || cv > highest {
				highest = cv
			}
			found = true
		}
	}
	if !found {
		return c.Max
	}
	return c.ForScore(highest)
}

// ForScore interpolates linearly between Max (calm) and Min (volatile)
func (c IntervalConfig) ForScore(cv float64) time.Duration {
	t := utils.Clamp((cv-c.Low)/(c.High-c.Low), 0, 1)
	d := time.Duration(utils.Lerp(float64(c.Max), float64(c.Min), t))
	return time.Duration(utils.Clamp(float64(d), float64(c.Min), float64(c.Max)))
}

// VolatilityTracker keeps a short rolling window of price snapshots per (game, level).
// Held in memory only.
type VolatilityTracker struct {
	mu      sync.Mutex
	window  int
	samples map[WindowKey][]float64
}

// NewVolatilityTracker creates a tracker keeping the last window snapshots per key
func NewVolatilityTracker(window int) *VolatilityTracker {
	if window < 2 {
		window = 2
	}
	return &VolatilityTracker{window: window, samples: make(map[WindowKey][]float64)}
}

// Observe appends a price snapshot, dropping the oldest beyond the window
func (v *VolatilityTracker) Observe(key WindowKey, price float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := append(v.samples[key], price)
	if len(s) > v.window {
		s = s[len(s)-v.window:]
	}
	v.samples[key] = s
}

// Score returns the coefficient of variation for key; ok is false with fewer than two snapshots
func (v *VolatilityTracker) Score(key WindowKey) (float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.samples[key]
	if len(s) < 2 {
		return 0, false
	}
	return utils.CoefficientOfVariation(s), true
}

// Samples returns a copy of the window for key
func (v *VolatilityTracker) Samples(key WindowKey) []float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]float64, len(v.samples[key]))
	copy(out, v.samples[key])
	return out
}
