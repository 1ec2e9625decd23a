package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/config"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/logging"
)

const (
	fallbackGame     = market.GameCSGO
	fallbackLevel    = market.LevelBoost
	fallbackMaxItems = 20
)

// loadConfig loads the file named by --config, or searches the default paths
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newCLILogger logs to stderr so stdout stays clean for tables and JSON.
// Only warnings show unless --verbose is set.
func newCLILogger(cfg *config.Config) (*zap.Logger, io.Closer, error) {
	lc := cfg.Logging
	lc.Output = "stderr"
	lc.Format = "text"
	lc.Level = "warn"
	if verbose {
		lc.Level = "debug"
	}
	return logging.NewLogger(lc)
}

// scanFlags are the user-facing knobs of a scan request
type scanFlags struct {
	game      string
	level     string
	maxItems  int
	priceFrom string
	priceTo   string
	paging    string
}

// resolveScanRequest builds a request from flags, falling back to user defaults and then
// to csgo/boost/20. Prices are given in USD and converted to cents.
func resolveScanRequest(f scanFlags, user *config.UserConfig) (market.ScanRequest, error) {
	gameName := firstNonEmpty(f.game, user.DefaultGame, string(fallbackGame))
	levelName := firstNonEmpty(f.level, user.DefaultLevel, string(fallbackLevel))

	game, err := market.ParseGame(gameName)
	if err != nil {
		return market.ScanRequest{}, err
	}
	level, err := market.ParseLevel(levelName)
	if err != nil {
		return market.ScanRequest{}, err
	}

	maxItems := f.maxItems
	if maxItems == 0 {
		maxItems = user.DefaultMaxItems
	}
	if maxItems == 0 {
		maxItems = fallbackMaxItems
	}

	from, err := parseUSD(f.priceFrom)
	if err != nil {
		return market.ScanRequest{}, fmt.Errorf("--price-from: %w", err)
	}
	to, err := parseUSD(f.priceTo)
	if err != nil {
		return market.ScanRequest{}, fmt.Errorf("--price-to: %w", err)
	}

	var useCursor bool
	switch strings.ToLower(f.paging) {
	case "", "cursor":
		useCursor = true
	case "offset":
		useCursor = false
	default:
		return market.ScanRequest{}, fmt.Errorf("--paging must be cursor or offset, got %q", f.paging)
	}

	req := market.ScanRequest{
		Game:       game,
		Level:      level,
		MaxItems:   maxItems,
		PriceRange: market.PriceRange{MinMinorUnits: from, MaxMinorUnits: to},
		UseCursor:  useCursor,
	}
	return req, req.Validate()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// parseUSD converts "12.34" into 1234 cents; empty means unbounded
func parseUSD(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q must not be negative", s)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// formatUSD renders cents as dollars with two decimals
func formatUSD(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}
