package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrescamacho/marketscan-go/internal/adapters/messaging"
	"github.com/andrescamacho/marketscan-go/internal/application/scanning"
	"github.com/andrescamacho/marketscan-go/internal/application/setup"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/config"
)

// NewScanCommand creates the one-shot scan command
func NewScanCommand() *cobra.Command {
	var (
		flags   scanFlags
		output  string
		journal bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one arbitrage scan and print the ranked opportunities",
		Long: `Run a single scan for one game and level.

Listings are fetched through the level's server-side filters, re-checked on
the client, priced with the configured sell-estimate sources and ranked by
net profit percentage. Missing flags fall back to 'config set-default' values.

Examples:
  marketscan scan
  marketscan scan --game dota2 --level medium --max-items 10
  marketscan scan --game csgo --level boost --price-to 2.50 --paging offset
  marketscan scan --output json --journal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "table" && output != "json" {
				return fmt.Errorf("--output must be table or json, got %q", output)
			}

			userCfg := &config.UserConfig{}
			if handler, err := config.NewUserConfigHandler(); err == nil {
				if loaded, err := handler.Load(); err == nil {
					userCfg = loaded
				}
			}
			req, err := resolveScanRequest(flags, userCfg)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// one-shot scans never publish or serve metrics
			cfg.NATS.Enabled = false
			cfg.Metrics.Enabled = false
			cfg.Database.Enabled = journal

			logger, closer, err := newCLILogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			components, err := setup.Build(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			res := components.Runner.RunOnce(ctx, []market.ScanRequest{req})[req]
			if res.Err != nil {
				if res.Degraded {
					return fmt.Errorf("marketplace temporarily unavailable, try again later: %w", res.Err)
				}
				return fmt.Errorf("scan failed: %w", res.Err)
			}

			out := cmd.OutOrStdout()
			if output == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(messaging.NewScanEvent(res))
			}
			printScanResult(out, res)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.game, "game", "", "Game: csgo, dota2, tf2, rust")
	cmd.Flags().StringVar(&flags.level, "level", "", "Level: boost, standard, medium, advanced, pro")
	cmd.Flags().IntVar(&flags.maxItems, "max-items", 0, "Maximum opportunities to return")
	cmd.Flags().StringVar(&flags.priceFrom, "price-from", "", "Lowest listing price in USD")
	cmd.Flags().StringVar(&flags.priceTo, "price-to", "", "Highest listing price in USD")
	cmd.Flags().StringVar(&flags.paging, "paging", "cursor", "Paging strategy: cursor or offset")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or json")
	cmd.Flags().BoolVar(&journal, "journal", false, "Record the result in the scan journal database")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Abort the scan after this long")

	return cmd
}

func printScanResult(out io.Writer, res scanning.ScanResult) {
	fmt.Fprintf(out, "Scan %s: %s/%s in %s\n", res.ScanID, res.Request.Game, res.Request.Level,
		res.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  Fetched: %d  Matched: %d  No estimate: %d  Pricing errors: %d  Below margin: %d\n\n",
		res.Stats.ItemsFetched, res.Stats.ItemsMatched, res.Stats.PriceUnavailable,
		res.Stats.PricingFailures, res.Stats.BelowThreshold)

	if len(res.Opportunities) == 0 {
		fmt.Fprintln(out, "No opportunities found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tITEM\tBUY\tSELL EST.\tNET PROFIT\tMARGIN\tSALES/24H\tSOURCE")
	fmt.Fprintln(w, "-\t----\t---\t---------\t----------\t------\t---------\t------")
	for i, opp := range res.Opportunities {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%.2f%%\t%d\t%s\n",
			i+1,
			opp.Item().Title(),
			formatUSD(opp.BuyPriceMinorUnits()),
			formatUSD(opp.EstimatedSellPriceMinorUnits()),
			formatUSD(opp.NetProfitMinorUnits()),
			opp.NetProfitPercent(),
			opp.Item().SalesVolume24h(),
			opp.SellSource(),
		)
	}
	w.Flush()
}
