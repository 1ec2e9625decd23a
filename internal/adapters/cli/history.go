package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrescamacho/marketscan-go/internal/adapters/persistence"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/database"
)

// NewHistoryCommand creates the history command with subcommands
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the scan journal",
		Long: `Inspect scan results recorded by the daemon or by 'scan --journal'.

Examples:
  marketscan history list --limit 20
  marketscan history best --since 6h
  marketscan history prune --older-than 720h`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryBestCommand())
	cmd.AddCommand(newHistoryPruneCommand())

	return cmd
}

// openJournal connects to the configured journal database
func openJournal() (*persistence.GormScanJournal, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("failed to migrate scan journal: %w", err)
	}
	return persistence.NewGormScanJournal(db), func() { _ = database.Close(db) }, nil
}

func newHistoryListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent scan runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, done, err := openJournal()
			if err != nil {
				return err
			}
			defer done()

			runs, err := journal.FindRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scans recorded.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tGAME\tLEVEL\tOUTCOME\tFETCHED\tMATCHED\tOPPS\tBEST\tTOOK")
			fmt.Fprintln(w, "-------\t----\t-----\t-------\t-------\t-------\t----\t----\t----")
			for _, run := range runs {
				best := "-"
				if len(run.Opportunities) > 0 {
					best = fmt.Sprintf("%.2f%%", run.Opportunities[0].NetProfitPercent)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.Game, run.Level, run.Outcome,
					run.ItemsFetched, run.ItemsMatched, len(run.Opportunities), best,
					(time.Duration(run.DurationMs) * time.Millisecond).String(),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	return cmd
}

func newHistoryBestCommand() *cobra.Command {
	var (
		since time.Duration
		limit int
	)

	cmd := &cobra.Command{
		Use:   "best",
		Short: "Show the most profitable opportunities seen recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, done, err := openJournal()
			if err != nil {
				return err
			}
			defer done()

			opps, err := journal.FindBestOpportunities(cmd.Context(), time.Now().Add(-since), limit)
			if err != nil {
				return err
			}
			if len(opps) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No opportunities in the last %s.\n", since)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEEN\tITEM\tBUY\tSELL EST.\tNET PROFIT\tMARGIN\tSOURCE")
			fmt.Fprintln(w, "----\t----\t---\t---------\t----------\t------\t------")
			for _, o := range opps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f%%\t%s\n",
					o.DiscoveredAt.Local().Format("01-02 15:04"),
					o.Title,
					formatUSD(o.BuyPrice), formatUSD(o.SellEstimate), formatUSD(o.NetProfit),
					o.NetProfitPercent, o.SellSource,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "Look back this far")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum opportunities to show")
	return cmd
}

func newHistoryPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journal entries older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			journal, done, err := openJournal()
			if err != nil {
				return err
			}
			defer done()

			n, err := journal.PruneBefore(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Pruned %d scan runs\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Delete runs started before now minus this")
	return cmd
}
