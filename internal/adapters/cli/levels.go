package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andrescamacho/marketscan-go/internal/domain/filtering"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

// NewLevelsCommand prints the built-in filter table
func NewLevelsCommand() *cobra.Command {
	var gameName string

	cmd := &cobra.Command{
		Use:   "levels",
		Short: "Show the price band, margin and filters of every level",
		RunE: func(cmd *cobra.Command, args []string) error {
			games := market.SupportedGames()
			if gameName != "" {
				game, err := market.ParseGame(gameName)
				if err != nil {
					return err
				}
				games = []market.Game{game}
			}

			table := filtering.DefaultTable()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "GAME\tLEVEL\tPRICE\tMIN MARGIN\tMIN SALES\tCATEGORIES")
			fmt.Fprintln(w, "----\t-----\t-----\t----------\t---------\t----------")
			for _, game := range games {
				for _, level := range market.AllLevels {
					f, ok := table.Lookup(game, level)
					if !ok {
						continue
					}
					fmt.Fprintf(w, "%s\t%s\t%s - %s\t%.1f%%\t%d\t%s\n",
						game, level,
						formatUSD(f.PriceRange.MinMinorUnits), formatUSD(f.PriceRange.MaxMinorUnits),
						f.MinProfitPercent, f.MinSalesVolume24h, orAny(f.Categories),
					)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&gameName, "game", "", "Only show one game")
	return cmd
}

func orAny(values []string) string {
	if len(values) == 0 {
		return "any"
	}
	return strings.Join(values, ", ")
}
