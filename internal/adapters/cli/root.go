package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// NewRootCommand creates the root command for the CLI
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "marketscan",
		Short: "marketscan - find arbitrage opportunities on the skins marketplace",
		Long: `marketscan lists marketplace items through per-level filters, prices them
against external sell estimates and ranks what clears the level's margin.

Examples:
  marketscan scan --game csgo --level boost
  marketscan scan --game dota2 --level medium --max-items 10 --output json
  marketscan levels --game rust
  marketscan history best --since 24h
  marketscan health --address localhost:50061
  marketscan config set-default --game csgo --level standard`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to config file (default: search ./config.yaml, ./configs, /etc/marketscan)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging on stderr")

	rootCmd.AddCommand(NewScanCommand())
	rootCmd.AddCommand(NewLevelsCommand())
	rootCmd.AddCommand(NewHistoryCommand())
	rootCmd.AddCommand(NewHealthCommand())
	rootCmd.AddCommand(NewConfigCommand())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
