package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/config"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration and user preferences",
		Long: `Manage configuration and user preferences.

Configuration comes from config.yaml, MS_* environment variables and defaults.
User preferences (default game, level and result size) live in
~/.marketscan/config.json and never contain keys.`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetDefaultCommand())
	cmd.AddCommand(newConfigClearCommand())

	return cmd
}

// newConfigShowCommand creates the config show subcommand
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			handler, err := config.NewUserConfigHandler()
			if err != nil {
				return fmt.Errorf("failed to create user config handler: %w", err)
			}
			userCfg, err := handler.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := func(format string, a ...any) { fmt.Fprintf(out, format, a...) }

			p("User Preferences:\n")
			p("  Config file:      %s\n", handler.GetConfigPath())
			p("  Default Game:     %s\n", orUnset(userCfg.DefaultGame))
			p("  Default Level:    %s\n", orUnset(userCfg.DefaultLevel))
			if userCfg.DefaultMaxItems > 0 {
				p("  Default Max:      %d\n", userCfg.DefaultMaxItems)
			}

			p("\nMarketplace API:\n")
			p("  Base URL:         %s\n", cfg.API.BaseURL)
			p("  Timeout:          %s\n", cfg.API.Timeout)
			p("  Public Key:       %s\n", maskKey(cfg.Credentials.PublicKey))
			p("  Secret Key:       %s\n", describeSecret(cfg.Credentials.SecretKey.IsZero(), cfg.Credentials.SecretKey))
			rl := cfg.API.RateLimits
			p("  Rate Limits:      market-read %.1f/s (burst %d), public-read %.1f/s (burst %d), order-write %.1f/s (burst %d)\n",
				rl.MarketRead.RequestsPerSecond, rl.MarketRead.Burst,
				rl.PublicRead.RequestsPerSecond, rl.PublicRead.Burst,
				rl.OrderWrite.RequestsPerSecond, rl.OrderWrite.Burst)
			p("  Max Attempts:     %d (backoff %s x%.1f, max %s)\n",
				cfg.API.Retry.MaxAttempts, cfg.API.Retry.BackoffBase, cfg.API.Retry.Multiplier, cfg.API.Retry.MaxBackoff)
			p("  Breaker:          %d failures in %s, open %s\n",
				cfg.Breaker.FailureThreshold, cfg.Breaker.Window, cfg.Breaker.OpenDuration)
			p("  Cache:            %d entries, ttl %s\n", cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL)

			p("\nScanner:\n")
			p("  Concurrency:      %d scans, %d lookups per scan\n", cfg.Scanner.Concurrency, cfg.Scanner.PricingConcurrency)
			p("  Fees:             sell %.2f%%, buy %.2f%%\n", cfg.Scanner.SellFee*100, cfg.Scanner.BuyFee*100)
			p("  Interval:         %s - %s\n", cfg.Scanner.MinInterval, cfg.Scanner.MaxInterval)
			p("  Pricing:          %s\n", strings.Join(cfg.Pricing.Sources, " -> "))
			for _, r := range cfg.Scanner.Requests {
				p("  Request:          %s/%s max %d (%s)\n", r.Game, r.Level, r.MaxItems, r.Paging)
			}

			p("\nIntegrations:\n")
			p("  Redis:            %s\n", enabled(cfg.Redis.Enabled, cfg.Redis.Addr))
			p("  NATS:             %s\n", enabled(cfg.NATS.Enabled, cfg.NATS.URL+" "+cfg.NATS.Subject+".>"))
			dbTarget := cfg.Database.Path
			if cfg.Database.Type == "postgres" {
				dbTarget = maskPassword(cfg.Database.URL)
				if dbTarget == "" {
					dbTarget = fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
				}
			}
			p("  Journal:          %s\n", enabled(cfg.Database.Enabled, cfg.Database.Type+" "+dbTarget))
			p("  Metrics:          %s\n", enabled(cfg.Metrics.Enabled, fmt.Sprintf("%s:%d%s", cfg.Metrics.Host, cfg.Metrics.Port, cfg.Metrics.Path)))
			p("  Health:           %s\n", orUnset(cfg.Daemon.HealthAddress))

			p("\nLogging:\n")
			p("  Level:            %s\n", cfg.Logging.Level)
			p("  Format:           %s\n", cfg.Logging.Format)
			p("  Output:           %s\n", cfg.Logging.Output)

			return nil
		},
	}
}

// newConfigSetDefaultCommand creates the config set-default subcommand
func newConfigSetDefaultCommand() *cobra.Command {
	var (
		game     string
		level    string
		maxItems int
	)

	cmd := &cobra.Command{
		Use:   "set-default",
		Short: "Set the default scan request",
		Long: `Set the game, level and result size used when 'scan' is run without flags.

Examples:
  marketscan config set-default --game csgo --level standard
  marketscan config set-default --game rust --level boost --max-items 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := market.ParseGame(game)
			if err != nil {
				return err
			}
			l, err := market.ParseLevel(level)
			if err != nil {
				return err
			}
			if maxItems < 0 {
				return fmt.Errorf("--max-items must not be negative")
			}

			handler, err := config.NewUserConfigHandler()
			if err != nil {
				return fmt.Errorf("failed to create user config handler: %w", err)
			}
			if err := handler.SetDefaultScan(string(g), string(l), maxItems); err != nil {
				return fmt.Errorf("failed to set default scan: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "✓ Default scan set")
			fmt.Fprintf(out, "  Game:  %s\n", g)
			fmt.Fprintf(out, "  Level: %s\n", l)
			if maxItems > 0 {
				fmt.Fprintf(out, "  Max:   %d\n", maxItems)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&game, "game", "", "Default game")
	cmd.Flags().StringVar(&level, "level", "", "Default level")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "Default result size")
	_ = cmd.MarkFlagRequired("game")
	_ = cmd.MarkFlagRequired("level")

	return cmd
}

// newConfigClearCommand creates the config clear subcommand
func newConfigClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear stored user preferences",
		RunE: func(cmd *cobra.Command, args []string) error {
			handler, err := config.NewUserConfigHandler()
			if err != nil {
				return fmt.Errorf("failed to create user config handler: %w", err)
			}
			if err := handler.Clear(); err != nil {
				return fmt.Errorf("failed to clear user config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ User preferences cleared")
			return nil
		},
	}
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func enabled(on bool, detail string) string {
	if !on {
		return "disabled"
	}
	return detail
}

// maskKey keeps the first four characters of a public key
func maskKey(key string) string {
	switch {
	case key == "":
		return "(not set)"
	case len(key) <= 4:
		return "****"
	default:
		return key[:4] + strings.Repeat("*", 8)
	}
}

func describeSecret(missing bool, secret fmt.Stringer) string {
	if missing {
		return "(not set)"
	}
	return secret.String()
}

// maskPassword hides the password of a connection URL
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}
