package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
	grpcAdapter "github.com/andrescamacho/marketscan-go/internal/adapters/grpc"
)

// NewHealthCommand creates the health command
func NewHealthCommand() *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the scan daemon's circuit breakers",
		Long: `Query the daemon's gRPC health service. The daemon reports SERVING while
the market-read circuit is closed; each endpoint class is listed separately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if address == "" {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				address = cfg.Daemon.HealthAddress
			}
			if address == "" {
				return fmt.Errorf("no health address: pass --address or set daemon.health_address")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			report, err := grpcAdapter.CheckHealth(ctx, address)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if report.Serving() {
				fmt.Fprintln(out, "✓ Daemon is healthy")
			} else {
				fmt.Fprintln(out, "✗ Daemon is degraded")
			}
			fmt.Fprintf(out, "  Address:      %s\n", address)
			fmt.Fprintf(out, "  Overall:      %s\n", report.Overall)
			for _, class := range api.KnownClasses() {
				fmt.Fprintf(out, "  %-13s %s\n", string(class)+":", report.Classes[class])
			}

			if !report.Serving() {
				return fmt.Errorf("daemon reports %s", report.Overall)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Daemon health address (default: daemon.health_address)")
	return cmd
}
