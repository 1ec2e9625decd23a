package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andrescamacho/marketscan-go/internal/adapters/grpc"
	"github.com/andrescamacho/marketscan-go/internal/adapters/metrics"
	"github.com/andrescamacho/marketscan-go/internal/application/setup"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/config"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/logging"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/pidfile"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: search ./config.yaml, ./configs, /etc/marketscan)")
	maxCycles := flag.Int("cycles", -1, "Stop after this many scan cycles (overrides daemon.max_cycles)")
	flag.Parse()

	fmt.Println("marketscan daemon v0.1.0")
	fmt.Println("========================")

	fmt.Println("Loading configuration...")
	cfg := config.MustLoadConfig(*configPath)
	if *maxCycles >= 0 {
		cfg.Daemon.MaxCycles = *maxCycles
	}

	logger, logCloser, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logCloser.Close()
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("daemon stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	if cfg.Daemon.PIDFile != "" {
		pf := pidfile.New(cfg.Daemon.PIDFile)
		if err := pf.Acquire(); err != nil {
			return err
		}
		defer func() {
			if err := pf.Release(); err != nil {
				logger.Warn("failed to release PID file", zap.Error(err))
			}
		}()
	}

	requests, err := setup.ScanRequests(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := setup.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("error while closing components", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		address := net.JoinHostPort(cfg.Metrics.Host, strconv.Itoa(cfg.Metrics.Port))
		server, err := metrics.NewServer(address, cfg.Metrics.Path, logger.Named("metrics"))
		if err != nil {
			return err
		}
		g.Go(func() error { return server.Start(gctx) })
		components.ClientState.Start(gctx, cfg.Metrics.PollInterval)
	}

	if cfg.Daemon.HealthAddress != "" {
		health, err := grpc.NewHealthServer(cfg.Daemon.HealthAddress, components.Client,
			cfg.Daemon.HealthRefreshInterval, logger.Named("health"))
		if err != nil {
			return err
		}
		g.Go(func() error { return health.Start(gctx) })
	}

	logger.Info("starting scan loop",
		zap.Int("requests", len(requests)),
		zap.Int("max_cycles", cfg.Daemon.MaxCycles),
	)
	g.Go(func() error {
		err := components.Runner.Run(gctx, requests, cfg.Daemon.MaxCycles)
		// a bounded run finishing is a normal shutdown for the servers too
		stop()
		return err
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return ignoreCanceled(err)
	case <-ctx.Done():
	}

	logger.Info("shutdown requested", zap.Duration("timeout", cfg.Daemon.ShutdownTimeout))
	select {
	case err := <-done:
		return ignoreCanceled(err)
	case <-time.After(cfg.Daemon.ShutdownTimeout):
		return fmt.Errorf("shutdown timed out after %s", cfg.Daemon.ShutdownTimeout)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
