// Package setup assembles the marketplace client, pricing chain, scanner and sinks
// from configuration. Both binaries build through here so they wire identically.
package setup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
	"github.com/andrescamacho/marketscan-go/internal/adapters/credentials"
	"github.com/andrescamacho/marketscan-go/internal/adapters/messaging"
	"github.com/andrescamacho/marketscan-go/internal/adapters/metrics"
	"github.com/andrescamacho/marketscan-go/internal/adapters/persistence"
	"github.com/andrescamacho/marketscan-go/internal/adapters/pricing"
	"github.com/andrescamacho/marketscan-go/internal/application/scanning"
	"github.com/andrescamacho/marketscan-go/internal/domain/filtering"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
	"github.com/andrescamacho/marketscan-go/internal/domain/trading"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/config"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/database"
)

// streamMaxAge bounds how long published scan events are retained
const streamMaxAge = 24 * time.Hour

// Components holds everything a scan needs, built once per process
type Components struct {
	Client  *api.Client
	Prices  scanning.PriceSource
	Scanner *scanning.Scanner
	Runner  *scanning.Runner
	Sinks   []scanning.OpportunitySink

	// Journal is nil unless the database is enabled
	Journal *persistence.GormScanJournal

	// ClientState is nil unless metrics are enabled; the caller starts it
	ClientState *metrics.ClientStateCollector

	closers []func() error
}

// Option customizes Build
type Option func(*builder)

type builder struct {
	httpClient *http.Client
	clock      shared.Clock
	prices     scanning.PriceSource
	creds      credentials.Provider
	sinks      []scanning.OpportunitySink
}

// WithHTTPClient replaces the client's transport
func WithHTTPClient(hc *http.Client) Option {
	return func(b *builder) { b.httpClient = hc }
}

// WithClock injects the clock shared by the client, scanner and runner
func WithClock(clock shared.Clock) Option {
	return func(b *builder) { b.clock = clock }
}

// WithPriceSource bypasses the configured pricing chain
func WithPriceSource(ps scanning.PriceSource) Option {
	return func(b *builder) { b.prices = ps }
}

// WithCredentials replaces the config and environment credential chain
func WithCredentials(p credentials.Provider) Option {
	return func(b *builder) { b.creds = p }
}

// WithSinks appends extra sinks after the configured ones
func WithSinks(sinks ...scanning.OpportunitySink) Option {
	return func(b *builder) { b.sinks = append(b.sinks, sinks...) }
}

// Build wires the components described by cfg. On error everything opened so far is closed.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (_ *Components, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}
	if b.clock == nil {
		b.clock = shared.NewRealClock()
	}

	c := &Components{}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	var apiMetrics api.MetricsRecorder
	var scanMetrics scanning.MetricsRecorder
	if cfg.Metrics.Enabled {
		if !metrics.IsEnabled() {
			metrics.InitRegistry()
		}
		am := metrics.NewAPIMetricsCollector()
		if err := am.Register(); err != nil {
			return nil, fmt.Errorf("failed to register api metrics: %w", err)
		}
		sm := metrics.NewScanMetricsCollector()
		if err := sm.Register(); err != nil {
			return nil, fmt.Errorf("failed to register scan metrics: %w", err)
		}
		apiMetrics, scanMetrics = am, sm
	}

	creds := b.creds
	if creds == nil {
		creds = credentials.ChainProvider{
			credentials.NewKeyPairProvider(credentials.KeyPair{
				PublicKey: cfg.Credentials.PublicKey,
				SecretKey: cfg.Credentials.SecretKey,
			}),
			credentials.NewEnvProvider("", ""),
		}
	}

	clientOpts := []api.Option{api.WithClock(b.clock), api.WithLogger(logger.Named("api"))}
	if b.httpClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(b.httpClient))
	}
	if apiMetrics != nil {
		clientOpts = append(clientOpts, api.WithMetrics(apiMetrics))
	}
	c.Client, err = api.NewClient(ClientConfig(cfg), creds, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	c.Prices = b.prices
	if c.Prices == nil {
		c.Prices, err = c.buildPriceChain(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	fees, err := FeeSchedule(cfg)
	if err != nil {
		return nil, err
	}
	scannerOpts := []scanning.Option{scanning.WithClock(b.clock), scanning.WithLogger(logger.Named("scanner"))}
	if scanMetrics != nil {
		scannerOpts = append(scannerOpts, scanning.WithMetrics(scanMetrics))
	}
	c.Scanner = scanning.NewScanner(
		c.Client,
		c.Prices,
		filtering.NewPipeline(nil),
		trading.NewArbitrageAnalyzer(fees),
		ScannerConfig(cfg),
		scannerOpts...,
	)

	c.Sinks = []scanning.OpportunitySink{scanning.NewLogSink(logger.Named("results"), cfg.Daemon.LogTopN)}
	if cfg.Database.Enabled {
		if err := c.openJournal(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.NATS.Enabled {
		if err := c.openNATS(cfg, logger); err != nil {
			return nil, err
		}
	}
	c.Sinks = append(c.Sinks, b.sinks...)
	c.Runner = scanning.NewRunner(c.Scanner, c.Sinks, b.clock, logger.Named("runner"))

	if cfg.Metrics.Enabled {
		c.ClientState = metrics.NewClientStateCollector(c.Client.Health)
		if err := c.ClientState.Register(); err != nil {
			return nil, fmt.Errorf("failed to register client state metrics: %w", err)
		}
	}

	logger.Info("components ready",
		zap.String("base_url", cfg.API.BaseURL),
		zap.String("pricing", c.Prices.Name()),
		zap.Strings("sinks", sinkNames(c.Sinks)),
		zap.Bool("metrics", cfg.Metrics.Enabled),
	)
	return c, nil
}

// buildPriceChain resolves the configured sources in order. A redis entry with
// Redis disabled is skipped rather than failing the whole chain.
func (c *Components) buildPriceChain(ctx context.Context, cfg *config.Config, logger *zap.Logger) (scanning.PriceSource, error) {
	var sources []scanning.PriceSource
	for _, name := range cfg.Pricing.Sources {
		switch name {
		case "redis":
			if !cfg.Redis.Enabled {
				logger.Warn("redis pricing configured but redis is disabled, skipping")
				continue
			}
			rdb, err := c.openRedis(ctx, cfg.Redis)
			if err != nil {
				return nil, err
			}
			sources = append(sources, pricing.NewRedisSource(rdb, cfg.Pricing.RedisExpiration, logger.Named("pricing")))
		case "aggregate":
			sources = append(sources, pricing.NewAggregateSource(c.Client))
		case "static":
			static, err := staticSource(cfg.Pricing.Static)
			if err != nil {
				return nil, err
			}
			sources = append(sources, static)
		default:
			return nil, fmt.Errorf("unknown pricing source %q", name)
		}
	}
	if len(sources) == 0 {
		return nil, errors.New("no usable pricing source configured")
	}
	if len(sources) == 1 {
		return sources[0], nil
	}
	return pricing.NewChain(sources...), nil
}

func staticSource(entries []config.StaticPriceConfig) (*pricing.StaticSource, error) {
	src := pricing.NewStaticSource()
	for i, e := range entries {
		game, err := market.ParseGame(e.Game)
		if err != nil {
			return nil, fmt.Errorf("pricing.static[%d]: %w", i, err)
		}
		src.Set(game, e.Title, e.Price)
	}
	return src, nil
}

func (c *Components) openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	c.closers = append(c.closers, rdb.Close)
	return rdb, nil
}

func (c *Components) openJournal(cfg *config.Config) error {
	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, func() error { return database.Close(db) })
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate scan journal: %w", err)
	}
	c.Journal = persistence.NewGormScanJournal(db)
	c.Sinks = append(c.Sinks, c.Journal)
	return nil
}

func (c *Components) openNATS(cfg *config.Config, logger *zap.Logger) error {
	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("marketscan"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to nats at %s: %w", cfg.NATS.URL, err)
	}
	c.closers = append(c.closers, nc.Drain)

	js, err := nc.JetStream()
	if err != nil {
		return fmt.Errorf("failed to open jetstream: %w", err)
	}
	sink := messaging.NewNATSSink(js, cfg.NATS.Subject, logger.Named("nats"))
	if err := messaging.EnsureStream(js, cfg.NATS.Stream, sink.Subjects(), streamMaxAge, logger); err != nil {
		return err
	}
	c.Sinks = append(c.Sinks, sink)
	return nil
}

// Close releases connections in reverse order of opening
func (c *Components) Close() error {
	if c.ClientState != nil {
		c.ClientState.Stop()
	}
	var errs []error
	for _, closer := range slices.Backward(c.closers) {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func sinkNames(sinks []scanning.OpportunitySink) []string {
	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	return names
}
