package scanning

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/andrescamacho/marketscan-go/internal/application/common"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

// Runner repeats ScanMany on the adaptive interval and fans results out to sinks
type Runner struct {
	scanner *Scanner
	sinks   []OpportunitySink
	clock   shared.Clock
	logger  *zap.Logger
}

// NewRunner creates a runner; if clock is nil, uses RealClock
func NewRunner(scanner *Scanner, sinks []OpportunitySink, clock shared.Clock, logger *zap.Logger) *Runner {
	if clock == nil {
		clock = shared.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{scanner: scanner, sinks: sinks, clock: clock, logger: logger}
}

// RunOnce executes one cycle and publishes every result
func (r *Runner) RunOnce(ctx context.Context, requests []market.ScanRequest) map[market.ScanRequest]ScanResult {
	results := r.scanner.ScanMany(ctx, requests)
	published := make(map[market.ScanRequest]bool, len(results))
	for _, req := range requests {
		res, ok := results[req]
		if !ok || published[req] || res.Outcome() == OutcomeCancelled {
			continue
		}
		published[req] = true
		r.publish(ctx, res)
	}
	return results
}

func (r *Runner) publish(ctx context.Context, res ScanResult) {
	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, res); err != nil {
			r.logger.Warn("sink publish failed",
				zap.String("sink", sink.Name()),
				zap.String("scan_id", res.ScanID),
				zap.Error(err),
			)
		}
	}
}

// Run loops until ctx is cancelled, waiting the adaptive interval between cycles.
// maxCycles of zero runs forever. Returns nil on cancellation.
func (r *Runner) Run(ctx context.Context, requests []market.ScanRequest, maxCycles int) error {
	if len(requests) == 0 {
		return errors.New("no scan requests configured")
	}
	for _, req := range requests {
		if err := req.Validate(); err != nil {
			return err
		}
	}
	for cycle := 1; maxCycles == 0 || cycle <= maxCycles; cycle++ {
		cycleLogger := r.logger.With(zap.Int("cycle", cycle))
		cycleCtx := common.WithLogger(ctx, cycleLogger)

		started := r.clock.Now()
		results := r.RunOnce(cycleCtx, requests)
		if ctx.Err() != nil {
			return nil
		}

		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
			}
		}
		wait := r.scanner.NextInterval(requests)
		cycleLogger.Info("scan cycle finished",
			zap.Int("requests", len(results)),
			zap.Int("failed", failed),
			zap.Duration("took", r.clock.Now().Sub(started)),
			zap.Duration("next_in", wait),
		)

		if maxCycles != 0 && cycle == maxCycles {
			break
		}
		if err := r.clock.Sleep(ctx, wait); err != nil {
			return nil
		}
	}
	return nil
}

// LogSink writes each result to the logger
type LogSink struct {
	logger *zap.Logger
	topN   int
}

// NewLogSink creates a sink logging at most topN opportunities per result
func NewLogSink(logger *zap.Logger, topN int) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger, topN: topN}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(ctx context.Context, res ScanResult) error {
	fields := []zap.Field{
		zap.String("scan_id", res.ScanID),
		zap.String("game", string(res.Request.Game)),
		zap.String("level", string(res.Request.Level)),
		zap.String("outcome", res.Outcome()),
		zap.Duration("duration", res.Duration.Round(time.Millisecond)),
	}
	if res.Err != nil {
		s.logger.Warn("scan result", append(fields, zap.Bool("degraded", res.Degraded), zap.Error(res.Err))...)
		return nil
	}

	s.logger.Info("scan result", append(fields, zap.Int("opportunities", len(res.Opportunities)))...)
	for i, opp := range res.Opportunities {
		if s.topN > 0 && i >= s.topN {
			break
		}
		s.logger.Info("opportunity",
			zap.String("scan_id", res.ScanID),
			zap.Int("rank", i+1),
			zap.String("item_id", opp.Item().ID()),
			zap.String("title", opp.Item().Title()),
			zap.Int64("buy", opp.BuyPriceMinorUnits()),
			zap.Int64("sell_estimate", opp.EstimatedSellPriceMinorUnits()),
			zap.Int64("net_profit", opp.NetProfitMinorUnits()),
			zap.Float64("net_profit_pct", opp.NetProfitPercent()),
		)
	}
	return nil
}
