package scanning_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/marketscan-go/internal/application/scanning"
	"github.com/andrescamacho/marketscan-go/internal/domain/filtering"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
	"github.com/andrescamacho/marketscan-go/internal/domain/trading"
	"github.com/andrescamacho/marketscan-go/test/helpers"
)

type recordingSink struct {
	mu      sync.Mutex
	results []scanning.ScanResult
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(ctx context.Context, res scanning.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return s.err
}

func TestRunner_RunOncePublishesEveryResult(t *testing.T) {
	// Arrange
	lister := helpers.NewMockItemLister().AddItems(mustItem(t, "x", "X", "a8db", 1000))
	prices := helpers.NewMockPriceSource().SetPrice("X", 1500)
	scanner := newScanner(lister, prices, scanning.Config{})
	good := &recordingSink{}
	failing := &recordingSink{err: errors.New("sink down")}
	runner := scanning.NewRunner(scanner, []scanning.OpportunitySink{failing, good}, nil, nil)
	req := boostRequest(market.GameCSGO, 5)

	// Act
	results := runner.RunOnce(context.Background(), []market.ScanRequest{req, req})

	// Assert
	require.Len(t, results, 1)
	require.Len(t, good.results, 1, "a failing sink does not block the others")
	assert.Len(t, good.results[0].Opportunities, 1)
}

func TestRunner_RunWaitsAdaptiveInterval(t *testing.T) {
	// Arrange
	clock := shared.NewMockClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	lister := helpers.NewMockItemLister().AddItems(mustItem(t, "x", "X", "a8db", 1000))
	prices := helpers.NewMockPriceSource().SetPrice("X", 1500)
	cfg := scanning.Config{Interval: intervalConfig()}
	scanner := scanning.NewScanner(lister, prices, filtering.NewPipeline(testTable()),
		trading.NewArbitrageAnalyzer(trading.MustFeeSchedule(0.07, 0)), cfg, scanning.WithClock(clock))
	sink := &recordingSink{}
	runner := scanning.NewRunner(scanner, []scanning.OpportunitySink{sink}, clock, nil)

	// Act
	err := runner.Run(context.Background(), []market.ScanRequest{boostRequest(market.GameCSGO, 5)}, 3)

	// Assert
	require.NoError(t, err)
	assert.Len(t, sink.results, 3)
	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 2)
	for _, d := range sleeps {
		assert.Equal(t, cfg.Interval.Max, d, "identical prices mean zero volatility")
	}
}

func TestRunner_RejectsInvalidRequests(t *testing.T) {
	runner := scanning.NewRunner(newScanner(helpers.NewMockItemLister(), helpers.NewMockPriceSource(), scanning.Config{}), nil, nil, nil)

	assert.Error(t, runner.Run(context.Background(), nil, 1))
	assert.Error(t, runner.Run(context.Background(), []market.ScanRequest{{Game: "nope"}}, 1))
}

func TestRunner_StopsOnCancellation(t *testing.T) {
	scanner := newScanner(helpers.NewMockItemLister(), helpers.NewMockPriceSource(), scanning.Config{
		Interval: scanning.IntervalConfig{Min: time.Hour, Max: time.Hour},
	})
	runner := scanning.NewRunner(scanner, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- runner.Run(ctx, []market.ScanRequest{boostRequest(market.GameCSGO, 1)}, 0) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
}
