package helpers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

// ErrMockPricing is returned for titles registered with FailTitle
var ErrMockPricing = errors.New("mock pricing failure")

// MockPriceSource serves fixed sell estimates by title and tracks peak concurrency
type MockPriceSource struct {
	mu       sync.Mutex
	prices   map[string]int64
	failing  map[string]bool
	delay    time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

// NewMockPriceSource creates an empty mock
func NewMockPriceSource() *MockPriceSource {
	return &MockPriceSource{prices: make(map[string]int64), failing: make(map[string]bool)}
}

// SetPrice registers the sell estimate for a title
func (m *MockPriceSource) SetPrice(title string, priceMinorUnits int64) *MockPriceSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[title] = priceMinorUnits
	return m
}

// FailTitle makes lookups for title return ErrMockPricing
func (m *MockPriceSource) FailTitle(title string) *MockPriceSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[title] = true
	return m
}

// SetDelay makes every lookup take d (or until ctx is done)
func (m *MockPriceSource) SetDelay(d time.Duration) *MockPriceSource {
	m.delay = d
	return m
}

// Calls returns the number of lookups performed
func (m *MockPriceSource) Calls() int {
	return int(m.calls.Load())
}

// PeakConcurrency returns the highest number of simultaneous lookups observed
func (m *MockPriceSource) PeakConcurrency() int {
	return int(m.peak.Load())
}

func (m *MockPriceSource) Name() string { return "mock" }

func (m *MockPriceSource) LookupSellEstimate(ctx context.Context, title string, game market.Game) (int64, bool, error) {
	m.calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return 0, false, ctx.Err()
		case <-time.After(m.delay):
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing[title] {
		return 0, false, ErrMockPricing
	}
	p, ok := m.prices[title]
	return p, ok, nil
}
