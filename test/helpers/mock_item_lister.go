package helpers

import (
	"context"
	"iter"
	"sync"

	"github.com/andrescamacho/marketscan-go/internal/domain/filtering"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
)

// MockItemLister serves a fixed item list per wire game id and records the filters it saw
type MockItemLister struct {
	mu      sync.Mutex
	items   map[string][]*market.Item
	errs    map[string]error
	filters []filtering.ServerFilters
}

// NewMockItemLister creates an empty lister
func NewMockItemLister() *MockItemLister {
	return &MockItemLister{items: make(map[string][]*market.Item), errs: make(map[string]error)}
}

// AddItems registers items under their own game id
func (m *MockItemLister) AddItems(items ...*market.Item) *MockItemLister {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.items[it.GameID()] = append(m.items[it.GameID()], it)
	}
	return m
}

// FailGame makes listings for a wire game id fail with err after no items
func (m *MockItemLister) FailGame(gameID string, err error) *MockItemLister {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[gameID] = err
	return m
}

// Filters returns every filter payload received
func (m *MockItemLister) Filters() []filtering.ServerFilters {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]filtering.ServerFilters, len(m.filters))
	copy(out, m.filters)
	return out
}

func (m *MockItemLister) ListMarketItems(ctx context.Context, filters filtering.ServerFilters, maxItems int, useCursor bool) iter.Seq2[*market.Item, error] {
	m.mu.Lock()
	m.filters = append(m.filters, filters)
	items := m.items[filters.GameID]
	err := m.errs[filters.GameID]
	m.mu.Unlock()

	return func(yield func(*market.Item, error) bool) {
		if err != nil {
			yield(nil, err)
			return
		}
		for i, it := range items {
			if maxItems > 0 && i >= maxItems {
				return
			}
			if ctx.Err() != nil {
				yield(nil, ctx.Err())
				return
			}
			if !yield(it, nil) {
				return
			}
		}
	}
}
