package helpers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FakeItem is one listing served by FakeMarket
type FakeItem struct {
	ID         string
	Title      string
	PriceCents int64
	Category   string
	Rarity     string
	Exterior   string
	Sales24h   int
}

// FakeAggregate is the aggregate quote served for one title
type FakeAggregate struct {
	OrderBestCents int64
	OfferBestCents int64
}

// FakeMarket is an httptest marketplace speaking the listing and aggregate-price endpoints.
// It pages with an opaque cursor or limit/offset and can inject failure statuses.
type FakeMarket struct {
	mu         sync.Mutex
	server     *httptest.Server
	items      map[string][]FakeItem
	aggregates map[string]FakeAggregate
	failures   []int
	requests   map[string]int
	lastQuery  map[string]string
}

// NewFakeMarket starts a fake marketplace that closes with the test
func NewFakeMarket(t *testing.T) *FakeMarket {
	t.Helper()
	fm := &FakeMarket{
		items:      make(map[string][]FakeItem),
		aggregates: make(map[string]FakeAggregate),
		requests:   make(map[string]int),
		lastQuery:  make(map[string]string),
	}
	fm.server = httptest.NewServer(http.HandlerFunc(fm.serve))
	t.Cleanup(fm.server.Close)
	return fm
}

// URL returns the base URL of the fake
func (fm *FakeMarket) URL() string {
	return fm.server.URL
}

// AddItems appends listings for a wire game id
func (fm *FakeMarket) AddItems(gameID string, items ...FakeItem) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.items[gameID] = append(fm.items[gameID], items...)
}

// GenerateItems adds n listings priced by priceFn(i)
func (fm *FakeMarket) GenerateItems(gameID string, n int, category string, priceFn func(i int) int64) {
	items := make([]FakeItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, FakeItem{
			ID:         gameID + "-" + strconv.Itoa(i),
			Title:      "Item " + strconv.Itoa(i),
			PriceCents: priceFn(i),
			Category:   category,
			Sales24h:   10,
		})
	}
	fm.AddItems(gameID, items...)
}

// SetAggregate sets the aggregate quote for a title
func (fm *FakeMarket) SetAggregate(title string, agg FakeAggregate) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.aggregates[title] = agg
}

// FailNext makes the next n requests answer with status
func (fm *FakeMarket) FailNext(status, n int) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	for i := 0; i < n; i++ {
		fm.failures = append(fm.failures, status)
	}
}

// Requests returns how many requests hit path (failed ones included)
func (fm *FakeMarket) Requests(path string) int {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.requests[path]
}

// LastQuery returns the most recent value of a query parameter on the listing endpoint
func (fm *FakeMarket) LastQuery(param string) string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.lastQuery[param]
}

func (fm *FakeMarket) serve(w http.ResponseWriter, r *http.Request) {
	fm.mu.Lock()
	fm.requests[r.URL.Path]++
	if len(fm.failures) > 0 {
		status := fm.failures[0]
		fm.failures = fm.failures[1:]
		fm.mu.Unlock()
		w.WriteHeader(status)
		return
	}
	fm.mu.Unlock()

	switch r.URL.Path {
	case "/exchange/v1/market/items":
		fm.serveItems(w, r)
	case "/price-aggregator/v1/aggregated-prices":
		fm.serveAggregates(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (fm *FakeMarket) serveItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fm.mu.Lock()
	for key := range q {
		fm.lastQuery[key] = q.Get(key)
	}
	all := slices.Clone(fm.items[q.Get("gameId")])
	fm.mu.Unlock()

	matched := all[:0]
	for _, it := range all {
		if fakeItemMatches(it, q.Get("itemId"), q.Get("priceFrom"), q.Get("priceTo"), q.Get("treeFilters")) {
			matched = append(matched, it)
		}
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 100
	}
	start := 0
	if c := q.Get("cursor"); c != "" {
		start = decodeFakeCursor(c)
	} else if off, err := strconv.Atoi(q.Get("offset")); err == nil {
		start = off
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+limit, len(matched))

	objects := make([]map[string]any, 0, end-start)
	for _, it := range matched[start:end] {
		objects = append(objects, map[string]any{
			"itemId": it.ID,
			"title":  it.Title,
			"gameId": q.Get("gameId"),
			"price":  map[string]string{"USD": strconv.FormatInt(it.PriceCents, 10)},
			"extra": map[string]any{
				"category":       it.Category,
				"rarity":         it.Rarity,
				"exterior":       it.Exterior,
				"salesVolume24h": it.Sales24h,
			},
		})
	}

	cursor := ""
	if end < len(matched) {
		cursor = base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(end)))
	}
	writeFakeJSON(w, map[string]any{
		"objects": objects,
		"total":   map[string]int{"items": len(matched)},
		"cursor":  cursor,
	})
}

func fakeItemMatches(it FakeItem, itemID, priceFrom, priceTo, tree string) bool {
	if itemID != "" && it.ID != itemID {
		return false
	}
	if from, err := strconv.ParseInt(priceFrom, 10, 64); err == nil && from > 0 && it.PriceCents < from {
		return false
	}
	if to, err := strconv.ParseInt(priceTo, 10, 64); err == nil && to > 0 && it.PriceCents > to {
		return false
	}
	if tree == "" {
		return true
	}
	wanted := map[string][]string{}
	for _, part := range strings.Split(tree, ",") {
		dim, val, ok := strings.Cut(part, "[]=")
		if ok {
			wanted[dim] = append(wanted[dim], strings.ToLower(val))
		}
	}
	attrs := map[string]string{"category": it.Category, "rarity": it.Rarity, "exterior": it.Exterior}
	for dim, vals := range wanted {
		if !slices.Contains(vals, strings.ToLower(attrs[dim])) {
			return false
		}
	}
	return true
}

func decodeFakeCursor(c string) int {
	raw, err := base64.RawURLEncoding.DecodeString(c)
	if err != nil {
		return 0
	}
	n, _ := strconv.Atoi(string(raw))
	return n
}

func (fm *FakeMarket) serveAggregates(w http.ResponseWriter, r *http.Request) {
	titles := r.URL.Query()["Titles"]
	fm.mu.Lock()
	out := make([]map[string]any, 0, len(titles))
	for _, title := range titles {
		agg, ok := fm.aggregates[title]
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"title":          title,
			"orderBestPrice": strconv.FormatInt(agg.OrderBestCents, 10),
			"orderCount":     1,
			"offerBestPrice": strconv.FormatInt(agg.OfferBestCents, 10),
			"offerCount":     1,
		})
	}
	fm.mu.Unlock()
	writeFakeJSON(w, map[string]any{"aggregatedPrices": out, "nextCursor": ""})
}

func writeFakeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
