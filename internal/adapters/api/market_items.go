package api

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andrescamacho/marketscan-go/internal/domain/filtering"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
)

// marketItemDTO mirrors one element of the "objects" array
type marketItemDTO struct {
	ItemID string `json:"itemId"`
	Title  string `json:"title"`
	GameID string `json:"gameId"`
	Price  struct {
		USD string `json:"USD"`
	} `json:"price"`
	Extra map[string]any `json:"extra"`
}

// salesVolumeKeys are the extra fields that may carry a 24h sales count
var salesVolumeKeys = []string{"salesVolume24h", "sales24h"}

func parseMinorUnits(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty price")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return d.Round(0).IntPart(), nil
}

func (d marketItemDTO) toDomain() (*market.Item, error) {
	price, err := parseMinorUnits(d.Price.USD)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", d.ItemID, err)
	}

	attrs := make(map[string]string, len(d.Extra))
	sales := 0
	for k, v := range d.Extra {
		switch val := v.(type) {
		case string:
			attrs[k] = val
		case bool:
			attrs[k] = strconv.FormatBool(val)
		case float64:
			attrs[k] = strconv.FormatFloat(val, 'f', -1, 64)
		}
	}
	for _, key := range salesVolumeKeys {
		if raw, ok := attrs[key]; ok {
			if n, err := strconv.Atoi(raw); err == nil {
				sales = n
			}
			delete(attrs, key)
		}
	}

	return market.NewItem(d.ItemID, d.Title, d.GameID, price, attrs, sales)
}

// DecodeMarketItem converts one raw "objects" element into a domain item
func DecodeMarketItem(raw json.RawMessage) (*market.Item, error) {
	var dto marketItemDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrMalformedItem, err)
	}
	item, err := dto.toDomain()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", market.ErrMalformedItem, err)
	}
	return item, nil
}

// ListMarketItems lazily lists items matching the server-side filters
func (c *Client) ListMarketItems(ctx context.Context, filters filtering.ServerFilters, maxItems int, useCursor bool) iter.Seq2[*market.Item, error] {
	return func(yield func(*market.Item, error) bool) {
		for raw, err := range c.GetAllPaginated(ctx, PathMarketItems, filters.Query(), maxItems, useCursor) {
			if err != nil {
				yield(nil, err)
				return
			}
			item, err := DecodeMarketItem(raw)
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// GetItem looks up a single listing by id
func (c *Client) GetItem(ctx context.Context, gameID, itemID string) (*market.Item, error) {
	if gameID == "" || itemID == "" {
		return nil, validationError("GET", PathMarketItems, "game id and item id are required")
	}
	query := url.Values{}
	query.Set("gameId", gameID)
	query.Set("itemId", itemID)
	query.Set("currency", "USD")
	query.Set("limit", "1")

	body, err := c.Get(ctx, PathMarketItems, query, RequestOptions{Class: ClassMarketRead, Cacheable: true})
	if err != nil {
		return nil, err
	}
	p, err := decodePage(body, c.paginationFor(PathMarketItems))
	if err != nil {
		return nil, err
	}
	for _, raw := range p.items {
		item, err := DecodeMarketItem(raw)
		if err != nil {
			return nil, err
		}
		if item.ID() == itemID {
			return item, nil
		}
	}
	return nil, shared.NewNotFoundError("item", itemID)
}

// AggregatedPrice is the best current buy order and sell offer for one title
type AggregatedPrice struct {
	Title          string
	OrderBestPrice int64
	OrderCount     int
	OfferBestPrice int64
	OfferCount     int
}

type aggregatedPriceDTO struct {
	Title      string `json:"title"`
	OrderPrice string `json:"orderBestPrice"`
	OrderCount int    `json:"orderCount"`
	OfferPrice string `json:"offerBestPrice"`
	OfferCount int    `json:"offerCount"`
}

// AggregatedPrices fetches aggregate quotes for titles of one game
func (c *Client) AggregatedPrices(ctx context.Context, gameID string, titles []string) ([]AggregatedPrice, error) {
	if gameID == "" || len(titles) == 0 {
		return nil, validationError("GET", PathAggregatedPrices, "game id and at least one title are required")
	}
	query := url.Values{}
	query.Set("GameID", gameID)
	for _, t := range titles {
		query.Add("Titles", t)
	}

	var out []AggregatedPrice
	for raw, err := range c.GetAllPaginated(ctx, PathAggregatedPrices, query, 0, true) {
		if err != nil {
			return nil, err
		}
		var dto aggregatedPriceDTO
		if err := json.Unmarshal(raw, &dto); err != nil {
			return nil, fmt.Errorf("failed to decode aggregated price: %w", err)
		}
		ap := AggregatedPrice{Title: dto.Title, OrderCount: dto.OrderCount, OfferCount: dto.OfferCount}
		if dto.OrderPrice != "" {
			if ap.OrderBestPrice, err = parseMinorUnits(dto.OrderPrice); err != nil {
				return nil, err
			}
		}
		if dto.OfferPrice != "" {
			if ap.OfferBestPrice, err = parseMinorUnits(dto.OfferPrice); err != nil {
				return nil, err
			}
		}
		out = append(out, ap)
	}
	return out, nil
}
