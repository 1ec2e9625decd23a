package api

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"net/url"
	"strconv"
	"time"
)

// PaginationStrategy selects how successive pages are requested
type PaginationStrategy int

const (
	// StrategyOffset pages by limit/offset
	StrategyOffset PaginationStrategy = iota
	// StrategyCursor follows the opaque cursor returned by each page
	StrategyCursor
)

func (s PaginationStrategy) String() string {
	if s == StrategyCursor {
		return "cursor"
	}
	return "offset"
}

// PaginationSpec describes how one endpoint pages its results.
// Field names vary across marketplace endpoints, so they are per path.
type PaginationSpec struct {
	Strategy    PaginationStrategy
	ItemsField  string
	CursorField string
	CursorParam string
	LimitParam  string
	OffsetParam string
	PageSize    int
	Class       EndpointClass
	Cacheable   bool
	TTL         time.Duration
}

func (s PaginationSpec) supportsCursor() bool {
	return s.Strategy == StrategyCursor && s.CursorField != "" && s.CursorParam != ""
}

// DefaultPagination returns the pagination table for the known endpoints
func DefaultPagination() map[string]PaginationSpec {
	return map[string]PaginationSpec{
		PathMarketItems: {
			Strategy:    StrategyCursor,
			ItemsField:  "objects",
			CursorField: "cursor",
			CursorParam: "cursor",
			LimitParam:  "limit",
			OffsetParam: "offset",
			PageSize:    100,
			Class:       ClassMarketRead,
			Cacheable:   true,
		},
		PathAggregatedPrices: {
			Strategy:    StrategyCursor,
			ItemsField:  "aggregatedPrices",
			CursorField: "nextCursor",
			CursorParam: "Cursor",
			LimitParam:  "Limit",
			OffsetParam: "Offset",
			PageSize:    100,
			Class:       ClassPublicRead,
			Cacheable:   true,
			TTL:         30 * time.Second,
		},
		PathUserOffers: {
			Strategy:    StrategyOffset,
			ItemsField:  "Items",
			LimitParam:  "Limit",
			OffsetParam: "Offset",
			PageSize:    100,
			Class:       ClassMarketRead,
		},
		PathUserTargets: {
			Strategy:    StrategyOffset,
			ItemsField:  "Items",
			LimitParam:  "Limit",
			OffsetParam: "Offset",
			PageSize:    100,
			Class:       ClassMarketRead,
		},
	}
}

func defaultPaginationSpec() PaginationSpec {
	return PaginationSpec{
		Strategy:    StrategyOffset,
		ItemsField:  "objects",
		LimitParam:  "limit",
		OffsetParam: "offset",
		PageSize:    100,
		Class:       ClassMarketRead,
	}
}

type page struct {
	items  []json.RawMessage
	cursor string
}

func decodePage(body []byte, spec PaginationSpec) (page, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return page{}, fmt.Errorf("failed to decode page: %w", err)
	}

	var p page
	if itemsRaw, ok := raw[spec.ItemsField]; ok && string(itemsRaw) != "null" {
		if err := json.Unmarshal(itemsRaw, &p.items); err != nil {
			return page{}, fmt.Errorf("failed to decode %q: %w", spec.ItemsField, err)
		}
	}
	if spec.CursorField != "" {
		if cursorRaw, ok := raw[spec.CursorField]; ok && string(cursorRaw) != "null" {
			if err := json.Unmarshal(cursorRaw, &p.cursor); err != nil {
				return page{}, fmt.Errorf("failed to decode %q: %w", spec.CursorField, err)
			}
		}
	}
	return p, nil
}

// GetAllPaginated lazily walks every page of path, yielding raw item objects.
//
// Cursor paging is used when useCursor is set and the endpoint supports it; otherwise
// offset paging. Iteration stops after maxItems items (0 means unbounded), on an empty
// page, on a missing cursor, or when the consumer stops. Pages are only requested as
// the consumer pulls, so stopping early issues no further requests.
// A failed page yields its error once and ends the sequence.
func (c *Client) GetAllPaginated(ctx context.Context, path string, query url.Values, maxItems int, useCursor bool) iter.Seq2[json.RawMessage, error] {
	spec := c.paginationFor(path)
	cursorMode := useCursor && spec.supportsCursor()

	return func(yield func(json.RawMessage, error) bool) {
		emitted := 0
		offset := 0
		cursor := ""

		for {
			if maxItems > 0 && emitted >= maxItems {
				return
			}

			q := url.Values{}
			maps.Copy(q, query)
			limit := spec.PageSize
			if maxItems > 0 && maxItems-emitted < limit {
				limit = maxItems - emitted
			}
			q.Set(spec.LimitParam, strconv.Itoa(limit))
			if cursorMode {
				if cursor != "" {
					q.Set(spec.CursorParam, cursor)
				}
			} else {
				q.Set(spec.OffsetParam, strconv.Itoa(offset))
			}

			body, err := c.Get(ctx, path, q, RequestOptions{Class: spec.Class, Cacheable: spec.Cacheable, TTL: spec.TTL})
			if err != nil {
				yield(nil, err)
				return
			}
			p, err := decodePage(body, spec)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(p.items) == 0 {
				return
			}

			for _, item := range p.items {
				if maxItems > 0 && emitted >= maxItems {
					return
				}
				if !yield(item, nil) {
					return
				}
				emitted++
			}

			if cursorMode {
				if p.cursor == "" {
					return
				}
				if p.cursor == cursor {
					yield(nil, fmt.Errorf("pagination cursor did not advance on %s", path))
					return
				}
				cursor = p.cursor
			} else {
				offset += len(p.items)
			}
		}
	}
}
