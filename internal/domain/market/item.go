package market

import (
	"errors"
	"fmt"
	"maps"
)

// Well-known attribute keys carried in Item.Attributes
const (
	AttrCategory = "category"
	AttrRarity   = "rarity"
	AttrExterior = "exterior"
	AttrQuality  = "quality"
)

// Item is one listed instance of a tradable asset (immutable value object).
// A new scan produces new instances; nothing mutates an Item after fetch.
type Item struct {
	id              string
	title           string
	gameID          string
	priceMinorUnits int64
	attributes      map[string]string
	salesVolume24h  int
}

// NewItem creates a validated Item. The attributes map is copied.
func NewItem(id, title, gameID string, priceMinorUnits int64, attributes map[string]string, salesVolume24h int) (*Item, error) {
	if id == "" {
		return nil, errors.New("item id cannot be empty")
	}
	if title == "" {
		return nil, fmt.Errorf("item %s: title cannot be empty", id)
	}
	if priceMinorUnits < 0 {
		return nil, fmt.Errorf("item %s: price must be non-negative, got %d", id, priceMinorUnits)
	}
	if salesVolume24h < 0 {
		salesVolume24h = 0
	}

	attrs := make(map[string]string, len(attributes))
	maps.Copy(attrs, attributes)

	return &Item{
		id:              id,
		title:           title,
		gameID:          gameID,
		priceMinorUnits: priceMinorUnits,
		attributes:      attrs,
		salesVolume24h:  salesVolume24h,
	}, nil
}

// Getters - provide read-only access to maintain immutability

func (i *Item) ID() string {
	return i.id
}

func (i *Item) Title() string {
	return i.title
}

func (i *Item) GameID() string {
	return i.gameID
}

func (i *Item) PriceMinorUnits() int64 {
	return i.priceMinorUnits
}

func (i *Item) SalesVolume24h() int {
	return i.salesVolume24h
}

// Attribute returns a single semantic tag and whether it was present
func (i *Item) Attribute(key string) (string, bool) {
	v, ok := i.attributes[key]
	return v, ok
}

// Attributes returns a copy of all semantic tags
func (i *Item) Attributes() map[string]string {
	out := make(map[string]string, len(i.attributes))
	maps.Copy(out, i.attributes)
	return out
}

// String returns a human-readable representation
func (i *Item) String() string {
	return fmt.Sprintf("Item{id=%s, title=%q, game=%s, price=%d}", i.id, i.title, i.gameID, i.priceMinorUnits)
}
