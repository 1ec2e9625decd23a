package filtering

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Tree filter dimensions understood by the marketplace
const (
	DimensionCategory = "category"
	DimensionRarity   = "rarity"
	DimensionExterior = "exterior"
)

// ServerFilters is the minimal payload sent upstream to narrow a listing request
type ServerFilters struct {
	GameID    string
	Currency  string
	PriceFrom int64
	PriceTo   int64
	OrderBy   string
	OrderDir  string
	Tree      map[string][]string
}

// Values returns the tree filter values for one dimension (nil if not narrowed)
func (f ServerFilters) Values(dimension string) []string {
	return f.Tree[dimension]
}

// TreeFilter encodes the tree dimensions as "dim[]=a,dim[]=b" in a stable order
func (f ServerFilters) TreeFilter() string {
	dims := make([]string, 0, len(f.Tree))
	for dim, values := range f.Tree {
		if len(values) > 0 {
			dims = append(dims, dim)
		}
	}
	slices.Sort(dims)

	var parts []string
	for _, dim := range dims {
		values := slices.Clone(f.Tree[dim])
		slices.Sort(values)
		for _, v := range values {
			parts = append(parts, dim+"[]="+v)
		}
	}
	return strings.Join(parts, ",")
}

// Query renders the filters as request query parameters
func (f ServerFilters) Query() url.Values {
	q := url.Values{}
	q.Set("gameId", f.GameID)
	if f.Currency != "" {
		q.Set("currency", f.Currency)
	}
	if f.PriceFrom > 0 {
		q.Set("priceFrom", strconv.FormatInt(f.PriceFrom, 10))
	}
	if f.PriceTo > 0 {
		q.Set("priceTo", strconv.FormatInt(f.PriceTo, 10))
	}
	if f.OrderBy != "" {
		q.Set("orderBy", f.OrderBy)
	}
	if f.OrderDir != "" {
		q.Set("orderDir", f.OrderDir)
	}
	if tree := f.TreeFilter(); tree != "" {
		q.Set("treeFilters", tree)
	}
	return q
}
