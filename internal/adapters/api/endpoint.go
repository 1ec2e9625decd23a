package api

// EndpointClass groups endpoints that share a rate-limit bucket and a circuit breaker
type EndpointClass string

const (
	// ClassMarketRead covers signed (authorized) read calls; higher quota
	ClassMarketRead EndpointClass = "market-read"
	// ClassPublicRead covers unsigned public calls; lower quota
	ClassPublicRead EndpointClass = "public-read"
	// ClassOrderWrite covers calls that create, edit or cancel offers and orders
	ClassOrderWrite EndpointClass = "order-write"
)

// Marketplace endpoint paths
const (
	PathMarketItems      = "/exchange/v1/market/items"
	PathAggregatedPrices = "/price-aggregator/v1/aggregated-prices"
	PathUserOffers       = "/marketplace-api/v1/user-offers"
	PathUserTargets      = "/marketplace-api/v1/user-targets"
	PathAccountBalance   = "/account/v1/balance"
)

// KnownClasses lists the classes that get pre-configured buckets and breakers
func KnownClasses() []EndpointClass {
	return []EndpointClass{ClassMarketRead, ClassPublicRead, ClassOrderWrite}
}
