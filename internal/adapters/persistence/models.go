package persistence

import (
	"time"
)

// ScanRunModel represents the scan_runs table: one row per finished scan
type ScanRunModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Game      string    `gorm:"column:game;not null;index:idx_scan_runs_game_level"`
	Level     string    `gorm:"column:level;not null;index:idx_scan_runs_game_level"`
	MaxItems  int       `gorm:"column:max_items;not null"`
	PriceFrom int64     `gorm:"column:price_from;not null;default:0"`
	PriceTo   int64     `gorm:"column:price_to;not null;default:0"`
	UseCursor bool      `gorm:"column:use_cursor;not null"`
	Outcome   string    `gorm:"column:outcome;not null"`
	Degraded  bool      `gorm:"column:degraded;not null;default:false"`
	Error     string    `gorm:"column:error;type:text"`
	StartedAt time.Time `gorm:"column:started_at;not null;index"`
	// Duration in milliseconds (portable across SQLite and PostgreSQL)
	DurationMs int64 `gorm:"column:duration_ms;not null"`

	ItemsFetched     int `gorm:"column:items_fetched;not null;default:0"`
	ItemsMatched     int `gorm:"column:items_matched;not null;default:0"`
	MalformedItems   int `gorm:"column:malformed_items;not null;default:0"`
	PriceUnavailable int `gorm:"column:price_unavailable;not null;default:0"`
	PricingFailures  int `gorm:"column:pricing_failures;not null;default:0"`
	BelowThreshold   int `gorm:"column:below_threshold;not null;default:0"`

	Opportunities []OpportunityModel `gorm:"foreignKey:ScanID;references:ID;constraint:OnDelete:CASCADE"`
}

func (ScanRunModel) TableName() string {
	return "scan_runs"
}

// OpportunityModel represents the opportunities table, ranked within its scan
type OpportunityModel struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ScanID           string    `gorm:"column:scan_id;not null;index"`
	Rank             int       `gorm:"column:rank_no;not null"`
	ItemID           string    `gorm:"column:item_id;not null"`
	Title            string    `gorm:"column:title;not null;index"`
	GameID           string    `gorm:"column:game_id;not null"`
	BuyPrice         int64     `gorm:"column:buy_price;not null"`
	SellEstimate     int64     `gorm:"column:sell_estimate;not null"`
	NetProfit        int64     `gorm:"column:net_profit;not null"`
	NetProfitPercent float64   `gorm:"column:net_profit_percent;not null"`
	SalesVolume24h   int       `gorm:"column:sales_volume_24h;not null;default:0"`
	SellSource       string    `gorm:"column:sell_source"`
	DiscoveredAt     time.Time `gorm:"column:discovered_at;not null"`
}

func (OpportunityModel) TableName() string {
	return "opportunities"
}
