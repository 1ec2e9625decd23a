package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/andrescamacho/marketscan-go/internal/application/scanning"
)

// GormScanJournal records scan results for later review.
// It implements scanning.OpportunitySink so the Runner can journal every cycle.
type GormScanJournal struct {
	db *gorm.DB
}

// NewGormScanJournal creates a new GORM scan journal
func NewGormScanJournal(db *gorm.DB) *GormScanJournal {
	return &GormScanJournal{db: db}
}

func (r *GormScanJournal) Name() string { return "journal" }

// Publish persists the result; see Save
func (r *GormScanJournal) Publish(ctx context.Context, result scanning.ScanResult) error {
	return r.Save(ctx, result)
}

// Save persists a scan run and its ranked opportunities in one transaction.
// Saving the same scan ID twice is an error.
func (r *GormScanJournal) Save(ctx context.Context, result scanning.ScanResult) error {
	if result.ScanID == "" {
		return fmt.Errorf("invalid scan result: missing scan id")
	}

	model := resultToModel(result)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save scan run: %w", err)
	}
	return nil
}

// FindRecent returns the latest runs, newest first, with opportunities in rank order
func (r *GormScanJournal) FindRecent(ctx context.Context, limit int) ([]ScanRunModel, error) {
	query := r.db.WithContext(ctx).
		Preload("Opportunities", func(db *gorm.DB) *gorm.DB { return db.Order("rank_no ASC") }).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []ScanRunModel
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to find scan runs: %w", err)
	}
	return runs, nil
}

// FindBestOpportunities returns the most profitable opportunities recorded since a point in time
func (r *GormScanJournal) FindBestOpportunities(ctx context.Context, since time.Time, limit int) ([]OpportunityModel, error) {
	query := r.db.WithContext(ctx).
		Where("discovered_at >= ?", since.UTC()).
		Order("net_profit_percent DESC, net_profit DESC, buy_price ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var opps []OpportunityModel
	if err := query.Find(&opps).Error; err != nil {
		return nil, fmt.Errorf("failed to find opportunities: %w", err)
	}
	return opps, nil
}

// PruneBefore deletes runs (and their opportunities) started before cutoff
func (r *GormScanJournal) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old := tx.Model(&ScanRunModel{}).Select("id").Where("started_at < ?", cutoff.UTC())
		if err := tx.Where("scan_id IN (?)", old).Delete(&OpportunityModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("started_at < ?", cutoff.UTC()).Delete(&ScanRunModel{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune scan runs: %w", err)
	}
	return deleted, nil
}

func resultToModel(result scanning.ScanResult) *ScanRunModel {
	req := result.Request
	model := &ScanRunModel{
		ID:               result.ScanID,
		Game:             string(req.Game),
		Level:            string(req.Level),
		MaxItems:         req.MaxItems,
		PriceFrom:        req.PriceRange.MinMinorUnits,
		PriceTo:          req.PriceRange.MaxMinorUnits,
		UseCursor:        req.UseCursor,
		Outcome:          result.Outcome(),
		Degraded:         result.Degraded,
		StartedAt:        result.StartedAt.UTC(),
		DurationMs:       result.Duration.Milliseconds(),
		ItemsFetched:     result.Stats.ItemsFetched,
		ItemsMatched:     result.Stats.ItemsMatched,
		MalformedItems:   result.Stats.MalformedItems,
		PriceUnavailable: result.Stats.PriceUnavailable,
		PricingFailures:  result.Stats.PricingFailures,
		BelowThreshold:   result.Stats.BelowThreshold,
	}
	if result.Err != nil {
		model.Error = result.Err.Error()
	}

	model.Opportunities = make([]OpportunityModel, len(result.Opportunities))
	for i, opp := range result.Opportunities {
		rec := opp.Record()
		model.Opportunities[i] = OpportunityModel{
			ScanID:           result.ScanID,
			Rank:             i + 1,
			ItemID:           rec.ItemID,
			Title:            rec.Title,
			GameID:           rec.GameID,
			BuyPrice:         rec.BuyPriceMinorUnits,
			SellEstimate:     rec.EstimatedSellPriceMinorUnits,
			NetProfit:        rec.NetProfitMinorUnits,
			NetProfitPercent: rec.NetProfitPercent,
			SalesVolume24h:   rec.SalesVolume24h,
			SellSource:       rec.SellSource,
			DiscoveredAt:     rec.DiscoveredAt.UTC(),
		}
	}
	return model
}
