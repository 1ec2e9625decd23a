package steps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/andrescamacho/marketscan-go/internal/application/scanning"
	"github.com/andrescamacho/marketscan-go/internal/domain/filtering"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/domain/shared"
	"github.com/andrescamacho/marketscan-go/internal/domain/trading"
	"github.com/andrescamacho/marketscan-go/test/helpers"
)

var scenarioNow = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

// arbitrageContext holds state for analysis and scan scenarios
type arbitrageContext struct {
	fees          trading.FeeSchedule
	table         filtering.Table
	lister        *helpers.MockItemLister
	prices        *helpers.MockPriceSource
	opportunity   *trading.ArbitrageOpportunity
	opportunities []*trading.ArbitrageOpportunity
	analysisErr   error
	result        scanning.ScanResult
}

func (ac *arbitrageContext) reset() {
	ac.fees = trading.MustFeeSchedule(0.07, 0)
	ac.table = filtering.Table{}
	ac.lister = helpers.NewMockItemLister()
	ac.prices = helpers.NewMockPriceSource()
	ac.opportunity = nil
	ac.opportunities = nil
	ac.analysisErr = nil
	ac.result = scanning.ScanResult{}
}

// InitializeArbitrageScenario registers fee math, ranking and scanner steps
func InitializeArbitrageScenario(sc *godog.ScenarioContext) {
	ac := &arbitrageContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		ac.reset()
		return ctx, nil
	})

	// Analysis
	sc.Step(`^a fee schedule with sell fee ([\d.]+) and buy fee ([\d.]+)$`, ac.aFeeSchedule)
	sc.Step(`^I analyze an item bought at (\d+) cents with a sell estimate of (\d+) cents$`, ac.iAnalyze)
	sc.Step(`^I analyze an item bought at (\d+) cents with a sell estimate of (\d+) cents requiring (\d+) percent$`, ac.iAnalyzeRequiring)
	sc.Step(`^the net profit should be (-?\d+) cents$`, ac.theNetProfitShouldBe)
	sc.Step(`^the net profit percent should be ([\d.]+)$`, ac.theNetProfitPercentShouldBe)
	sc.Step(`^the analysis should fail with insufficient profit$`, ac.theAnalysisShouldFailWithInsufficientProfit)
	sc.Step(`^these opportunities:$`, ac.theseOpportunities)
	sc.Step(`^I rank the opportunities$`, ac.iRankTheOpportunities)
	sc.Step(`^I keep the top (\d+) opportunities$`, ac.iKeepTheTop)
	sc.Step(`^the ranked ids should be "([^"]*)"$`, ac.theRankedIDsShouldBe)

	// Scanning
	sc.Step(`^the "([^"]*)" "([^"]*)" level accepts prices from (\d+) to (\d+) cents with a ([\d.]+) percent margin$`, ac.theLevelAccepts)
	sc.Step(`^the market lists these "([^"]*)" items:$`, ac.theMarketListsItems)
	sc.Step(`^the price source estimates:$`, ac.thePriceSourceEstimates)
	sc.Step(`^pricing fails for "([^"]*)"$`, ac.pricingFailsFor)
	sc.Step(`^listing "([^"]*)" items fails$`, ac.listingItemsFails)
	sc.Step(`^I scan "([^"]*)" at level "([^"]*)" for up to (\d+) items$`, ac.iScan)
	sc.Step(`^the scan should succeed$`, ac.theScanShouldSucceed)
	sc.Step(`^the scan outcome should be "([^"]*)"$`, ac.theScanOutcomeShouldBe)
	sc.Step(`^the opportunity ids should be "([^"]*)"$`, ac.theOpportunityIDsShouldBe)
	sc.Step(`^the scan should have fetched (\d+) items and matched (\d+)$`, ac.theScanShouldHaveFetchedAndMatched)
	sc.Step(`^the scan should report (\d+) pricing failures?$`, ac.theScanShouldReportPricingFailures)
}

func (ac *arbitrageContext) aFeeSchedule(sellFee, buyFee float64) error {
	fees, err := trading.NewFeeSchedule(sellFee, buyFee)
	if err != nil {
		return err
	}
	ac.fees = fees
	return nil
}

func (ac *arbitrageContext) quote(id string, buy, sell int64) (trading.Quote, error) {
	item, err := market.NewItem(id, "Item "+id, "a8db", buy, nil, 10)
	if err != nil {
		return trading.Quote{}, err
	}
	return trading.NewQuote(item, sell, "bdd"), nil
}

func (ac *arbitrageContext) iAnalyze(buy, sell int) error {
	q, err := ac.quote("1", int64(buy), int64(sell))
	if err != nil {
		return err
	}
	ac.opportunity, ac.analysisErr = trading.NewArbitrageOpportunity(q, ac.fees, scenarioNow)
	return ac.analysisErr
}

func (ac *arbitrageContext) iAnalyzeRequiring(buy, sell int, percent float64) error {
	q, err := ac.quote("1", int64(buy), int64(sell))
	if err != nil {
		return err
	}
	ac.opportunity, ac.analysisErr = trading.NewArbitrageAnalyzer(ac.fees).AnalyzeQuote(q, percent, scenarioNow)
	return nil
}

func (ac *arbitrageContext) theNetProfitShouldBe(cents int) error {
	if ac.opportunity == nil {
		return fmt.Errorf("no opportunity: %v", ac.analysisErr)
	}
	if got := ac.opportunity.NetProfitMinorUnits(); got != int64(cents) {
		return fmt.Errorf("expected net profit %d, got %d", cents, got)
	}
	return nil
}

func (ac *arbitrageContext) theNetProfitPercentShouldBe(percent float64) error {
	if ac.opportunity == nil {
		return fmt.Errorf("no opportunity: %v", ac.analysisErr)
	}
	if got := ac.opportunity.NetProfitPercent(); math.Abs(got-percent) > 1e-9 {
		return fmt.Errorf("expected net profit percent %.4f, got %.4f", percent, got)
	}
	return nil
}

func (ac *arbitrageContext) theAnalysisShouldFailWithInsufficientProfit() error {
	if !errors.Is(ac.analysisErr, trading.ErrInsufficientProfit) {
		return fmt.Errorf("expected insufficient profit, got %v", ac.analysisErr)
	}
	return nil
}

// rows returns a data table as header-keyed maps
func rows(table *godog.Table) []map[string]string {
	if len(table.Rows) == 0 {
		return nil
	}
	header := table.Rows[0].Cells
	out := make([]map[string]string, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] {
		m := make(map[string]string, len(header))
		for i, cell := range row.Cells {
			m[header[i].Value] = cell.Value
		}
		out = append(out, m)
	}
	return out
}

func cents(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cents %q: %w", s, err)
	}
	return v, nil
}

func (ac *arbitrageContext) theseOpportunities(table *godog.Table) error {
	for _, row := range rows(table) {
		buy, err := cents(row["buy"])
		if err != nil {
			return err
		}
		sell, err := cents(row["sell"])
		if err != nil {
			return err
		}
		q, err := ac.quote(row["id"], buy, sell)
		if err != nil {
			return err
		}
		opp, err := trading.NewArbitrageOpportunity(q, ac.fees, scenarioNow)
		if err != nil {
			return err
		}
		ac.opportunities = append(ac.opportunities, opp)
	}
	return nil
}

func (ac *arbitrageContext) iRankTheOpportunities() error {
	ac.opportunities = trading.Rank(ac.opportunities)
	return nil
}

func (ac *arbitrageContext) iKeepTheTop(n int) error {
	ac.opportunities = trading.TopN(ac.opportunities, n)
	return nil
}

func opportunityIDs(opps []*trading.ArbitrageOpportunity) string {
	ids := make([]string, len(opps))
	for i, o := range opps {
		ids[i] = o.Item().ID()
	}
	return strings.Join(ids, ",")
}

func (ac *arbitrageContext) theRankedIDsShouldBe(want string) error {
	if got := opportunityIDs(ac.opportunities); got != want {
		return fmt.Errorf("expected ranking %q, got %q", want, got)
	}
	return nil
}

func (ac *arbitrageContext) theLevelAccepts(gameName, levelName string, from, to int, margin float64) error {
	game, err := market.ParseGame(gameName)
	if err != nil {
		return err
	}
	level, err := market.ParseLevel(levelName)
	if err != nil {
		return err
	}
	if ac.table[game] == nil {
		ac.table[game] = map[market.Level]filtering.LevelFilter{}
	}
	ac.table[game][level] = filtering.LevelFilter{
		PriceRange:       market.PriceRange{MinMinorUnits: int64(from), MaxMinorUnits: int64(to)},
		MinProfitPercent: margin,
	}
	return nil
}

func wireID(gameName string) (string, error) {
	game, err := market.ParseGame(gameName)
	if err != nil {
		return "", err
	}
	return game.WireID()
}

func (ac *arbitrageContext) theMarketListsItems(gameName string, table *godog.Table) error {
	gameID, err := wireID(gameName)
	if err != nil {
		return err
	}
	for _, row := range rows(table) {
		price, err := cents(row["price"])
		if err != nil {
			return err
		}
		item, err := market.NewItem(row["id"], row["title"], gameID, price, nil, 10)
		if err != nil {
			return err
		}
		ac.lister.AddItems(item)
	}
	return nil
}

func (ac *arbitrageContext) thePriceSourceEstimates(table *godog.Table) error {
	for _, row := range rows(table) {
		price, err := cents(row["price"])
		if err != nil {
			return err
		}
		ac.prices.SetPrice(row["title"], price)
	}
	return nil
}

func (ac *arbitrageContext) pricingFailsFor(title string) error {
	ac.prices.FailTitle(title)
	return nil
}

func (ac *arbitrageContext) listingItemsFails(gameName string) error {
	gameID, err := wireID(gameName)
	if err != nil {
		return err
	}
	ac.lister.FailGame(gameID, errors.New("listing unavailable"))
	return nil
}

func (ac *arbitrageContext) iScan(gameName, levelName string, maxItems int) error {
	game, err := market.ParseGame(gameName)
	if err != nil {
		return err
	}
	level, err := market.ParseLevel(levelName)
	if err != nil {
		return err
	}
	scanner := scanning.NewScanner(ac.lister, ac.prices, filtering.NewPipeline(ac.table),
		trading.NewArbitrageAnalyzer(ac.fees), scanning.Config{},
		scanning.WithClock(shared.NewMockClock(scenarioNow)),
	)
	ac.result = scanner.ScanWithResult(context.Background(), market.ScanRequest{
		Game:      game,
		Level:     level,
		MaxItems:  maxItems,
		UseCursor: true,
	})
	return nil
}

func (ac *arbitrageContext) theScanShouldSucceed() error {
	if ac.result.Err != nil {
		return fmt.Errorf("scan failed: %w", ac.result.Err)
	}
	return nil
}

func (ac *arbitrageContext) theScanOutcomeShouldBe(outcome string) error {
	if got := ac.result.Outcome(); got != outcome {
		return fmt.Errorf("expected outcome %q, got %q (%v)", outcome, got, ac.result.Err)
	}
	return nil
}

func (ac *arbitrageContext) theOpportunityIDsShouldBe(want string) error {
	if got := opportunityIDs(ac.result.Opportunities); got != want {
		return fmt.Errorf("expected opportunities %q, got %q", want, got)
	}
	return nil
}

func (ac *arbitrageContext) theScanShouldHaveFetchedAndMatched(fetched, matched int) error {
	stats := ac.result.Stats
	if stats.ItemsFetched != fetched || stats.ItemsMatched != matched {
		return fmt.Errorf("expected fetched=%d matched=%d, got fetched=%d matched=%d",
			fetched, matched, stats.ItemsFetched, stats.ItemsMatched)
	}
	return nil
}

func (ac *arbitrageContext) theScanShouldReportPricingFailures(n int) error {
	if got := ac.result.Stats.PricingFailures; got != n {
		return fmt.Errorf("expected %d pricing failures, got %d", n, got)
	}
	return nil
}
