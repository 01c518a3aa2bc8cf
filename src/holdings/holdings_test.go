package holdings

import (
	"testing"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDeriveScenario(t *testing.T) {
	h := Derive(models.RawHolding{Ticker: "AAPL", Shares: "10", AvgPrice: "150,00", CurrentPrice: "180"})

	require.True(t, h.AvgPrice.Equal(dec("150")))
	require.True(t, h.CostBasis.Equal(dec("1500")))
	require.True(t, h.CurrentValue.Equal(dec("1800")))
	require.True(t, h.ProfitValue.Equal(dec("300")))
	require.NotNil(t, h.ProfitPercent)
	require.InDelta(t, 20.0, *h.ProfitPercent, 1e-9)
	require.Equal(t, models.CostBasisDerived, h.CostBasisSource)
	require.Nil(t, h.Tags)
}

func TestDeriveServerCostBasis(t *testing.T) {
	h := Derive(models.RawHolding{Ticker: "VWCE", Shares: "4", CostBasis: "400,40", CurrentPrice: "110"})

	require.Equal(t, models.CostBasisServer, h.CostBasisSource)
	require.True(t, h.CostBasis.Equal(dec("400.4")))
	require.True(t, h.AvgPrice.Equal(dec("100.1")))
	require.True(t, h.ProfitValue.Equal(dec("39.6")))
}

func TestDeriveWithoutBasis(t *testing.T) {
	h := Derive(models.RawHolding{Ticker: "GIFT", Shares: "3", CurrentPrice: "abc", Tags: []string{}})

	require.Nil(t, h.ProfitPercent)
	require.True(t, h.CurrentValue.IsZero())
	require.NotNil(t, h.Tags)
	require.Empty(t, h.Tags)
}

func TestDeriveClampsNegativeShares(t *testing.T) {
	h := Derive(models.RawHolding{Ticker: "X", Shares: "-5", AvgPrice: "1", CurrentPrice: "2"})
	require.True(t, h.Shares.IsZero())
	require.True(t, h.CurrentValue.IsZero())
}

func TestApplySharePercent(t *testing.T) {
	records := []models.HoldingRecord{
		Derive(models.RawHolding{Ticker: "A", Shares: "1", CurrentPrice: "75"}),
		Derive(models.RawHolding{Ticker: "B", Shares: "1", CurrentPrice: "25"}),
	}
	ApplySharePercent(records, ScopeTotal(records))
	require.InDelta(t, 75.0, records[0].SharePercent, 1e-9)
	require.InDelta(t, 25.0, records[1].SharePercent, 1e-9)

	zero := []models.HoldingRecord{
		Derive(models.RawHolding{Ticker: "A", Shares: "1", CurrentPrice: "0"}),
		Derive(models.RawHolding{Ticker: "B", Shares: "0", CurrentPrice: "10"}),
	}
	ApplySharePercent(zero, ScopeTotal(zero))
	for _, h := range zero {
		require.Zero(t, h.SharePercent)
	}
}

func TestAssetType(t *testing.T) {
	tests := map[string]string{
		"PPR Invest":          "Retirement Plans",
		"Retirement ETF":      "Retirement Plans",
		"World ETF":           "ETFs",
		"Mutual Fund":         "Funds",
		"Stocks":              "Stocks",
		"Crypto":              "Others",
		"":                    "Others",
		"ETF of stock funds":  "ETFs",
		"Index FUND of stock": "Funds",
	}
	for in, want := range tests {
		require.Equal(t, want, AssetType(in), "category %q", in)
	}

	require.Equal(t, "Bonds", AssetClass(models.HoldingRecord{AssetType: "Bonds", Category: "ETF"}))
	require.Equal(t, "ETFs", AssetClass(models.HoldingRecord{Category: "ETF"}))
}

func TestClassificationFallbacks(t *testing.T) {
	h := models.HoldingRecord{}
	require.Equal(t, Other, Sector(h))
	require.Equal(t, Other, Region(h))
	require.Equal(t, DefaultCurrency, Currency(h))

	h.Country = "Portugal"
	require.Equal(t, "Portugal", Region(h))
	h.Region = "Europe"
	require.Equal(t, "Europe", Region(h))
}

func TestMergeByTicker(t *testing.T) {
	records := []models.HoldingRecord{
		Derive(models.RawHolding{Ticker: "AAPL", PortfolioID: 1, Shares: "10", AvgPrice: "100", CurrentPrice: "150", Tags: []string{"Core"}}),
		Derive(models.RawHolding{Ticker: "MSFT", PortfolioID: 1, Shares: "1", AvgPrice: "300", CurrentPrice: "400"}),
		Derive(models.RawHolding{Ticker: "AAPL", PortfolioID: 2, Shares: "10", AvgPrice: "200", CurrentPrice: "150", Sector: "Technology", Tags: []string{"Growth"}}),
	}

	merged := MergeByTicker(records)
	require.Len(t, merged, 2)

	aapl := merged[0]
	require.Equal(t, "AAPL", aapl.Ticker)
	require.Zero(t, aapl.PortfolioID)
	require.Equal(t, []int64{1, 2}, aapl.PortfolioIDs)
	require.True(t, aapl.Shares.Equal(dec("20")))
	require.True(t, aapl.CostBasis.Equal(dec("3000")))
	require.True(t, aapl.AvgPrice.Equal(dec("150")))
	require.True(t, aapl.CurrentValue.Equal(dec("3000")))
	require.True(t, aapl.ProfitValue.IsZero())
	require.Equal(t, "Technology", aapl.Sector)
	require.ElementsMatch(t, []models.TagName{"Core", "Growth"}, aapl.Tags.Sorted())

	require.True(t, ScopeTotal(merged).Equal(ScopeTotal(records)))
	require.Equal(t, int64(1), records[0].PortfolioID, "input must not be mutated")
}

func TestMergeTagsForward(t *testing.T) {
	previous := []models.HoldingRecord{
		{Ticker: "AAPL", PortfolioID: 1, Tags: models.NewTagSet("Core", "Deleted")},
		{Ticker: "MSFT", PortfolioID: 1, Tags: models.NewTagSet("Growth")},
	}
	next := []models.HoldingRecord{
		{Ticker: "AAPL", PortfolioID: 1},
		{Ticker: "MSFT", PortfolioID: 1, Tags: models.NewTagSet[string]()},
		{Ticker: "NEW", PortfolioID: 1},
	}
	known := func(t models.TagName) bool { return t != "Deleted" }

	out := MergeTagsForward(previous, next, known)
	require.Equal(t, []models.TagName{"Core"}, out[0].Tags.Sorted())
	require.Empty(t, out[1].Tags, "an explicit empty list clears tags")
	require.NotNil(t, out[2].Tags)
	require.Empty(t, out[2].Tags)
}

func TestMergeTagsForwardAcrossScopes(t *testing.T) {
	known := func(t models.TagName) bool { return t != "Deleted" }

	perPortfolio := []models.HoldingRecord{
		{Ticker: "AAPL", PortfolioID: 1, Tags: models.NewTagSet("Core")},
		{Ticker: "AAPL", PortfolioID: 2, Tags: models.NewTagSet("Tech", "Deleted")},
	}
	overall := MergeTagsForward(perPortfolio, []models.HoldingRecord{{Ticker: "AAPL"}}, known)
	require.Equal(t, []models.TagName{"Core", "Tech"}, overall[0].Tags.Sorted())

	back := MergeTagsForward(overall, []models.HoldingRecord{{Ticker: "AAPL", PortfolioID: 2}}, known)
	require.Equal(t, []models.TagName{"Core", "Tech"}, back[0].Tags.Sorted())
}

func TestFilter(t *testing.T) {
	records := []models.HoldingRecord{
		{Ticker: "AAPL", Name: "Apple Inc", Category: "Stocks", Institution: "Degiro", Tags: models.NewTagSet("Core")},
		{Ticker: "VWCE", Name: "Vanguard All-World", Category: "ETF", Institution: "IBKR"},
		{Ticker: "MSFT", Name: "Microsoft", Category: "stocks", Institution: "IBKR"},
	}

	require.Len(t, Filter(records, models.Filters{}), 3)
	require.Len(t, Filter(records, models.Filters{Category: "STOCKS"}), 2)
	require.Len(t, Filter(records, models.Filters{Institution: "ibkr", Category: "stocks"}), 1)
	require.Equal(t, "VWCE", Filter(records, models.Filters{TickerQuery: "world"})[0].Ticker)
	require.Equal(t, "AAPL", Filter(records, models.Filters{Tag: "Core"})[0].Ticker)
	require.Empty(t, Filter(records, models.Filters{Tag: "core"}))
}

func TestUpdatePricesAndMetadata(t *testing.T) {
	records := []models.HoldingRecord{
		Derive(models.RawHolding{Ticker: "AAPL", Shares: "10", AvgPrice: "150", CurrentPrice: "150"}),
		Derive(models.RawHolding{Ticker: "ZZZZ", Shares: "1", AvgPrice: "1", CurrentPrice: "1"}),
	}
	n := UpdatePrices(records, map[string]decimal.Decimal{"AAPL": dec("180")})
	require.Equal(t, 1, n)
	require.True(t, records[0].CurrentValue.Equal(dec("1800")))
	require.InDelta(t, 20.0, *records[0].ProfitPercent, 1e-9)

	sector, currency := " Technology ", "eur"
	ApplyMetadata(&records[0], models.MetadataFields{Sector: &sector, Currency: &currency, Tags: []models.TagName{"Core"}})
	require.Equal(t, "Technology", records[0].Sector)
	require.Equal(t, "EUR", records[0].Currency)
	require.True(t, records[0].Tags.Has("Core"))
}

func TestDeriveOperation(t *testing.T) {
	op := DeriveOperation(models.RawOperation{ID: "1", Ticker: " AAPL ", OperationType: "buy", Amount: "1.500,25", TradeDate: "2024-03-01", Tags: []string{"Core"}})
	require.Equal(t, "AAPL", op.Ticker)
	require.True(t, op.Amount.Equal(dec("1500.25")))
	require.Equal(t, 2024, op.TradeDate.Year())
	require.True(t, op.Tags.Has("Core"))

	bad := DeriveOperation(models.RawOperation{ID: "2", TradeDate: "yesterday"})
	require.True(t, bad.TradeDate.IsZero())
	require.NotNil(t, bad.Tags)
}
