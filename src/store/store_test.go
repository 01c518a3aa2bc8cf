package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/database"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/security/validation"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "holdings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	s, err := New(context.Background(), db, []string{"Core"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.UpsertHolding(ctx, models.RawHolding{
		Ticker: "AAPL", PortfolioID: 1, Category: "Stocks", Shares: "10", AvgPrice: "150,00", CurrentPrice: "180", Tags: []string{"Tech", "Core"},
	}))
	require.NoError(t, s.UpsertHolding(ctx, models.RawHolding{
		Ticker: "VWCE", PortfolioID: 2, Category: "ETF", Shares: "4", CostBasis: "400", CurrentPrice: "100",
	}))
	_, err = s.InsertOperation(ctx, models.RawOperation{ID: "op-1", PortfolioID: 1, Ticker: "AAPL", OperationType: "buy", Amount: "1.500,00", TradeDate: "2024-01-02", Tags: []string{"Tech"}})
	require.NoError(t, err)
	return s
}

func TestStoreFetchHoldings(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	page, err := s.FetchHoldings(ctx, models.OverallScope(), models.Filters{})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	require.True(t, page.TotalValue.Decimal().Equal(decimal.NewFromInt(2200)))

	aapl := page.Records[0]
	require.Equal(t, "AAPL", aapl.Ticker)
	require.True(t, aapl.AvgPrice.Decimal().Equal(decimal.NewFromInt(150)))
	require.True(t, aapl.CostBasis.IsEmpty())
	require.Equal(t, []string{"Core", "Tech"}, aapl.Tags)

	vwce := page.Records[1]
	require.True(t, vwce.CostBasis.Decimal().Equal(decimal.NewFromInt(400)))
	require.NotNil(t, vwce.Tags)
	require.Empty(t, vwce.Tags)

	page, err = s.FetchHoldings(ctx, models.PortfolioScope(2), models.Filters{})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)

	page, err = s.FetchHoldings(ctx, models.OverallScope(), models.Filters{Category: "stocks", Tag: "Tech", TickerQuery: "aa"})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
}

func TestStoreTags(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	catalog, err := s.FetchTags(ctx)
	require.NoError(t, err)
	require.Equal(t, []models.TagName{"Core", "Tech"}, catalog.All)
	require.Equal(t, []models.TagName{"Tech"}, catalog.Custom)

	require.NoError(t, s.CreateTagRemote(ctx, "Income"))
	require.ErrorIs(t, s.CreateTagRemote(ctx, "Income"), services.ErrTagExists)

	require.ErrorIs(t, s.DeleteTagRemote(ctx, "Core"), services.ErrTagProtected)
	require.ErrorIs(t, s.DeleteTagRemote(ctx, "Nope"), services.ErrTagNotFound)
	require.NoError(t, s.DeleteTagRemote(ctx, "Tech"))

	page, err := s.FetchHoldings(ctx, models.PortfolioScope(1), models.Filters{})
	require.NoError(t, err)
	require.Equal(t, []string{"Core"}, page.Records[0].Tags)

	ops, err := s.FetchOperations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	require.Empty(t, ops[0].Tags)
	require.True(t, ops[0].Amount.Decimal().Equal(decimal.NewFromInt(1500)))
}

func TestStoreSaveMetadata(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	sector, currency := "Technology", "usd"

	err := s.SaveHoldingMetadata(ctx, "AAPL", 1, models.MetadataFields{Sector: &sector, Currency: &currency, Tags: []models.TagName{"Core"}})
	require.NoError(t, err)

	page, err := s.FetchHoldings(ctx, models.PortfolioScope(1), models.Filters{})
	require.NoError(t, err)
	h := page.Records[0]
	require.Equal(t, "Technology", h.Sector)
	require.Equal(t, "USD", h.Currency)
	require.Equal(t, "Stocks", h.Category, "nil fields are untouched")
	require.Equal(t, []string{"Core"}, h.Tags)

	require.ErrorIs(t, s.SaveHoldingMetadata(ctx, "MSFT", 1, models.MetadataFields{}), services.ErrHoldingNotFound)
	require.ErrorIs(t, s.SaveHoldingMetadata(ctx, "AAPL", 1, models.MetadataFields{Tags: []models.TagName{"Nope"}}), services.ErrTagNotFound)

	page, err = s.FetchHoldings(ctx, models.PortfolioScope(1), models.Filters{})
	require.NoError(t, err)
	require.Equal(t, []string{"Core"}, page.Records[0].Tags, "failed saves roll back")
}

func TestStoreRefreshPrices(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.SavePrice(ctx, DailyPrice{TickerSymbol: "AAPL", Date: "2024-05-01", Price: decimal.NewFromInt(170)}))
	require.NoError(t, s.SavePrice(ctx, DailyPrice{TickerSymbol: "AAPL", Date: "2024-05-02", Price: decimal.RequireFromString("181.25")}))
	require.Error(t, s.SavePrice(ctx, DailyPrice{TickerSymbol: "AAPL", Date: "02/05/2024"}))

	ch, err := s.RefreshPrices(ctx, models.PortfolioScope(1), []string{"AAPL", "ZZZZ"})
	require.NoError(t, err)
	var results []services.PriceResult
	for r := range ch {
		results = append(results, r)
	}
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.True(t, results[0].Price.Equal(decimal.RequireFromString("181.25")))
	require.ErrorIs(t, results[1].Err, services.ErrPriceUnavailable)

	page, err := s.FetchHoldings(ctx, models.PortfolioScope(1), models.Filters{})
	require.NoError(t, err)
	require.True(t, page.Records[0].CurrentPrice.Decimal().Equal(decimal.NewFromInt(180)), "answering a refresh writes nothing")
}

func TestStorePersistPrices(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertHolding(ctx, models.RawHolding{Ticker: "VWCE", PortfolioID: 1, Shares: "1", CurrentPrice: "100"}))

	err := s.PersistPrices(ctx, models.PortfolioScope(1), map[string]decimal.Decimal{"VWCE": decimal.RequireFromString("105.5")})
	require.NoError(t, err)

	page, err := s.FetchHoldings(ctx, models.PortfolioScope(1), models.Filters{TickerQuery: "VWCE"})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	require.True(t, page.Records[0].CurrentPrice.Decimal().Equal(decimal.RequireFromString("105.5")))

	page, err = s.FetchHoldings(ctx, models.PortfolioScope(2), models.Filters{})
	require.NoError(t, err)
	require.True(t, page.Records[0].CurrentPrice.Decimal().Equal(decimal.NewFromInt(100)), "other portfolios keep their price")
}

func TestStoreRejectsInvalidTicker(t *testing.T) {
	s := newStore(t)
	err := s.UpsertHolding(context.Background(), models.RawHolding{Ticker: "  "})
	require.ErrorIs(t, err, validation.ErrValidationFailed)
}
