package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/database"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/refresh"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// newLocalStore holds AAPL at 180 and MSFT at 100 in portfolio 1, with both
// quoted at 999 in the price cache.
func newLocalStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "holdings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	ctx := context.Background()
	st, err := store.New(ctx, db, []string{"Core"})
	require.NoError(t, err)
	require.NoError(t, st.UpsertHolding(ctx, models.RawHolding{Ticker: "AAPL", PortfolioID: 1, Category: "Stocks", Shares: "10", AvgPrice: "150", CurrentPrice: "180"}))
	require.NoError(t, st.UpsertHolding(ctx, models.RawHolding{Ticker: "MSFT", PortfolioID: 1, Category: "Stocks", Shares: "2", AvgPrice: "90", CurrentPrice: "100"}))
	for _, ticker := range []string{"AAPL", "MSFT"} {
		require.NoError(t, st.SavePrice(ctx, store.DailyPrice{TickerSymbol: ticker, Date: "2024-05-02", Price: decimal.NewFromInt(999)}))
	}
	return st
}

func tickerState(status models.JobStatus, ticker string) models.TickerState {
	for _, ts := range status.Tickers {
		if ts.Ticker == ticker {
			return ts.State
		}
	}
	return ""
}

func TestCancelledRefreshLeavesStoredPrices(t *testing.T) {
	st := newLocalStore(t)
	e := New(st, nil, refresh.Options{BatchSize: 1, Interval: 2 * time.Second})
	ctx := context.Background()
	_, err := e.Load(ctx, perPortfolio(1))
	require.NoError(t, err)

	_, err = e.StartRefresh(ctx, []string{"AAPL", "MSFT"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		status, ok := e.RefreshStatus()
		return ok && tickerState(status, "AAPL") == models.TickerOK
	}, time.Second, 5*time.Millisecond)
	require.True(t, e.CancelRefresh())

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	status, err := e.WaitRefresh(waitCtx)
	require.NoError(t, err)
	require.Equal(t, models.JobCancelled, status.State)
	require.True(t, holding(e.ViewModel(), "AAPL").CurrentPrice.Equal(decimal.NewFromInt(180)))

	applied, err := e.Load(ctx, perPortfolio(1))
	require.NoError(t, err)
	require.True(t, applied)
	vm := e.ViewModel()
	require.True(t, holding(vm, "AAPL").CurrentPrice.Equal(decimal.NewFromInt(180)), "got %s", holding(vm, "AAPL").CurrentPrice)
	require.True(t, holding(vm, "MSFT").CurrentPrice.Equal(decimal.NewFromInt(100)))
}

func TestCompletedRefreshPersistsPrices(t *testing.T) {
	st := newLocalStore(t)
	e := New(st, nil, refresh.Options{})
	ctx := context.Background()
	_, err := e.Load(ctx, perPortfolio(1))
	require.NoError(t, err)

	_, err = e.StartRefresh(ctx, nil)
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	status, err := e.WaitRefresh(waitCtx)
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, status.State)

	page, err := st.FetchHoldings(ctx, models.PortfolioScope(1), models.Filters{})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	for _, r := range page.Records {
		require.True(t, r.CurrentPrice.Decimal().Equal(decimal.NewFromInt(999)), "%s stored %s", r.Ticker, r.CurrentPrice)
	}
	require.True(t, holding(e.ViewModel(), "MSFT").CurrentValue.Equal(decimal.NewFromInt(1998)))
}
