package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/security/validation"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/services"
	"github.com/shopspring/decimal"
)

// DateLayout is the format of DailyPrice.Date.
const DateLayout = "2006-01-02"

// DailyPrice represents a cached price for a ticker on a specific day.
type DailyPrice struct {
	TickerSymbol string          `json:"ticker"`
	Date         string          `json:"date"` // YYYY-MM-DD
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// SavePrice stores a price in the cache, replacing the one already recorded
// for that ticker and day.
func (s *Store) SavePrice(ctx context.Context, p DailyPrice) error {
	if p.Date == "" {
		p.Date = time.Now().UTC().Format(DateLayout)
	}
	if _, err := time.Parse(DateLayout, p.Date); err != nil {
		return fmt.Errorf("%w: price date %q must be YYYY-MM-DD", validation.ErrValidationFailed, p.Date)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_prices (ticker_symbol, date, price, currency, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ticker_symbol, date) DO UPDATE SET
			price = excluded.price,
			currency = excluded.currency,
			updated_at = excluded.updated_at`,
		strings.TrimSpace(p.TickerSymbol), p.Date, p.Price.String(), strings.ToUpper(p.Currency), time.Now().UTC())
	if err != nil {
		logger.FromContext(ctx).Error("Failed to insert or update daily price", "ticker", p.TickerSymbol, "date", p.Date, "error", err)
		return fmt.Errorf("save price of %s: %w", p.TickerSymbol, err)
	}
	return nil
}

// LatestPrices returns the most recent cached price of each ticker that has one.
func (s *Store) LatestPrices(ctx context.Context, tickers []string) (map[string]DailyPrice, error) {
	prices := make(map[string]DailyPrice)
	if len(tickers) == 0 {
		return prices, nil
	}
	query := `SELECT ticker_symbol, date, price, currency, updated_at FROM daily_prices
		WHERE ticker_symbol IN ` + inClause(len(tickers)) + ` ORDER BY date ASC`
	args := make([]any, len(tickers))
	for i, t := range tickers {
		args[i] = t
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p DailyPrice
		if err := rows.Scan(&p.TickerSymbol, &p.Date, &p.Price, &p.Currency, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		// Ascending dates: later rows win.
		prices[p.TickerSymbol] = p
	}
	return prices, rows.Err()
}

// RefreshPrices answers each ticker from the price cache. It writes nothing:
// accepted prices come back through PersistPrices. Tickers without a cached
// price report services.ErrPriceUnavailable.
func (s *Store) RefreshPrices(ctx context.Context, scope models.Scope, tickers []string) (<-chan services.PriceResult, error) {
	latest, err := s.LatestPrices(ctx, tickers)
	if err != nil {
		return nil, err
	}

	out := make(chan services.PriceResult)
	go func() {
		defer close(out)
		for _, ticker := range tickers {
			r := services.PriceResult{Ticker: ticker}
			if p, ok := latest[ticker]; ok {
				r.Price = p.Price
			} else {
				r.Err = services.ErrPriceUnavailable
			}
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// PersistPrices writes the prices of a finished refresh into the scope's
// holdings, all or nothing.
func (s *Store) PersistPrices(ctx context.Context, scope models.Scope, prices map[string]decimal.Decimal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin price update: %w", err)
	}
	defer tx.Rollback()

	for ticker, price := range prices {
		query := `UPDATE holdings SET current_price = ?, updated_at = CURRENT_TIMESTAMP WHERE ticker = ?`
		args := []any{price.String(), ticker}
		if !scope.IsOverall() {
			query += ` AND portfolio_id = ?`
			args = append(args, scope.PortfolioID)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update current price of %s: %w", ticker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit price update: %w", err)
	}
	logger.FromContext(ctx).Debug("Refreshed prices persisted", "scope", scope.Key(), "tickers", len(prices))
	return nil
}
