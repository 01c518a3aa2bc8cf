package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/numeric"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/security/validation"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/services"
	"github.com/shopspring/decimal"
)

const holdingColumns = `h.portfolio_id, h.ticker, h.name, h.category, h.institution, h.shares, h.avg_price,
	h.cost_basis, h.current_price, h.sector, h.industry, h.country, h.region, h.currency, h.asset_type`

// UpsertHolding inserts or replaces a holding. Amounts are stored in their
// normalized decimal form. A nil Tags leaves the stored tags as they are.
func (s *Store) UpsertHolding(ctx context.Context, h models.RawHolding) error {
	h.Ticker = strings.TrimSpace(h.Ticker)
	if err := validation.ValidateTicker(h.Ticker); err != nil {
		return err
	}

	var costBasis sql.NullString
	if !h.CostBasis.IsEmpty() {
		costBasis = sql.NullString{String: numeric.Normalize(h.CostBasis).String(), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO holdings (portfolio_id, ticker, name, category, institution, shares, avg_price, cost_basis,
			current_price, sector, industry, country, region, currency, asset_type, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(portfolio_id, ticker) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			institution = excluded.institution,
			shares = excluded.shares,
			avg_price = excluded.avg_price,
			cost_basis = excluded.cost_basis,
			current_price = excluded.current_price,
			sector = excluded.sector,
			industry = excluded.industry,
			country = excluded.country,
			region = excluded.region,
			currency = excluded.currency,
			asset_type = excluded.asset_type,
			updated_at = excluded.updated_at`,
		h.PortfolioID, h.Ticker, h.Name, h.Category, h.Institution,
		numeric.Normalize(h.Shares).String(), numeric.Normalize(h.AvgPrice).String(), costBasis,
		numeric.Normalize(h.CurrentPrice).String(),
		h.Sector, h.Industry, h.Country, h.Region, strings.ToUpper(h.Currency), h.AssetType,
	)
	if err != nil {
		return fmt.Errorf("upsert holding %s: %w", h.Ticker, err)
	}

	if h.Tags != nil {
		if err := ensureTags(ctx, tx, h.Tags); err != nil {
			return err
		}
		if err := replaceHoldingTags(ctx, tx, h.PortfolioID, h.Ticker, h.Tags); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func replaceHoldingTags(ctx context.Context, tx *sql.Tx, portfolioID int64, ticker string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM holding_tags WHERE portfolio_id = ? AND ticker = ?`, portfolioID, ticker); err != nil {
		return fmt.Errorf("clear tags of %s: %w", ticker, err)
	}
	for _, t := range tags {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO holding_tags (portfolio_id, ticker, tag_name) VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING`, portfolioID, ticker, t)
		if err != nil {
			return fmt.Errorf("tag %s with %q: %w", ticker, t, err)
		}
	}
	return nil
}

// FetchHoldings returns the scope's holdings matching filters. The total is
// the value of the returned records.
func (s *Store) FetchHoldings(ctx context.Context, scope models.Scope, f models.Filters) (models.HoldingsPage, error) {
	var where []string
	var args []any
	if !scope.IsOverall() {
		where = append(where, "h.portfolio_id = ?")
		args = append(args, scope.PortfolioID)
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		where = append(where, "LOWER(h.category) = LOWER(?)")
		args = append(args, c)
	}
	if inst := strings.TrimSpace(f.Institution); inst != "" {
		where = append(where, "LOWER(h.institution) = LOWER(?)")
		args = append(args, inst)
	}
	if q := strings.ToLower(strings.TrimSpace(f.TickerQuery)); q != "" {
		where = append(where, "(LOWER(h.ticker) LIKE ? OR LOWER(h.name) LIKE ?)")
		args = append(args, "%"+q+"%", "%"+q+"%")
	}
	if f.Tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM holding_tags t
			WHERE t.portfolio_id = h.portfolio_id AND t.ticker = h.ticker AND t.tag_name = ?)`)
		args = append(args, string(f.Tag))
	}

	query := `SELECT ` + holdingColumns + ` FROM holdings h`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY h.portfolio_id, h.ticker"

	records, err := s.queryHoldings(ctx, query, args...)
	if err != nil {
		return models.HoldingsPage{}, err
	}
	tags, err := s.holdingTags(ctx, scope)
	if err != nil {
		return models.HoldingsPage{}, err
	}

	total := decimal.Zero
	for i := range records {
		h := &records[i]
		h.Tags = tags[models.HoldingKey{Ticker: h.Ticker, PortfolioID: h.PortfolioID}]
		if h.Tags == nil {
			h.Tags = []string{}
		}
		total = total.Add(numeric.Normalize(h.Shares).Mul(numeric.Normalize(h.CurrentPrice)))
	}
	return models.HoldingsPage{Records: records, TotalValue: numeric.RawFromDecimal(total)}, nil
}

func (s *Store) queryHoldings(ctx context.Context, query string, args ...any) ([]models.RawHolding, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	records := []models.RawHolding{}
	for rows.Next() {
		var h models.RawHolding
		var shares, avgPrice, currentPrice string
		var costBasis sql.NullString
		if err := rows.Scan(&h.PortfolioID, &h.Ticker, &h.Name, &h.Category, &h.Institution, &shares, &avgPrice,
			&costBasis, &currentPrice, &h.Sector, &h.Industry, &h.Country, &h.Region, &h.Currency, &h.AssetType); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		h.Shares = numeric.Raw(shares)
		h.AvgPrice = numeric.Raw(avgPrice)
		h.CurrentPrice = numeric.Raw(currentPrice)
		if costBasis.Valid {
			h.CostBasis = numeric.Raw(costBasis.String)
		}
		records = append(records, h)
	}
	return records, rows.Err()
}

func (s *Store) holdingTags(ctx context.Context, scope models.Scope) (map[models.HoldingKey][]string, error) {
	query := `SELECT portfolio_id, ticker, tag_name FROM holding_tags`
	var args []any
	if !scope.IsOverall() {
		query += ` WHERE portfolio_id = ?`
		args = append(args, scope.PortfolioID)
	}
	query += ` ORDER BY tag_name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query holding tags: %w", err)
	}
	defer rows.Close()

	out := make(map[models.HoldingKey][]string)
	for rows.Next() {
		var key models.HoldingKey
		var tag string
		if err := rows.Scan(&key.PortfolioID, &key.Ticker, &tag); err != nil {
			return nil, err
		}
		out[key] = append(out[key], tag)
	}
	return out, rows.Err()
}

func nullable(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.TrimSpace(*p), Valid: true}
}

// SaveHoldingMetadata writes the non-nil fields and, when Tags is set,
// replaces the holding's tags. Every tag must already exist.
func (s *Store) SaveHoldingMetadata(ctx context.Context, ticker string, portfolioID int64, f models.MetadataFields) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	currency := nullable(f.Currency)
	currency.String = strings.ToUpper(currency.String)

	res, err := tx.ExecContext(ctx, `
		UPDATE holdings SET
			name = COALESCE(?, name),
			category = COALESCE(?, category),
			institution = COALESCE(?, institution),
			sector = COALESCE(?, sector),
			industry = COALESCE(?, industry),
			country = COALESCE(?, country),
			region = COALESCE(?, region),
			currency = COALESCE(?, currency),
			asset_type = COALESCE(?, asset_type),
			updated_at = CURRENT_TIMESTAMP
		WHERE portfolio_id = ? AND ticker = ?`,
		nullable(f.Name), nullable(f.Category), nullable(f.Institution), nullable(f.Sector), nullable(f.Industry),
		nullable(f.Country), nullable(f.Region), currency, nullable(f.AssetType),
		portfolioID, ticker,
	)
	if err != nil {
		return fmt.Errorf("update holding %s: %w", ticker, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.ErrHoldingNotFound
	}

	if f.Tags != nil {
		names := make([]string, 0, len(f.Tags))
		for _, t := range f.Tags {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags WHERE name = ?`, string(t)).Scan(&exists)
			if err != nil {
				return fmt.Errorf("look up tag %q: %w", t, err)
			}
			if exists == 0 {
				return fmt.Errorf("%w: %q", services.ErrTagNotFound, t)
			}
			names = append(names, string(t))
		}
		if err := replaceHoldingTags(ctx, tx, portfolioID, ticker, names); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertOperation stores op, generating an id when it has none, and returns
// the id.
func (s *Store) InsertOperation(ctx context.Context, op models.RawOperation) (string, error) {
	if strings.TrimSpace(op.ID) == "" {
		op.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO operations (id, portfolio_id, ticker, operation_type, amount, trade_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		op.ID, op.PortfolioID, strings.TrimSpace(op.Ticker), strings.TrimSpace(op.OperationType),
		numeric.Normalize(op.Amount).String(), strings.TrimSpace(op.TradeDate),
	)
	if err != nil {
		return "", fmt.Errorf("insert operation %s: %w", op.ID, err)
	}
	if err := ensureTags(ctx, tx, op.Tags); err != nil {
		return "", err
	}
	for _, t := range op.Tags {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO operation_tags (operation_id, tag_name) VALUES (?, ?) ON CONFLICT DO NOTHING`, op.ID, t); err != nil {
			return "", fmt.Errorf("tag operation %s with %q: %w", op.ID, t, err)
		}
	}
	return op.ID, tx.Commit()
}

func (s *Store) FetchOperations(ctx context.Context, portfolioID int64) ([]models.RawOperation, error) {
	query := `SELECT id, portfolio_id, ticker, operation_type, amount, trade_date FROM operations`
	var args []any
	if portfolioID != 0 {
		query += ` WHERE portfolio_id = ?`
		args = append(args, portfolioID)
	}
	query += ` ORDER BY trade_date DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	ops := []models.RawOperation{}
	index := make(map[string]int)
	for rows.Next() {
		var op models.RawOperation
		var amount string
		if err := rows.Scan(&op.ID, &op.PortfolioID, &op.Ticker, &op.OperationType, &amount, &op.TradeDate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Amount = numeric.Raw(amount)
		op.Tags = []string{}
		index[op.ID] = len(ops)
		ops = append(ops, op)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tagRows, err := s.db.QueryContext(ctx, `SELECT operation_id, tag_name FROM operation_tags ORDER BY tag_name`)
	if err != nil {
		return nil, fmt.Errorf("query operation tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var id, tag string
		if err := tagRows.Scan(&id, &tag); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			ops[i].Tags = append(ops[i].Tags, tag)
		}
	}
	return ops, tagRows.Err()
}
