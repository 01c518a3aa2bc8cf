// Package holdings turns raw institution records into valued HoldingRecords
// and provides the record-level operations the view model is built from.
package holdings

import (
	"strings"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/numeric"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Derive normalizes raw and computes its valuation fields.
//
// A non-zero cost basis supplied by the server is authoritative; otherwise
// the cost basis is shares × avgPrice. Tags stay nil when the source did not
// send any, so MergeTagsForward can tell "omitted" from "cleared".
func Derive(raw models.RawHolding) models.HoldingRecord {
	shares := numeric.Normalize(raw.Shares)
	if shares.IsNegative() {
		logger.L.Warn("Negative share count clamped to zero", "ticker", raw.Ticker, "shares", shares.String())
		shares = decimal.Zero
	}
	avgPrice := numeric.Normalize(raw.AvgPrice)
	serverBasis := numeric.Normalize(raw.CostBasis)

	h := models.HoldingRecord{
		Ticker:       strings.TrimSpace(raw.Ticker),
		PortfolioID:  raw.PortfolioID,
		Name:         strings.TrimSpace(raw.Name),
		Category:     strings.TrimSpace(raw.Category),
		Institution:  strings.TrimSpace(raw.Institution),
		Shares:       shares,
		CurrentPrice: numeric.Normalize(raw.CurrentPrice),
		Sector:       strings.TrimSpace(raw.Sector),
		Industry:     strings.TrimSpace(raw.Industry),
		Country:      strings.TrimSpace(raw.Country),
		Region:       strings.TrimSpace(raw.Region),
		Currency:     strings.ToUpper(strings.TrimSpace(raw.Currency)),
		AssetType:    strings.TrimSpace(raw.AssetType),
	}
	if raw.Tags != nil {
		h.Tags = models.NewTagSet(raw.Tags...)
	}

	if !serverBasis.IsZero() {
		h.CostBasis = serverBasis
		h.CostBasisSource = models.CostBasisServer
		if avgPrice.IsZero() && !shares.IsZero() {
			avgPrice = serverBasis.Div(shares)
		}
	} else {
		h.CostBasis = shares.Mul(avgPrice)
		h.CostBasisSource = models.CostBasisDerived
	}
	h.AvgPrice = avgPrice

	Revalue(&h)
	return h
}

// DeriveAll derives every raw record, dropping rows without a ticker.
func DeriveAll(raws []models.RawHolding) []models.HoldingRecord {
	out := make([]models.HoldingRecord, 0, len(raws))
	for _, raw := range raws {
		if strings.TrimSpace(raw.Ticker) == "" {
			logger.L.Warn("Skipping holding without ticker", "portfolioID", raw.PortfolioID)
			continue
		}
		out = append(out, Derive(raw))
	}
	return out
}

// Revalue recomputes current value and profit from shares, cost basis and
// current price. It is called again whenever a price refresh lands.
func Revalue(h *models.HoldingRecord) {
	h.CurrentValue = h.Shares.Mul(h.CurrentPrice)
	h.ProfitValue = h.CurrentValue.Sub(h.CostBasis)
	h.ProfitPercent = ProfitPercent(h.ProfitValue, h.CostBasis)
}

// ProfitPercent is profit / costBasis × 100, or nil when there is no basis.
func ProfitPercent(profit, costBasis decimal.Decimal) *float64 {
	if costBasis.IsZero() {
		return nil
	}
	p := Percent(profit, costBasis)
	return &p
}

// Percent is part / whole × 100 as a float, 0 when whole is zero.
func Percent(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	f, _ := part.Div(whole).Mul(hundred).Float64()
	return f
}

// ScopeTotal sums current value over records.
func ScopeTotal(records []models.HoldingRecord) decimal.Decimal {
	total := decimal.Zero
	for _, h := range records {
		total = total.Add(h.CurrentValue)
	}
	return total
}

// ApplySharePercent sets each record's share of scopeTotal in place. A zero
// or negative total leaves every share at 0.
func ApplySharePercent(records []models.HoldingRecord, scopeTotal decimal.Decimal) {
	for i := range records {
		if !scopeTotal.IsPositive() {
			records[i].SharePercent = 0
			continue
		}
		records[i].SharePercent = Percent(records[i].CurrentValue, scopeTotal)
	}
}

// DeriveOperation normalizes an operation record.
func DeriveOperation(raw models.RawOperation) models.OperationRecord {
	tradeDate, ok := models.ParseTradeDate(raw.TradeDate)
	if !ok && strings.TrimSpace(raw.TradeDate) != "" {
		logger.L.Warn("Unreadable trade date", "operationID", raw.ID, "tradeDate", raw.TradeDate)
	}
	return models.OperationRecord{
		ID:            raw.ID,
		PortfolioID:   raw.PortfolioID,
		Ticker:        strings.TrimSpace(raw.Ticker),
		OperationType: strings.TrimSpace(raw.OperationType),
		Amount:        numeric.Normalize(raw.Amount),
		TradeDate:     tradeDate,
		Tags:          models.NewTagSet(raw.Tags...),
	}
}

// DeriveOperations derives every raw operation.
func DeriveOperations(raws []models.RawOperation) []models.OperationRecord {
	out := make([]models.OperationRecord, 0, len(raws))
	for _, raw := range raws {
		out = append(out, DeriveOperation(raw))
	}
	return out
}
