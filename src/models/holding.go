package models

import (
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/numeric"
	"github.com/shopspring/decimal"
)

// RawHolding is a holding as an institution or import source supplied it.
// Numeric fields may be strings in any locale, numbers or null. A nil Tags
// slice means the source did not send tags at all.
type RawHolding struct {
	Ticker       string      `json:"ticker"`
	PortfolioID  int64       `json:"portfolio_id"`
	Name         string      `json:"name,omitempty"`
	Category     string      `json:"category,omitempty"`
	Institution  string      `json:"institution,omitempty"`
	Shares       numeric.Raw `json:"shares"`
	AvgPrice     numeric.Raw `json:"avg_price"`
	CostBasis    numeric.Raw `json:"cost_basis,omitempty"`
	CurrentPrice numeric.Raw `json:"current_price"`
	Sector       string      `json:"sector,omitempty"`
	Industry     string      `json:"industry,omitempty"`
	Country      string      `json:"country,omitempty"`
	Region       string      `json:"region,omitempty"`
	Currency     string      `json:"currency,omitempty"`
	AssetType    string      `json:"asset_type,omitempty"`
	Tags         []string    `json:"tags"`
}

// HoldingsPage is what the holdings API returns for one scope.
type HoldingsPage struct {
	Records    []RawHolding `json:"records"`
	TotalValue numeric.Raw  `json:"total_value"`
}

// CostBasisSource tells where a record's cost basis came from.
type CostBasisSource string

const (
	CostBasisDerived CostBasisSource = "derived"
	CostBasisServer  CostBasisSource = "server"
)

// HoldingRecord is the canonical, fully valued position. Classification
// fields keep what the source sent; fallbacks are applied when aggregating.
type HoldingRecord struct {
	Ticker          string          `json:"ticker"`
	PortfolioID     int64           `json:"portfolio_id"`
	PortfolioIDs    []int64         `json:"portfolio_ids,omitempty"`
	Name            string          `json:"name,omitempty"`
	Category        string          `json:"category,omitempty"`
	Institution     string          `json:"institution,omitempty"`
	Shares          decimal.Decimal `json:"shares"`
	AvgPrice        decimal.Decimal `json:"avg_price"`
	CostBasis       decimal.Decimal `json:"cost_basis"`
	CostBasisSource CostBasisSource `json:"cost_basis_source"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	ProfitValue     decimal.Decimal `json:"profit_value"`
	ProfitPercent   *float64        `json:"profit_percent"`
	SharePercent    float64         `json:"share_percent"`
	Sector          string          `json:"sector,omitempty"`
	Industry        string          `json:"industry,omitempty"`
	Country         string          `json:"country,omitempty"`
	Region          string          `json:"region,omitempty"`
	Currency        string          `json:"currency,omitempty"`
	AssetType       string          `json:"asset_type,omitempty"`
	Tags            TagSet          `json:"tags"`
}

// Key identifies a holding within the engine.
func (h HoldingRecord) Key() HoldingKey {
	return HoldingKey{Ticker: h.Ticker, PortfolioID: h.PortfolioID}
}

// Clone returns a copy that shares no mutable state with h.
func (h HoldingRecord) Clone() HoldingRecord {
	out := h
	out.Tags = h.Tags.Clone()
	if h.PortfolioIDs != nil {
		out.PortfolioIDs = append([]int64(nil), h.PortfolioIDs...)
	}
	if h.ProfitPercent != nil {
		p := *h.ProfitPercent
		out.ProfitPercent = &p
	}
	return out
}

// HoldingKey is the (ticker, portfolio) identity of a holding.
type HoldingKey struct {
	Ticker      string
	PortfolioID int64
}

// MetadataFields are the user-editable parts of a holding. Nil pointers are
// left untouched; Tags, when non-nil, replaces the whole set.
type MetadataFields struct {
	Name        *string   `json:"name,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Institution *string   `json:"institution,omitempty"`
	Sector      *string   `json:"sector,omitempty"`
	Industry    *string   `json:"industry,omitempty"`
	Country     *string   `json:"country,omitempty"`
	Region      *string   `json:"region,omitempty"`
	Currency    *string   `json:"currency,omitempty"`
	AssetType   *string   `json:"asset_type,omitempty"`
	Tags        []TagName `json:"tags,omitempty"`
}
