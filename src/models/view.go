package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ViewMode selects the denominator universe for percentages.
type ViewMode string

const (
	ViewOverall      ViewMode = "overall"
	ViewPerPortfolio ViewMode = "perPortfolio"
)

// Scope is either the whole account or a single portfolio.
type Scope struct {
	Mode        ViewMode `json:"mode"`
	PortfolioID int64    `json:"portfolio_id,omitempty"`
}

func OverallScope() Scope              { return Scope{Mode: ViewOverall} }
func PortfolioScope(id int64) Scope    { return Scope{Mode: ViewPerPortfolio, PortfolioID: id} }
func (s Scope) IsOverall() bool        { return s.Mode != ViewPerPortfolio }
func (s Scope) Equal(other Scope) bool { return s.Key() == other.Key() }

// OperationsPortfolio is the portfolio id to fetch operations for; 0 means all.
func (s Scope) OperationsPortfolio() int64 {
	if s.IsOverall() {
		return 0
	}
	return s.PortfolioID
}

// Key is a stable string form, e.g. "overall" or "portfolio:7".
func (s Scope) Key() string {
	if s.IsOverall() {
		return string(ViewOverall)
	}
	return "portfolio:" + strconv.FormatInt(s.PortfolioID, 10)
}

func (s Scope) String() string { return s.Key() }

// Filters narrow the visible holdings. Empty fields match everything.
type Filters struct {
	Category    string  `json:"category,omitempty"`
	Institution string  `json:"institution,omitempty"`
	TickerQuery string  `json:"ticker_query,omitempty"`
	Tag         TagName `json:"tag,omitempty"`
}

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// GroupDimension is the bucket key for chart series.
type GroupDimension string

const (
	GroupByTicker    GroupDimension = "ticker"
	GroupBySector    GroupDimension = "sector"
	GroupByIndustry  GroupDimension = "industry"
	GroupByCountry   GroupDimension = "country"
	GroupByAssetType GroupDimension = "assetType"
)

// ParseGroupDimension returns the dimension for s, or false if unknown.
func ParseGroupDimension(s string) (GroupDimension, bool) {
	switch d := GroupDimension(s); d {
	case GroupByTicker, GroupBySector, GroupByIndustry, GroupByCountry, GroupByAssetType:
		return d, true
	}
	return "", false
}

// Metric orders group series.
type Metric string

const (
	MetricGainValue    Metric = "gainValue"
	MetricGainPercent  Metric = "gainPercent"
	MetricPricePercent Metric = "pricePercent"
)

// ParseMetric returns the metric for s, or false if unknown.
func ParseMetric(s string) (Metric, bool) {
	switch m := Metric(s); m {
	case MetricGainValue, MetricGainPercent, MetricPricePercent:
		return m, true
	}
	return "", false
}

// ViewState is owned by the presentation layer and never persisted.
type ViewState struct {
	Mode           ViewMode       `json:"mode"`
	PortfolioID    int64          `json:"portfolio_id,omitempty"`
	Filters        Filters        `json:"filters"`
	SortKey        string         `json:"sort_key"`
	SortDirection  SortDirection  `json:"sort_direction"`
	GroupDimension GroupDimension `json:"group_dimension"`
	Metric         Metric         `json:"metric"`
}

// DefaultViewState is the overall view sorted by value, grouped by ticker.
func DefaultViewState() ViewState {
	return ViewState{
		Mode:           ViewOverall,
		SortKey:        "currentValue",
		SortDirection:  SortDesc,
		GroupDimension: GroupByTicker,
		Metric:         MetricGainValue,
	}
}

// Normalized fills unset fields with defaults.
func (v ViewState) Normalized() ViewState {
	d := DefaultViewState()
	if v.Mode != ViewPerPortfolio {
		v.Mode = ViewOverall
		v.PortfolioID = 0
	}
	if v.SortKey == "" {
		v.SortKey = d.SortKey
	}
	if v.SortDirection != SortAsc && v.SortDirection != SortDesc {
		v.SortDirection = d.SortDirection
	}
	if _, ok := ParseGroupDimension(string(v.GroupDimension)); !ok {
		v.GroupDimension = d.GroupDimension
	}
	if _, ok := ParseMetric(string(v.Metric)); !ok {
		v.Metric = d.Metric
	}
	return v
}

func (v ViewState) Scope() Scope {
	if v.Mode == ViewPerPortfolio {
		return PortfolioScope(v.PortfolioID)
	}
	return OverallScope()
}

// CacheKey identifies a view state for memoizing derived view models.
func (v ViewState) CacheKey() string {
	f := v.Filters
	return strings.Join([]string{
		v.Scope().Key(),
		strings.ToLower(f.Category), strings.ToLower(f.Institution), strings.ToLower(f.TickerQuery), string(f.Tag),
		v.SortKey, string(v.SortDirection), string(v.GroupDimension), string(v.Metric),
	}, "|")
}

// GroupEntry is one bucket of a grouped chart series.
type GroupEntry struct {
	Label         string          `json:"label"`
	Count         int             `json:"count"`
	Tickers       []string        `json:"tickers"`
	Shares        decimal.Decimal `json:"shares"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	ProfitValue   decimal.Decimal `json:"profit_value"`
	PriceTotal    decimal.Decimal `json:"price_total"`
	AvgPriceTotal decimal.Decimal `json:"avg_price_total"`
	ProfitPercent float64         `json:"profit_percent"`
	PricePercent  float64         `json:"price_percent"`
}

// AllocationEntry is one slice of a diversification breakdown.
type AllocationEntry struct {
	Label      string          `json:"label"`
	Value      decimal.Decimal `json:"value"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

// Breakdown holds the five diversification dimensions.
type Breakdown struct {
	AssetAllocation    []AllocationEntry `json:"asset_allocation"`
	SectorAllocation   []AllocationEntry `json:"sector_allocation"`
	RegionAllocation   []AllocationEntry `json:"region_allocation"`
	CountryAllocation  []AllocationEntry `json:"country_allocation"`
	CurrencyAllocation []AllocationEntry `json:"currency_allocation"`
}

// Totals are the aggregate figures of the visible holdings.
type Totals struct {
	Count         int             `json:"count"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	ProfitValue   decimal.Decimal `json:"profit_value"`
	ProfitPercent *float64        `json:"profit_percent"`
	ScopeValue    decimal.Decimal `json:"scope_value"`
	ReportedValue decimal.Decimal `json:"reported_value"`
}

// ViewModel is everything the renderer draws. It carries no behavior.
type ViewModel struct {
	View            ViewState         `json:"view"`
	Generation      uint64            `json:"generation"`
	Holdings        []HoldingRecord   `json:"holdings"`
	Totals          Totals            `json:"totals"`
	Diversification Breakdown         `json:"diversification"`
	Groups          []GroupEntry      `json:"groups"`
	Operations      []OperationRecord `json:"operations"`
	Tags            TagCatalog        `json:"tags"`
	Refresh         *JobStatus        `json:"refresh,omitempty"`
}

func (v ViewModel) String() string {
	return fmt.Sprintf("view %s: %d holdings, value %s", v.View.Scope(), len(v.Holdings), v.Totals.CurrentValue)
}
