// Package viewmodel derives the renderable dashboard state from records and
// a view state. Derive is pure: it never mutates its inputs.
package viewmodel

import (
	"slices"
	"strings"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/diversification"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/grouping"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/holdings"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/sorter"
	"github.com/shopspring/decimal"
)

// Input is everything a view model is computed from.
type Input struct {
	// Holdings are the records of the whole scope, unfiltered.
	Holdings   []models.HoldingRecord
	Operations []models.OperationRecord
	View       models.ViewState
	Tags       models.TagCatalog
	Refresh    *models.JobStatus
	// ReportedTotal is the scope total the holdings API reported, if any.
	ReportedTotal decimal.Decimal
	Generation    uint64
}

// Derive builds the view model for in.
//
// Share percentages are relative to the scope total, computed before any
// filter. Diversification percentages are relative to the visible total so
// every breakdown sums to 100.
func Derive(in Input) models.ViewModel {
	view := in.View.Normalized()

	records := make([]models.HoldingRecord, len(in.Holdings))
	for i, h := range in.Holdings {
		records[i] = h.Clone()
	}
	scopeTotal := holdings.ScopeTotal(records)
	holdings.ApplySharePercent(records, scopeTotal)

	visible := sorter.Sort(holdings.Filter(records, view.Filters), view.SortKey, view.SortDirection)
	totals := Summarize(visible)
	totals.ScopeValue = scopeTotal
	totals.ReportedValue = in.ReportedTotal

	vm := models.ViewModel{
		View:            view,
		Generation:      in.Generation,
		Holdings:        visible,
		Totals:          totals,
		Diversification: diversification.Diversify(visible, totals.CurrentValue),
		Groups:          grouping.GroupBy(visible, view.GroupDimension, view.Metric),
		Operations:      Operations(in.Operations, view),
		Tags:            catalog(in.Tags),
	}
	if in.Refresh != nil {
		status := *in.Refresh
		vm.Refresh = &status
	}
	return vm
}

// Summarize totals the money fields of records.
func Summarize(records []models.HoldingRecord) models.Totals {
	t := models.Totals{
		Count:         len(records),
		CostBasis:     decimal.Zero,
		CurrentValue:  decimal.Zero,
		ProfitValue:   decimal.Zero,
		ScopeValue:    decimal.Zero,
		ReportedValue: decimal.Zero,
	}
	for _, h := range records {
		t.CostBasis = t.CostBasis.Add(h.CostBasis)
		t.CurrentValue = t.CurrentValue.Add(h.CurrentValue)
		t.ProfitValue = t.ProfitValue.Add(h.ProfitValue)
	}
	t.ProfitPercent = holdings.ProfitPercent(t.ProfitValue, t.CostBasis)
	return t
}

// Operations returns the operations of the view's scope that match its tag
// filter and ticker query, newest first.
func Operations(ops []models.OperationRecord, view models.ViewState) []models.OperationRecord {
	scope := view.Scope()
	query := strings.ToLower(strings.TrimSpace(view.Filters.TickerQuery))

	out := make([]models.OperationRecord, 0, len(ops))
	for _, op := range ops {
		if !scope.IsOverall() && op.PortfolioID != scope.PortfolioID {
			continue
		}
		if view.Filters.Tag != "" && !op.Tags.Has(view.Filters.Tag) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(op.Ticker), query) {
			continue
		}
		out = append(out, op.Clone())
	}
	slices.SortStableFunc(out, func(a, b models.OperationRecord) int {
		if c := b.TradeDate.Compare(a.TradeDate); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func catalog(c models.TagCatalog) models.TagCatalog {
	out := models.TagCatalog{
		All:    slices.Clone(c.All),
		Custom: slices.Clone(c.Custom),
		System: slices.Clone(c.System),
	}
	if out.All == nil {
		out.All = []models.TagName{}
	}
	if out.Custom == nil {
		out.Custom = []models.TagName{}
	}
	return out
}
