package holdings

import (
	"strings"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
)

// Fallback labels applied at aggregation time, never stored on records.
const (
	Other           = "Other"
	AssetOthers     = "Others"
	DefaultCurrency = "USD"
)

type assetClass struct {
	label    string
	keywords []string
}

// assetClasses is checked in order; the first match wins.
var assetClasses = []assetClass{
	{label: "Retirement Plans", keywords: []string{"retirement", "ppr"}},
	{label: "ETFs", keywords: []string{"etf"}},
	{label: "Funds", keywords: []string{"fund"}},
	{label: "Stocks", keywords: []string{"stock"}},
}

// AssetType classifies a free-text category.
func AssetType(category string) string {
	c := strings.ToLower(category)
	for _, class := range assetClasses {
		for _, kw := range class.keywords {
			if strings.Contains(c, kw) {
				return class.label
			}
		}
	}
	return AssetOthers
}

// AssetClass is the record's asset type, or its category classification.
func AssetClass(h models.HoldingRecord) string {
	if h.AssetType != "" {
		return h.AssetType
	}
	return AssetType(h.Category)
}

func orOther(s string) string {
	if strings.TrimSpace(s) == "" {
		return Other
	}
	return s
}

func Sector(h models.HoldingRecord) string   { return orOther(h.Sector) }
func Industry(h models.HoldingRecord) string { return orOther(h.Industry) }
func Country(h models.HoldingRecord) string  { return orOther(h.Country) }

// Region falls back to country, then Other.
func Region(h models.HoldingRecord) string {
	if h.Region != "" {
		return h.Region
	}
	return Country(h)
}

func Currency(h models.HoldingRecord) string {
	if h.Currency == "" {
		return DefaultCurrency
	}
	return h.Currency
}
