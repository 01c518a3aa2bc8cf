package models

import (
	"strings"
	"time"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/numeric"
	"github.com/shopspring/decimal"
)

// RawOperation is a transaction or import line from the holdings API.
type RawOperation struct {
	ID            string      `json:"id"`
	PortfolioID   int64       `json:"portfolio_id"`
	Ticker        string      `json:"ticker,omitempty"`
	OperationType string      `json:"operation_type"`
	Amount        numeric.Raw `json:"amount"`
	TradeDate     string      `json:"trade_date"`
	Tags          []string    `json:"tags"`
}

// OperationRecord is an immutable transaction event. Only its tag set
// changes, and only when the taxonomy removes a tag.
type OperationRecord struct {
	ID            string          `json:"id"`
	PortfolioID   int64           `json:"portfolio_id"`
	Ticker        string          `json:"ticker,omitempty"`
	OperationType string          `json:"operation_type"`
	Amount        decimal.Decimal `json:"amount"`
	TradeDate     time.Time       `json:"trade_date"`
	Tags          TagSet          `json:"tags"`
}

func (o OperationRecord) Clone() OperationRecord {
	out := o
	out.Tags = o.Tags.Clone()
	return out
}

var tradeDateLayouts = []string{time.RFC3339, "2006-01-02", "02-01-2006", "02/01/2006"}

// ParseTradeDate accepts the date layouts used by the import sources. An
// unreadable date yields the zero time.
func ParseTradeDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range tradeDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
