// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/shopspring/decimal"
)

// Errors reported by HoldingsAPI implementations.
var (
	// ErrPriceUnavailable means the ticker is valid but the provider has no quote.
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrTagExists        = errors.New("tag already exists")
	ErrTagNotFound      = errors.New("tag not found")
	ErrTagProtected     = errors.New("system tag cannot be deleted")
	ErrHoldingNotFound  = errors.New("holding not found")
)

// PriceResult is one element of a price refresh stream. Err is nil on success.
type PriceResult struct {
	Ticker string
	Price  decimal.Decimal
	Err    error
}

// HoldingsAPI is the remote holdings collaborator the engine consumes.
type HoldingsAPI interface {
	FetchHoldings(ctx context.Context, scope models.Scope, filters models.Filters) (models.HoldingsPage, error)
	// FetchOperations returns the operations of one portfolio, or of all
	// portfolios when portfolioID is 0.
	FetchOperations(ctx context.Context, portfolioID int64) ([]models.RawOperation, error)
	FetchTags(ctx context.Context) (models.TagCatalog, error)
	CreateTagRemote(ctx context.Context, name models.TagName) error
	DeleteTagRemote(ctx context.Context, name models.TagName) error
	SaveHoldingMetadata(ctx context.Context, ticker string, portfolioID int64, fields models.MetadataFields) error
	// RefreshPrices streams one result per requested ticker and closes the
	// channel when done. An error means the request could not be issued.
	RefreshPrices(ctx context.Context, scope models.Scope, tickers []string) (<-chan PriceResult, error)
}

// PricePersister is implemented by backends that hold the holdings records
// themselves. Prices streamed by RefreshPrices are not stored until the
// finished job hands them back here.
type PricePersister interface {
	PersistPrices(ctx context.Context, scope models.Scope, prices map[string]decimal.Decimal) error
}

// APIError is a non-2xx answer from the remote holdings API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("holdings api: status %d: %s", e.StatusCode, e.Message)
}
