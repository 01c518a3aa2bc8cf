// backend/src/services/memory_api.go
package services

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/numeric"
	"github.com/shopspring/decimal"
)

// MemoryAPI is an in-process HoldingsAPI. It backs demos and tests; the
// hooks let callers inject latency and failures.
type MemoryAPI struct {
	mu         sync.RWMutex
	holdings   []models.RawHolding
	operations []models.RawOperation
	tags       map[models.TagName]bool // name -> system
	prices     map[string]decimal.Decimal
	priceErrs  map[string]error

	// BeforeFetch runs at the start of FetchHoldings; a non-nil error fails the fetch.
	BeforeFetch func(ctx context.Context, scope models.Scope) error
	// BeforeQuote runs before each ticker of a refresh is answered.
	BeforeQuote func(ctx context.Context, ticker string)
	// RefreshErr, when set, makes RefreshPrices fail before streaming.
	RefreshErr error
	CreateErr  error
	DeleteErr  error
	SaveErr    error
}

func NewMemoryAPI(systemTags ...string) *MemoryAPI {
	m := &MemoryAPI{
		tags:      make(map[models.TagName]bool),
		prices:    make(map[string]decimal.Decimal),
		priceErrs: make(map[string]error),
	}
	for _, t := range systemTags {
		m.tags[models.TagName(t)] = true
	}
	return m
}

// --- Seeding ---

func (m *MemoryAPI) AddHolding(h models.RawHolding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range h.Tags {
		if _, ok := m.tags[models.TagName(t)]; !ok {
			m.tags[models.TagName(t)] = false
		}
	}
	m.holdings = append(m.holdings, h)
}

func (m *MemoryAPI) AddOperation(op models.RawOperation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range op.Tags {
		if _, ok := m.tags[models.TagName(t)]; !ok {
			m.tags[models.TagName(t)] = false
		}
	}
	m.operations = append(m.operations, op)
}

// SetPrice makes ticker quotable at price.
func (m *MemoryAPI) SetPrice(ticker string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[ticker] = price
}

// SetPriceError makes ticker fail with err on refresh.
func (m *MemoryAPI) SetPriceError(ticker string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceErrs[ticker] = err
}

// Holding returns the stored raw holding.
func (m *MemoryAPI) Holding(ticker string, portfolioID int64) (models.RawHolding, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.holdings {
		if h.Ticker == ticker && h.PortfolioID == portfolioID {
			return h, true
		}
	}
	return models.RawHolding{}, false
}

// --- HoldingsAPI ---

func (m *MemoryAPI) FetchHoldings(ctx context.Context, scope models.Scope, filters models.Filters) (models.HoldingsPage, error) {
	if m.BeforeFetch != nil {
		if err := m.BeforeFetch(ctx, scope); err != nil {
			return models.HoldingsPage{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return models.HoldingsPage{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	page := models.HoldingsPage{Records: []models.RawHolding{}}
	total := decimal.Zero
	for _, h := range m.holdings {
		if !scope.IsOverall() && h.PortfolioID != scope.PortfolioID {
			continue
		}
		if filters.Category != "" && !strings.EqualFold(h.Category, filters.Category) {
			continue
		}
		if filters.Institution != "" && !strings.EqualFold(h.Institution, filters.Institution) {
			continue
		}
		if filters.Tag != "" && !slices.Contains(h.Tags, string(filters.Tag)) {
			continue
		}
		cp := h
		if h.Tags != nil {
			cp.Tags = slices.Clone(h.Tags)
		}
		page.Records = append(page.Records, cp)
		total = total.Add(numeric.Normalize(h.Shares).Mul(numeric.Normalize(h.CurrentPrice)))
	}
	page.TotalValue = numeric.RawFromDecimal(total)
	return page, nil
}

func (m *MemoryAPI) FetchOperations(ctx context.Context, portfolioID int64) ([]models.RawOperation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.RawOperation{}
	for _, op := range m.operations {
		if portfolioID != 0 && op.PortfolioID != portfolioID {
			continue
		}
		cp := op
		cp.Tags = slices.Clone(op.Tags)
		out = append(out, cp)
	}
	return out, nil
}

func (m *MemoryAPI) FetchTags(ctx context.Context) (models.TagCatalog, error) {
	if err := ctx.Err(); err != nil {
		return models.TagCatalog{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := models.TagCatalog{All: []models.TagName{}, Custom: []models.TagName{}}
	for name, system := range m.tags {
		c.All = append(c.All, name)
		if !system {
			c.Custom = append(c.Custom, name)
		}
	}
	slices.Sort(c.All)
	slices.Sort(c.Custom)
	return c, nil
}

func (m *MemoryAPI) CreateTagRemote(_ context.Context, name models.TagName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if _, ok := m.tags[name]; ok {
		return ErrTagExists
	}
	m.tags[name] = false
	return nil
}

func (m *MemoryAPI) DeleteTagRemote(_ context.Context, name models.TagName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	system, ok := m.tags[name]
	if !ok {
		return ErrTagNotFound
	}
	if system {
		return ErrTagProtected
	}
	delete(m.tags, name)
	for i := range m.holdings {
		m.holdings[i].Tags = removeString(m.holdings[i].Tags, string(name))
	}
	for i := range m.operations {
		m.operations[i].Tags = removeString(m.operations[i].Tags, string(name))
	}
	return nil
}

func removeString(list []string, s string) []string {
	if list == nil {
		return nil
	}
	return slices.DeleteFunc(slices.Clone(list), func(v string) bool { return v == s })
}

func (m *MemoryAPI) SaveHoldingMetadata(_ context.Context, ticker string, portfolioID int64, fields models.MetadataFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	for _, t := range fields.Tags {
		if _, ok := m.tags[t]; !ok {
			return ErrTagNotFound
		}
	}
	for i := range m.holdings {
		h := &m.holdings[i]
		if h.Ticker != ticker || h.PortfolioID != portfolioID {
			continue
		}
		set := func(dst *string, src *string) {
			if src != nil {
				*dst = *src
			}
		}
		set(&h.Name, fields.Name)
		set(&h.Category, fields.Category)
		set(&h.Institution, fields.Institution)
		set(&h.Sector, fields.Sector)
		set(&h.Industry, fields.Industry)
		set(&h.Country, fields.Country)
		set(&h.Region, fields.Region)
		set(&h.Currency, fields.Currency)
		set(&h.AssetType, fields.AssetType)
		if fields.Tags != nil {
			h.Tags = make([]string, len(fields.Tags))
			for j, t := range fields.Tags {
				h.Tags[j] = string(t)
			}
		}
		return nil
	}
	return ErrHoldingNotFound
}

// RefreshPrices answers every ticker in order. Tickers without a configured
// price report ErrPriceUnavailable. Successful quotes are also written to the
// stored holdings, as a server would.
func (m *MemoryAPI) RefreshPrices(ctx context.Context, scope models.Scope, tickers []string) (<-chan PriceResult, error) {
	if m.RefreshErr != nil {
		return nil, m.RefreshErr
	}
	out := make(chan PriceResult)
	go func() {
		defer close(out)
		for _, ticker := range tickers {
			if m.BeforeQuote != nil {
				m.BeforeQuote(ctx, ticker)
			}
			r := m.quote(ticker)
			select {
			case out <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (m *MemoryAPI) quote(ticker string) PriceResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.priceErrs[ticker]; ok {
		return PriceResult{Ticker: ticker, Err: err}
	}
	price, ok := m.prices[ticker]
	if !ok {
		return PriceResult{Ticker: ticker, Err: ErrPriceUnavailable}
	}
	return PriceResult{Ticker: ticker, Price: price}
}

func (m *MemoryAPI) PersistPrices(_ context.Context, scope models.Scope, prices map[string]decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.holdings {
		h := &m.holdings[i]
		price, ok := prices[h.Ticker]
		if ok && (scope.IsOverall() || h.PortfolioID == scope.PortfolioID) {
			h.CurrentPrice = numeric.RawFromDecimal(price)
		}
	}
	return nil
}
