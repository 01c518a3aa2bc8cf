// Package engine holds the records of the current view and coordinates
// loads, tag edits and price refreshes around them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/holdings"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/refresh"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/services"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/tags"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/viewmodel"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

// ErrHoldingNotFound is returned when an edit targets a holding that is not
// part of the loaded view.
var ErrHoldingNotFound = errors.New("holding not in the current view")

// Engine is safe for concurrent use. One mutex guards all record state and
// is never held across a call to the holdings API.
type Engine struct {
	api       services.HoldingsAPI
	refresh   *refresh.Manager
	viewCache *cache.Cache
	tagSync   *tags.Synchronizer

	mu         sync.Mutex
	view       models.ViewState
	loaded     bool
	generation uint64
	cancelLoad context.CancelFunc
	holdings   []models.HoldingRecord
	operations []models.OperationRecord
	reported   decimal.Decimal
}

// New wires an engine to api. viewCache may be nil.
func New(api services.HoldingsAPI, viewCache *cache.Cache, refreshOpts refresh.Options) *Engine {
	if viewCache == nil {
		viewCache = cache.New(DefaultCacheExpiration, CacheCleanupInterval)
	}
	e := &Engine{
		api:       api,
		refresh:   refresh.NewManager(api, refreshOpts),
		viewCache: viewCache,
		view:      models.DefaultViewState(),
		reported:  decimal.Zero,
	}
	e.tagSync = tags.NewSynchronizer(&e.mu, api, held{e}, e.viewCache.Flush)
	return e
}

// held exposes the engine's records to the tag synchronizer, which only
// reads them with e.mu held.
type held struct{ e *Engine }

func (h held) HeldHoldings() []models.HoldingRecord     { return h.e.holdings }
func (h held) HeldOperations() []models.OperationRecord { return h.e.operations }

// View returns the current view state.
func (e *Engine) View() models.ViewState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// Generation is the token of the most recent load or view change.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// SetView switches to view. Changes within the loaded scope (filters, sort,
// grouping) apply immediately; a new scope triggers a Load.
func (e *Engine) SetView(ctx context.Context, view models.ViewState) (bool, error) {
	view = view.Normalized()

	e.mu.Lock()
	if e.loaded && e.view.Scope().Equal(view.Scope()) {
		e.generation++
		if e.cancelLoad != nil {
			e.cancelLoad()
			e.cancelLoad = nil
		}
		e.view = view
		e.mu.Unlock()
		return true, nil
	}
	e.mu.Unlock()
	return e.Load(ctx, view)
}

// Load fetches the holdings, operations and tag catalog for view's scope and
// installs them. A newer Load or SetView supersedes it: the older load's
// requests are cancelled and its results dropped, reported as (false, nil).
func (e *Engine) Load(ctx context.Context, view models.ViewState) (bool, error) {
	view = view.Normalized()
	scope := view.Scope()
	log := logger.FromContext(ctx).With("scope", scope.Key())

	e.mu.Lock()
	e.generation++
	gen := e.generation
	if e.cancelLoad != nil {
		e.cancelLoad()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	e.cancelLoad = cancel
	e.mu.Unlock()
	defer cancel()

	var (
		page    models.HoldingsPage
		rawOps  []models.RawOperation
		catalog models.TagCatalog
	)
	g, gctx := errgroup.WithContext(loadCtx)
	g.Go(func() error {
		var err error
		// Filters are applied locally so share percentages keep the whole
		// scope as denominator.
		page, err = e.api.FetchHoldings(gctx, scope, models.Filters{})
		if err != nil {
			return fmt.Errorf("fetch holdings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rawOps, err = e.api.FetchOperations(gctx, scope.OperationsPortfolio())
		if err != nil {
			return fmt.Errorf("fetch operations: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		catalog, err = e.api.FetchTags(gctx)
		if err != nil {
			return fmt.Errorf("fetch tags: %w", err)
		}
		return nil
	})
	err := g.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		log.Debug("Discarding stale load result", "generation", gen, "current", e.generation)
		return false, nil
	}
	e.cancelLoad = nil
	if err != nil {
		log.Error("Failed to load holdings", "error", err)
		return false, fmt.Errorf("load %s: %w", scope, err)
	}

	records := holdings.DeriveAll(page.Records)
	if scope.IsOverall() {
		records = holdings.MergeByTicker(records)
	}
	known := tags.NewTaxonomy(catalog)
	records = holdings.MergeTagsForward(e.holdings, records, known.Has)

	previous := e.view.Scope()
	wasLoaded := e.loaded

	e.holdings = records
	e.operations = holdings.DeriveOperations(rawOps)
	e.reported = page.TotalValue.Decimal()
	e.view = view
	e.loaded = true
	e.tagSync.Reset(catalog)
	e.viewCache.Flush()

	if wasLoaded && !previous.Equal(scope) {
		e.refresh.Discard(previous)
	}

	log.Info("Holdings loaded", "holdings", len(e.holdings), "operations", len(e.operations), "generation", gen)
	return true, nil
}

// ViewModel derives the model for the current view. Models are cached per
// view state until the next mutation; the refresh status is always current.
// The returned model shares memory with the cache and must not be modified.
func (e *Engine) ViewModel() models.ViewModel {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := e.view.CacheKey()
	var vm models.ViewModel
	if cached, found := e.viewCache.Get(key); found {
		vm = cached.(models.ViewModel)
	} else {
		vm = viewmodel.Derive(viewmodel.Input{
			Holdings:      e.holdings,
			Operations:    e.operations,
			View:          e.view,
			Tags:          e.tagSync.Taxonomy().Catalog(),
			ReportedTotal: e.reported,
		})
		e.viewCache.Set(key, vm, cache.DefaultExpiration)
	}

	vm.Generation = e.generation
	if status, ok := e.refresh.Status(e.view.Scope()); ok {
		vm.Refresh = &status
	}
	return vm
}

// Tags returns the live tag catalog.
func (e *Engine) Tags() models.TagCatalog {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tagSync.Taxonomy().Catalog()
}

func (e *Engine) CreateTag(ctx context.Context, name string) (models.TagName, error) {
	return e.tagSync.CreateTag(ctx, name)
}

func (e *Engine) DeleteTag(ctx context.Context, name string) error {
	return e.tagSync.DeleteTag(ctx, name)
}

// find returns the index of the held record with key. The caller holds mu.
func (e *Engine) find(key models.HoldingKey) int {
	return slices.IndexFunc(e.holdings, func(h models.HoldingRecord) bool { return h.Key() == key })
}

// BeginEdit starts a metadata edit of the holding (ticker, portfolioID) of
// the loaded view. In the overall view portfolioID is 0.
func (e *Engine) BeginEdit(ticker string, portfolioID int64) (*tags.Draft, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.find(models.HoldingKey{Ticker: ticker, PortfolioID: portfolioID})
	if i < 0 {
		return nil, fmt.Errorf("%w: %s in portfolio %d", ErrHoldingNotFound, ticker, portfolioID)
	}
	return tags.NewDraft(e.holdings[i], e.tagSync.Exists), nil
}

// SaveMetadata persists the draft and, once the holdings API accepted it,
// applies it to the held record. A merged overall-view record is saved to
// every portfolio it came from.
func (e *Engine) SaveMetadata(ctx context.Context, d *tags.Draft) error {
	fields := d.Metadata()

	e.mu.Lock()
	i := e.find(d.Key())
	if i < 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s in portfolio %d", ErrHoldingNotFound, d.Ticker, d.PortfolioID)
	}
	for _, name := range fields.Tags {
		if !e.tagSync.Taxonomy().Has(name) {
			e.mu.Unlock()
			return &tags.NotFoundError{Name: name}
		}
	}
	targets := []int64{d.PortfolioID}
	if len(e.holdings[i].PortfolioIDs) > 0 {
		targets = slices.Clone(e.holdings[i].PortfolioIDs)
	}
	e.mu.Unlock()

	log := logger.FromContext(ctx).With("ticker", d.Ticker)
	for _, pid := range targets {
		if err := e.api.SaveHoldingMetadata(ctx, d.Ticker, pid, fields); err != nil {
			log.Warn("Failed to save holding metadata", "portfolioID", pid, "error", err)
			return fmt.Errorf("save metadata of %s in portfolio %d: %w", d.Ticker, pid, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	i = e.find(d.Key())
	if i < 0 {
		// A reload replaced the records; it already carries the saved state.
		return nil
	}
	fields.Tags = slices.DeleteFunc(fields.Tags, func(n models.TagName) bool { return !e.tagSync.Taxonomy().Has(n) })
	holdings.ApplyMetadata(&e.holdings[i], fields)
	e.tagSync.Reindex()
	e.viewCache.Flush()
	log.Info("Holding metadata saved", "portfolios", len(targets))
	return nil
}

// StartRefresh refreshes the prices of tickers in the current scope, or of
// every held ticker when tickers is empty.
func (e *Engine) StartRefresh(ctx context.Context, tickers []string) (models.JobStatus, error) {
	e.mu.Lock()
	scope := e.view.Scope()
	if len(tickers) == 0 {
		for _, h := range e.holdings {
			tickers = append(tickers, h.Ticker)
		}
	}
	e.mu.Unlock()

	return e.refresh.Start(ctx, scope, tickers, func(prices map[string]decimal.Decimal) {
		e.applyPrices(context.WithoutCancel(ctx), scope, prices)
	})
}

// applyPrices lands a finished job's prices, unless the view moved on to
// another scope meanwhile. Backends that keep the records themselves are
// written first; if that fails the loaded records are left alone.
func (e *Engine) applyPrices(ctx context.Context, scope models.Scope, prices map[string]decimal.Decimal) {
	log := logger.FromContext(ctx).With("scope", scope.Key())
	if !e.View().Scope().Equal(scope) {
		log.Info("Dropping refreshed prices for a scope no longer shown")
		return
	}
	if p, ok := e.api.(services.PricePersister); ok && len(prices) > 0 {
		if err := p.PersistPrices(ctx, scope, prices); err != nil {
			log.Error("Failed to persist refreshed prices", "error", err)
			return
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.view.Scope().Equal(scope) {
		log.Info("Dropping refreshed prices for a scope no longer shown")
		return
	}
	n := holdings.UpdatePrices(e.holdings, prices)
	e.viewCache.Flush()
	log.Info("Refreshed prices applied", "records", n)
}

// CancelRefresh cancels the current scope's job and reports whether one was running.
func (e *Engine) CancelRefresh() bool {
	return e.refresh.Cancel(e.View().Scope())
}

// RefreshStatus returns the current scope's latest job.
func (e *Engine) RefreshStatus() (models.JobStatus, bool) {
	return e.refresh.Status(e.View().Scope())
}

// WaitRefresh blocks until the current scope's job ends or ctx is done.
func (e *Engine) WaitRefresh(ctx context.Context) (models.JobStatus, error) {
	return e.refresh.Wait(ctx, e.View().Scope())
}
