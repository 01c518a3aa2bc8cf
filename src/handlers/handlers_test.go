package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/database"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/engine"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/refresh"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/services"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, api services.HoldingsAPI, local LocalStore) (*httptest.Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(api, nil, refresh.Options{})
	r := chi.NewRouter()
	r.Use(ContextualLoggerMiddleware)
	r.Mount("/api", Routes(eng, local))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, eng
}

func memoryAPI() *services.MemoryAPI {
	api := services.NewMemoryAPI("Core")
	api.AddHolding(models.RawHolding{Ticker: "AAPL", PortfolioID: 1, Category: "Stocks", Shares: "10", AvgPrice: "150", CurrentPrice: "180", Tags: []string{"Tech"}})
	api.AddHolding(models.RawHolding{Ticker: "VWCE", PortfolioID: 2, Category: "ETF", Shares: "4", CostBasis: "400", CurrentPrice: "100", Tags: []string{}})
	return api
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestGetView(t *testing.T) {
	srv, _ := newServer(t, memoryAPI(), nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/view?sort=ticker&direction=asc", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	vm := decode[models.ViewModel](t, resp)
	require.Len(t, vm.Holdings, 2)
	require.Equal(t, "AAPL", vm.Holdings[0].Ticker)
	require.True(t, vm.Totals.CurrentValue.Equal(decimal.NewFromInt(2200)))

	resp = do(t, http.MethodGet, srv.URL+"/api/view?portfolio_id=2&group=sector", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	vm = decode[models.ViewModel](t, resp)
	require.Len(t, vm.Holdings, 1)
	require.Equal(t, models.GroupBySector, vm.View.GroupDimension)

	resp = do(t, http.MethodGet, srv.URL+"/api/view?portfolio_id=abc", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetViewBackendDown(t *testing.T) {
	api := memoryAPI()
	api.BeforeFetch = func(context.Context, models.Scope) error { return context.DeadlineExceeded }
	srv, _ := newServer(t, api, nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/view", "")
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	require.Equal(t, "Failed to load holdings", body["error"])
}

func TestUnknownAPIPath(t *testing.T) {
	srv, _ := newServer(t, memoryAPI(), nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/nope", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Not found", decode[map[string]string](t, resp)["error"])

	resp = do(t, http.MethodPost, srv.URL+"/api/holdings", `[]`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode, "import routes need a local store")
}

func TestTagRoutes(t *testing.T) {
	srv, _ := newServer(t, memoryAPI(), nil)
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/view", "").StatusCode)

	require.Equal(t, http.StatusCreated, do(t, http.MethodPost, srv.URL+"/api/tags", `{"name":"Income"}`).StatusCode)
	require.Equal(t, http.StatusConflict, do(t, http.MethodPost, srv.URL+"/api/tags", `{"name":"Income"}`).StatusCode)
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/tags", `{"name":"  "}`).StatusCode)

	require.Equal(t, http.StatusForbidden, do(t, http.MethodDelete, srv.URL+"/api/tags/Core", "").StatusCode)
	require.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, srv.URL+"/api/tags/Nope", "").StatusCode)
	require.Equal(t, http.StatusNoContent, do(t, http.MethodDelete, srv.URL+"/api/tags/Tech", "").StatusCode)

	catalog := decode[models.TagCatalog](t, do(t, http.MethodGet, srv.URL+"/api/tags", ""))
	require.Equal(t, []models.TagName{"Core", "Income"}, catalog.All)
}

func TestSaveMetadataRoute(t *testing.T) {
	srv, _ := newServer(t, memoryAPI(), nil)
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/view", "").StatusCode)

	resp := do(t, http.MethodPut, srv.URL+"/api/holdings/0/AAPL/metadata", `{"fields":{"sector":"Technology"},"tags":["Core"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	vm := decode[models.ViewModel](t, resp)
	for _, h := range vm.Holdings {
		if h.Ticker == "AAPL" {
			require.Equal(t, "Technology", h.Sector)
			require.Equal(t, []models.TagName{"Core"}, h.Tags.Sorted())
		}
	}

	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPut, srv.URL+"/api/holdings/0/AAPL/metadata", `{"fields":{"color":"red"}}`).StatusCode)
	require.Equal(t, http.StatusNotFound, do(t, http.MethodPut, srv.URL+"/api/holdings/0/AAPL/metadata", `{"tags":["Nope"]}`).StatusCode)
	require.Equal(t, http.StatusNotFound, do(t, http.MethodPut, srv.URL+"/api/holdings/0/MSFT/metadata", `{}`).StatusCode)
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPut, srv.URL+"/api/holdings/x/AAPL/metadata", `{}`).StatusCode)
}

func TestRefreshRoutes(t *testing.T) {
	api := memoryAPI()
	api.SetPrice("AAPL", decimal.NewFromInt(200))
	srv, eng := newServer(t, api, nil)
	require.Equal(t, http.StatusOK, do(t, http.MethodGet, srv.URL+"/api/view", "").StatusCode)

	require.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/api/refresh", "").StatusCode)
	require.Equal(t, http.StatusNotFound, do(t, http.MethodDelete, srv.URL+"/api/refresh", "").StatusCode)

	resp := do(t, http.MethodPost, srv.URL+"/api/refresh", "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	started := decode[models.JobStatus](t, resp)
	require.NotEmpty(t, started.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := eng.WaitRefresh(ctx)
	require.NoError(t, err)

	status := decode[models.JobStatus](t, do(t, http.MethodGet, srv.URL+"/api/refresh", ""))
	require.Equal(t, started.ID, status.ID)
	require.Equal(t, models.JobPartiallyFailed, status.State)
	require.Equal(t, []string{"VWCE"}, status.Unavailable())
}

func TestLocalStoreRoutes(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "holdings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	st, err := store.New(context.Background(), db, []string{"Core"})
	require.NoError(t, err)
	srv, eng := newServer(t, st, st)

	resp := do(t, http.MethodPost, srv.URL+"/api/holdings", `[{"ticker":"AAPL","portfolio_id":1,"shares":"10","avg_price":"150,00","current_price":180,"tags":["Core"]}]`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, http.MethodPost, srv.URL+"/api/operations", `[{"portfolio_id":1,"ticker":"AAPL","operation_type":"buy","amount":"1500","trade_date":"2024-01-02"}]`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, decode[map[string][]string](t, resp)["ids"], 1)
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/holdings", `{}`).StatusCode)
	require.Equal(t, http.StatusBadRequest, do(t, http.MethodPost, srv.URL+"/api/prices", `[{"ticker":"AAPL","date":"yesterday","price":"1"}]`).StatusCode)
	require.Equal(t, http.StatusOK, do(t, http.MethodPost, srv.URL+"/api/prices", `[{"ticker":"AAPL","date":"2024-05-02","price":"200"}]`).StatusCode)

	vm := decode[models.ViewModel](t, do(t, http.MethodGet, srv.URL+"/api/view", ""))
	require.Len(t, vm.Holdings, 1)
	require.Len(t, vm.Operations, 1)
	require.True(t, vm.Holdings[0].ProfitValue.Equal(decimal.NewFromInt(300)))

	require.Equal(t, http.StatusAccepted, do(t, http.MethodPost, srv.URL+"/api/refresh", `{"tickers":["AAPL"]}`).StatusCode)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := eng.WaitRefresh(ctx)
	require.NoError(t, err)
	require.Equal(t, models.JobCompleted, status.State)

	vm = decode[models.ViewModel](t, do(t, http.MethodGet, srv.URL+"/api/view", ""))
	require.True(t, vm.Holdings[0].CurrentValue.Equal(decimal.NewFromInt(2000)))
}
