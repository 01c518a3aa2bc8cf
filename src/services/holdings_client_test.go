package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// recorder keeps the last request the fake server saw.
type recorder struct {
	mu    sync.Mutex
	query url.Values
	auth  string
}

func (r *recorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.query = req.URL.Query()
	r.auth = req.Header.Get("Authorization")
}

func (r *recorder) get() (url.Values, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.query, r.auth
}

func newTestServer(t *testing.T) (*httptest.Server, *recorder) {
	t.Helper()
	last := &recorder{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /holdings", func(w http.ResponseWriter, r *http.Request) {
		last.record(r)
		fmt.Fprint(w, `{"records":[{"ticker":"AAPL","portfolio_id":3,"shares":"10","avg_price":"150,00","current_price":180,"tags":null}],"total_value":"1.800,00"}`)
	})
	mux.HandleFunc("GET /operations", func(w http.ResponseWriter, r *http.Request) {
		last.record(r)
		fmt.Fprint(w, `[{"id":"op-1","portfolio_id":3,"ticker":"AAPL","operation_type":"buy","amount":"1500","trade_date":"2024-01-02","tags":["Core"]}]`)
	})
	mux.HandleFunc("GET /tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"all":["Core","Mine"],"custom":["Mine"]}`)
	})
	mux.HandleFunc("POST /tags", func(w http.ResponseWriter, r *http.Request) {
		var body createTagRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Name == "Core" {
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"error":"exists"}`)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("DELETE /tags/{name}", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("name") {
		case "Core":
			w.WriteHeader(http.StatusForbidden)
		case "Mine Too":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	mux.HandleFunc("PUT /holdings/{pid}/{ticker}/metadata", func(w http.ResponseWriter, r *http.Request) {
		last.record(r)
		if r.PathValue("ticker") != "AAPL" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /prices/refresh", func(w http.ResponseWriter, r *http.Request) {
		last.record(r)
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"ticker":"AAPL","price":"181,25"}`)
		fmt.Fprintln(w, `{"ticker":"ZZZZ","error":"Price unavailable"}`)
		fmt.Fprintln(w, `{"ticker":"BAD","error":"upstream timeout"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, last
}

func TestHoldingsClientFetch(t *testing.T) {
	srv, last := newTestServer(t)
	client := NewHoldingsClient(srv.URL+"/", "secret", 5*time.Second)
	ctx := context.Background()

	page, err := client.FetchHoldings(ctx, models.PortfolioScope(3), models.Filters{Category: "Stocks"})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	require.Nil(t, page.Records[0].Tags)
	require.True(t, page.TotalValue.Decimal().Equal(decimal.NewFromInt(1800)))
	query, auth := last.get()
	require.Equal(t, "portfolio", query.Get("scope"))
	require.Equal(t, "3", query.Get("portfolio_id"))
	require.Equal(t, "Stocks", query.Get("category"))
	require.Equal(t, "Bearer secret", auth)

	ops, err := client.FetchOperations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	query, _ = last.get()
	require.Empty(t, query.Get("portfolio_id"))

	catalog, err := client.FetchTags(ctx)
	require.NoError(t, err)
	require.Equal(t, []models.TagName{"Mine"}, catalog.Custom)
}

func TestHoldingsClientTagErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	client := NewHoldingsClient(srv.URL, "", 5*time.Second)
	ctx := context.Background()

	require.NoError(t, client.CreateTagRemote(ctx, "Income"))
	err := client.CreateTagRemote(ctx, "Core")
	require.ErrorIs(t, err, ErrTagExists)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "exists", apiErr.Message)

	require.NoError(t, client.DeleteTagRemote(ctx, "Mine Too"))
	require.ErrorIs(t, client.DeleteTagRemote(ctx, "Core"), ErrTagProtected)
	require.ErrorIs(t, client.DeleteTagRemote(ctx, "Nope"), ErrTagNotFound)

	require.NoError(t, client.SaveHoldingMetadata(ctx, "AAPL", 3, models.MetadataFields{}))
	require.ErrorIs(t, client.SaveHoldingMetadata(ctx, "MSFT", 3, models.MetadataFields{}), ErrHoldingNotFound)
}

func TestHoldingsClientRefreshStream(t *testing.T) {
	srv, _ := newTestServer(t)
	client := NewHoldingsClient(srv.URL, "", 5*time.Second)

	ch, err := client.RefreshPrices(context.Background(), models.OverallScope(), []string{"AAPL", "ZZZZ", "BAD"})
	require.NoError(t, err)

	var results []PriceResult
	for r := range ch {
		results = append(results, r)
	}
	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	require.True(t, results[0].Price.Equal(decimal.RequireFromString("181.25")))
	require.ErrorIs(t, results[1].Err, ErrPriceUnavailable)
	require.Error(t, results[2].Err)
	require.False(t, errors.Is(results[2].Err, ErrPriceUnavailable))
}

func TestHoldingsClientServerDown(t *testing.T) {
	srv, _ := newTestServer(t)
	base := srv.URL
	srv.Close()

	client := NewHoldingsClient(base, "", time.Second)
	_, err := client.RefreshPrices(context.Background(), models.OverallScope(), []string{"AAPL"})
	require.Error(t, err)
	_, err = client.FetchTags(context.Background())
	require.Error(t, err)
}
