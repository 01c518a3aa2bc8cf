// backend/src/services/holdings_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/models"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/numeric"
	"golang.org/x/net/publicsuffix"
)

// --- Wire Structs ---

type createTagRequest struct {
	Name models.TagName `json:"name"`
}

type refreshRequest struct {
	Scope   models.Scope `json:"scope"`
	Tickers []string     `json:"tickers"`
}

// priceLine is one NDJSON line of the refresh stream.
type priceLine struct {
	Ticker string      `json:"ticker"`
	Price  numeric.Raw `json:"price"`
	Error  string      `json:"error,omitempty"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// --- Client Implementation ---

type holdingsClient struct {
	baseURL    string
	token      string
	httpClient http.Client
}

// NewHoldingsClient talks JSON to the remote holdings API at baseURL.
func NewHoldingsClient(baseURL, token string, timeout time.Duration) HoldingsAPI {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &holdingsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
	}
}

func (c *holdingsClient) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// do sends the request and decodes a JSON answer into out (if non-nil).
func (c *holdingsClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		if eb.Error != "" {
			msg = eb.Error
		} else if eb.Message != "" {
			msg = eb.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// mapStatus attaches a sentinel to an APIError with the given status.
func mapStatus(err error, status int, sentinel error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == status {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}

func scopeQuery(scope models.Scope) url.Values {
	q := url.Values{}
	if scope.IsOverall() {
		q.Set("scope", string(models.ViewOverall))
	} else {
		q.Set("scope", "portfolio")
		q.Set("portfolio_id", strconv.FormatInt(scope.PortfolioID, 10))
	}
	return q
}

func (c *holdingsClient) FetchHoldings(ctx context.Context, scope models.Scope, filters models.Filters) (models.HoldingsPage, error) {
	q := scopeQuery(scope)
	setIf := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	setIf("category", filters.Category)
	setIf("institution", filters.Institution)
	setIf("q", filters.TickerQuery)
	setIf("tag", string(filters.Tag))

	var page models.HoldingsPage
	if err := c.do(ctx, http.MethodGet, "/holdings", q, nil, &page); err != nil {
		return models.HoldingsPage{}, err
	}
	return page, nil
}

func (c *holdingsClient) FetchOperations(ctx context.Context, portfolioID int64) ([]models.RawOperation, error) {
	q := url.Values{}
	if portfolioID != 0 {
		q.Set("portfolio_id", strconv.FormatInt(portfolioID, 10))
	}
	var ops []models.RawOperation
	if err := c.do(ctx, http.MethodGet, "/operations", q, nil, &ops); err != nil {
		return nil, err
	}
	return ops, nil
}

func (c *holdingsClient) FetchTags(ctx context.Context) (models.TagCatalog, error) {
	var catalog models.TagCatalog
	if err := c.do(ctx, http.MethodGet, "/tags", nil, nil, &catalog); err != nil {
		return models.TagCatalog{}, err
	}
	return catalog, nil
}

func (c *holdingsClient) CreateTagRemote(ctx context.Context, name models.TagName) error {
	err := c.do(ctx, http.MethodPost, "/tags", nil, createTagRequest{Name: name}, nil)
	return mapStatus(err, http.StatusConflict, ErrTagExists)
}

func (c *holdingsClient) DeleteTagRemote(ctx context.Context, name models.TagName) error {
	err := c.do(ctx, http.MethodDelete, "/tags/"+url.PathEscape(string(name)), nil, nil, nil)
	err = mapStatus(err, http.StatusNotFound, ErrTagNotFound)
	return mapStatus(err, http.StatusForbidden, ErrTagProtected)
}

func (c *holdingsClient) SaveHoldingMetadata(ctx context.Context, ticker string, portfolioID int64, fields models.MetadataFields) error {
	path := fmt.Sprintf("/holdings/%d/%s/metadata", portfolioID, url.PathEscape(ticker))
	err := c.do(ctx, http.MethodPut, path, nil, fields, nil)
	return mapStatus(err, http.StatusNotFound, ErrHoldingNotFound)
}

// RefreshPrices posts the tickers and streams the NDJSON answer, one line
// per ticker, into the returned channel.
func (c *holdingsClient) RefreshPrices(ctx context.Context, scope models.Scope, tickers []string) (<-chan PriceResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/prices/refresh", nil, refreshRequest{Scope: scope, Tickers: tickers})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh prices: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	out := make(chan PriceResult)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		dec := json.NewDecoder(resp.Body)
		for {
			var line priceLine
			if err := dec.Decode(&line); err != nil {
				if !errors.Is(err, io.EOF) {
					logger.FromContext(ctx).Warn("Price refresh stream ended early", "scope", scope.Key(), "error", err)
				}
				return
			}
			select {
			case out <- line.result():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (l priceLine) result() PriceResult {
	r := PriceResult{Ticker: strings.TrimSpace(l.Ticker)}
	switch {
	case l.Error == "" && l.Price.IsEmpty():
		r.Err = ErrPriceUnavailable
	case l.Error == "":
		r.Price = l.Price.Decimal()
	case strings.EqualFold(strings.TrimSpace(l.Error), ErrPriceUnavailable.Error()):
		r.Err = ErrPriceUnavailable
	default:
		r.Err = errors.New(l.Error)
	}
	return r
}
