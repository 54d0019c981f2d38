// Package fmp provides a client for the Financial Modeling Prep API.
// It supplies the two datasets the valuation engine needs: historical
// free cash flow (from cash flow statements) and real-time quotes.
package fmp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dkaratzas/intrinsic/internal/clientdata"
	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://financialmodelingprep.com/api/v3"

// CashFlowEntry is a single fiscal period from the cash flow statement endpoint.
// FMP returns calendarYear as a string and freeCashFlow as a number; freeCashFlow
// may be absent for partial periods, which json decodes as a nil pointer.
type CashFlowEntry struct {
	CalendarYear string   `json:"calendarYear"`
	Period       string   `json:"period"` // "FY", "Q1".."Q4"
	FreeCashFlow *float64 `json:"freeCashFlow"`
}

// Quote is a real-time quote snapshot.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"marketCap"`
}

// Client is the FMP API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
	cacheRepo  *clientdata.Repository
}

// NewClient creates a new FMP client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL, apiKey string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:       log.With().Str("component", "fmp").Logger(),
		cacheRepo: cacheRepo,
	}
}

// CashFlowHistory fetches the cash flow statement history for a symbol.
// period is "annual" or "quarterly". Results are newest-first, as FMP
// returns them. forceRefresh skips the cached response and goes to the
// API. If the API fails, returns stale cached data if available
// (stale data > no data).
func (c *Client) CashFlowHistory(ctx context.Context, symbol, period string, forceRefresh bool) ([]CashFlowEntry, error) {
	cacheKey := symbol + ":" + period

	var cached []CashFlowEntry
	if !forceRefresh && c.cacheFresh(clientdata.TableFMPFCFHistory, cacheKey, &cached) {
		c.log.Debug().Str("symbol", symbol).Str("period", period).Msg("FCF history cache hit")
		return cached, nil
	}

	path := fmt.Sprintf("/cash-flow-statement/%s", url.PathEscape(symbol))
	params := url.Values{"limit": {"40"}}
	if period == "quarterly" {
		params.Set("period", "quarter")
	}

	var entries []CashFlowEntry
	if err := c.getJSON(ctx, path, params, &entries); err != nil {
		if c.cacheStale(clientdata.TableFMPFCFHistory, cacheKey, &cached) {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("API failed, using stale FCF history")
			return cached, nil
		}
		return nil, err
	}

	c.cacheSet(clientdata.TableFMPFCFHistory, cacheKey, entries, clientdata.TTLFCFHistory)
	return entries, nil
}

// GetQuote fetches the current quote for a symbol.
// If the API fails, returns stale cached data if available.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	var cached Quote
	if c.cacheFresh(clientdata.TableFMPQuote, symbol, &cached) {
		c.log.Debug().Str("symbol", symbol).Msg("quote cache hit")
		return &cached, nil
	}

	path := fmt.Sprintf("/quote/%s", url.PathEscape(symbol))

	var quotes []Quote
	if err := c.getJSON(ctx, path, nil, &quotes); err != nil {
		if c.cacheStale(clientdata.TableFMPQuote, symbol, &cached) {
			c.log.Warn().Err(err).Str("symbol", symbol).Msg("API failed, using stale quote")
			return &cached, nil
		}
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}

	quote := quotes[0]
	c.cacheSet(clientdata.TableFMPQuote, symbol, quote, clientdata.TTLQuote)
	return &quote, nil
}

// getJSON performs a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("apikey", c.apiKey)

	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("FMP API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) cacheFresh(table, key string, out interface{}) bool {
	if c.cacheRepo == nil {
		return false
	}
	found, err := c.cacheRepo.GetIfFresh(table, key, out)
	if err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("Cache read failed")
		return false
	}
	return found
}

func (c *Client) cacheStale(table, key string, out interface{}) bool {
	if c.cacheRepo == nil {
		return false
	}
	found, err := c.cacheRepo.Get(table, key, out)
	if err != nil {
		return false
	}
	return found
}

func (c *Client) cacheSet(table, key string, data interface{}, ttl time.Duration) {
	if c.cacheRepo == nil {
		return
	}
	if err := c.cacheRepo.Store(table, key, data, ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Failed to cache response")
	}
}
