package fmp

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkaratzas/intrinsic/internal/clientdata"
	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCacheRepo(t *testing.T) *clientdata.Repository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
CREATE TABLE fmp_fcf_history (key TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE fmp_quote (key TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
CREATE TABLE advisor_scenarios (key TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL);
`)
	require.NoError(t, err)

	return clientdata.NewRepository(db)
}

// TestNewClient tests client creation.
func TestNewClient(t *testing.T) {
	client := NewClient("", "test-key", nil, zerolog.Nop())

	assert.NotNil(t, client)
	assert.Equal(t, "test-key", client.apiKey)
	assert.Equal(t, defaultBaseURL, client.baseURL)
}

// TestCashFlowHistory tests fetching and decoding FCF history.
func TestCashFlowHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cash-flow-statement/AAPL", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		assert.Equal(t, "40", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"calendarYear": "2023", "period": "FY", "freeCashFlow": 99584000000},
			{"calendarYear": "2022", "period": "FY", "freeCashFlow": 111443000000},
			{"calendarYear": "2021", "period": "FY"}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", nil, zerolog.Nop())

	entries, err := client.CashFlowHistory(context.Background(), "AAPL", "annual", false)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "2023", entries[0].CalendarYear)
	assert.Equal(t, "FY", entries[0].Period)
	require.NotNil(t, entries[0].FreeCashFlow)
	assert.Equal(t, 99584000000.0, *entries[0].FreeCashFlow)

	// Missing freeCashFlow decodes as nil, not zero
	assert.Nil(t, entries[2].FreeCashFlow)
}

// TestCashFlowHistoryQuarterly tests the quarterly period parameter.
func TestCashFlowHistoryQuarterly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "quarter", r.URL.Query().Get("period"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", nil, zerolog.Nop())

	entries, err := client.CashFlowHistory(context.Background(), "AAPL", "quarterly", false)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestCashFlowHistoryCache tests that a fresh cached response short-circuits
// the API and that forceRefresh goes to the API anyway.
func TestCashFlowHistoryCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`[{"calendarYear": "2023", "period": "FY", "freeCashFlow": 100}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", setupCacheRepo(t), zerolog.Nop())

	_, err := client.CashFlowHistory(context.Background(), "AAPL", "annual", false)
	require.NoError(t, err)
	assert.Equal(t, 1, hits)

	// Second read is served from cache
	entries, err := client.CashFlowHistory(context.Background(), "AAPL", "annual", false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, hits)

	// Forced refresh bypasses the warm cache
	_, err = client.CashFlowHistory(context.Background(), "AAPL", "annual", true)
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
}

// TestGetQuote tests fetching and decoding a quote.
func TestGetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/MSFT", r.URL.Path)

		_, _ = w.Write([]byte(`[{"symbol": "MSFT", "price": 420.5, "marketCap": 3120000000000}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", nil, zerolog.Nop())

	quote, err := client.GetQuote(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", quote.Symbol)
	assert.Equal(t, 420.5, quote.Price)
	assert.Equal(t, 3120000000000.0, quote.MarketCap)
}

// TestGetQuoteEmpty tests that an empty response array is an error.
func TestGetQuoteEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", nil, zerolog.Nop())

	_, err := client.GetQuote(context.Background(), "NOPE")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no quote")
}

// TestAPIError tests that non-200 responses surface as errors.
func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"Error Message": "Invalid API KEY"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad-key", nil, zerolog.Nop())

	_, err := client.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

// TestContextCancellation tests that an already-cancelled context aborts the request.
func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.CashFlowHistory(ctx, "AAPL", "annual", false)
	assert.Error(t, err)
}
