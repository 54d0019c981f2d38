package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkaratzas/intrinsic/internal/clients/fmp"
	"github.com/dkaratzas/intrinsic/internal/modules/fundamentals"
	"github.com/go-chi/chi/v5"
	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient implements fundamentals.MarketDataClient for tests.
type mockClient struct {
	entries []fmp.CashFlowEntry
	quote   *fmp.Quote
}

func (m *mockClient) CashFlowHistory(ctx context.Context, symbol, period string, forceRefresh bool) ([]fmp.CashFlowEntry, error) {
	return m.entries, nil
}

func (m *mockClient) GetQuote(ctx context.Context, symbol string) (*fmp.Quote, error) {
	return m.quote, nil
}

func fcfPtr(v float64) *float64 { return &v }

func setupRouter(t *testing.T) *chi.Mux {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	historyDB := fundamentals.NewHistoryDB(db, zerolog.Nop())
	require.NoError(t, fundamentals.InitSchema(db))

	client := &mockClient{
		entries: []fmp.CashFlowEntry{
			{CalendarYear: "2023", Period: "FY", FreeCashFlow: fcfPtr(99.5e9)},
			{CalendarYear: "2022", Period: "FY", FreeCashFlow: fcfPtr(111.4e9)},
		},
		quote: &fmp.Quote{Symbol: "AAPL", Price: 190.5, MarketCap: 2.95e12},
	}

	service := fundamentals.NewService(client, historyDB, nil, zerolog.Nop())
	handler := NewHandler(service, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	return router
}

// TestGetFCF tests the FCF history endpoint.
func TestGetFCF(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/fundamentals/AAPL/fcf", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []fundamentals.FCFRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, 2023, resp.Data[0].Year)
	assert.Equal(t, 99.5e9, *resp.Data[0].FreeCashFlow)
}

// TestGetFCFInvalidPeriod tests period validation.
func TestGetFCFInvalidPeriod(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/fundamentals/AAPL/fcf?period=weekly", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestSync tests the forced refresh endpoint.
func TestSync(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/fundamentals/AAPL/sync", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []fundamentals.FCFRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

// TestGetQuote tests the quote endpoint.
func TestGetQuote(t *testing.T) {
	router := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/fundamentals/AAPL/quote", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data struct {
			Price     float64 `json:"price"`
			MarketCap float64 `json:"market_cap"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 190.5, resp.Data.Price)
}
