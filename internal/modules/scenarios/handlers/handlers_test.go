package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkaratzas/intrinsic/internal/clients/advisor"
	"github.com/dkaratzas/intrinsic/internal/modules/scenarios"
	"github.com/dkaratzas/intrinsic/internal/modules/valuation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const testSchema = `
CREATE TABLE scenario_recommendations (
	uuid TEXT PRIMARY KEY,
	symbol TEXT NOT NULL,
	reasoning TEXT NOT NULL DEFAULT '',
	conservative_json TEXT NOT NULL,
	base_json TEXT NOT NULL,
	optimistic_json TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
`

// mockAdvisor implements scenarios.AdvisorClient for tests.
type mockAdvisor struct {
	set     *advisor.ScenarioSet
	block   chan struct{} // when set, RecommendScenarios waits for ctx or close
	entered chan struct{} // when set, receives one signal per call
}

func (m *mockAdvisor) RecommendScenarios(ctx context.Context, req advisor.RecommendRequest) (*advisor.ScenarioSet, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.block:
		}
	}
	set := *m.set
	set.Symbol = req.Symbol
	return &set, nil
}

func fcfPtr(v float64) *float64 { return &v }

func setupRouter(t *testing.T) (*chi.Mux, *valuation.Registry) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	client := &mockAdvisor{
		set: &advisor.ScenarioSet{
			Reasoning:    "cyclical FCF base",
			Conservative: advisor.RateSet{GrowthRate: 2, TerminalGrowthRate: 1.5, DiscountRate: 13},
			Base:         advisor.RateSet{GrowthRate: 5, TerminalGrowthRate: 2.5, DiscountRate: 10},
			Optimistic:   advisor.RateSet{GrowthRate: 8, TerminalGrowthRate: 3, DiscountRate: 9},
		},
	}

	registry := valuation.NewRegistry(zerolog.Nop())
	repo := scenarios.NewRepository(db, zerolog.Nop())
	service := scenarios.NewService(client, repo, registry, nil, zerolog.Nop())
	handler := NewHandler(service, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	// Seed a valuation session so presets have something to apply to
	orch := registry.Get("AAPL")
	require.NoError(t, orch.SetHistory([]valuation.Record{
		{Year: 2023, Period: valuation.PeriodAnnual, FreeCashFlow: fcfPtr(100)},
		{Year: 2022, Period: valuation.PeriodAnnual, FreeCashFlow: fcfPtr(95)},
		{Year: 2021, Period: valuation.PeriodAnnual, FreeCashFlow: fcfPtr(90)},
	}))
	require.NoError(t, orch.SetQuote(valuation.Quote{Price: 50, MarketCap: 500}))

	return router, registry
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestGetLatest tests fetch-or-generate behavior.
func TestGetLatest(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/scenarios/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data scenarios.Recommendation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Data.Symbol)
	assert.NotEmpty(t, resp.Data.UUID)
	assert.Equal(t, 5.0, resp.Data.Base.GrowthRate)
}

// TestGetLatestRefresh tests the refresh query parameter forcing regeneration.
func TestGetLatestRefresh(t *testing.T) {
	router, _ := setupRouter(t)

	first := doRequest(t, router, http.MethodGet, "/api/scenarios/AAPL", "")
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(t, router, http.MethodGet, "/api/scenarios/AAPL?refresh=true", "")
	require.Equal(t, http.StatusOK, second.Code)

	var a, b struct {
		Data scenarios.Recommendation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.NotEqual(t, a.Data.UUID, b.Data.UUID, "refresh=true bypasses the stored recommendation")
}

// TestGenerate tests explicit regeneration.
func TestGenerate(t *testing.T) {
	router, _ := setupRouter(t)

	first := doRequest(t, router, http.MethodPost, "/api/scenarios/AAPL/generate", "")
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(t, router, http.MethodPost, "/api/scenarios/AAPL/generate", "")
	require.Equal(t, http.StatusOK, second.Code)

	var a, b struct {
		Data scenarios.Recommendation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.NotEqual(t, a.Data.UUID, b.Data.UUID, "each generate stores a new recommendation")
}

// TestGenerateSuperseded tests that a generation replaced by a newer
// request for the same symbol answers 409.
func TestGenerateSuperseded(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	client := &mockAdvisor{
		set: &advisor.ScenarioSet{
			Conservative: advisor.RateSet{GrowthRate: 2, TerminalGrowthRate: 1.5, DiscountRate: 13},
			Base:         advisor.RateSet{GrowthRate: 5, TerminalGrowthRate: 2.5, DiscountRate: 10},
			Optimistic:   advisor.RateSet{GrowthRate: 8, TerminalGrowthRate: 3, DiscountRate: 9},
		},
		block:   make(chan struct{}),
		entered: make(chan struct{}),
	}

	registry := valuation.NewRegistry(zerolog.Nop())
	service := scenarios.NewService(client, scenarios.NewRepository(db, zerolog.Nop()), registry, nil, zerolog.Nop())
	handler := NewHandler(service, zerolog.Nop())
	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		first <- doRequest(t, router, http.MethodPost, "/api/scenarios/AAPL/generate", "")
	}()
	<-client.entered

	second := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		second <- doRequest(t, router, http.MethodPost, "/api/scenarios/AAPL/generate", "")
	}()
	<-client.entered
	close(client.block)

	assert.Equal(t, http.StatusConflict, (<-first).Code)
	assert.Equal(t, http.StatusOK, (<-second).Code)
}

// TestApplyPreset tests preset application through HTTP.
func TestApplyPreset(t *testing.T) {
	router, registry := setupRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/scenarios/AAPL/apply", `{"preset": "optimistic"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	orch := registry.Get("AAPL")
	assert.Equal(t, 8.0, orch.Assumptions().GrowthRate)
	assert.Equal(t, 9.0, orch.Assumptions().DiscountRate)

	var resp struct {
		Data valuation.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Positive(t, resp.Data.IntrinsicValuePerShare)
}

// TestApplyPresetUnknown tests bad preset names.
func TestApplyPresetUnknown(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/scenarios/AAPL/apply", `{"preset": "yolo"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestApplyPresetInvalidBody tests malformed JSON rejection.
func TestApplyPresetInvalidBody(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/scenarios/AAPL/apply", `{nope`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
