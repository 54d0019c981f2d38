// Package advisor provides a client for the scenario advisor service,
// which generates conservative/base/optimistic assumption presets for
// a symbol from its cash flow profile.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dkaratzas/intrinsic/internal/clientdata"
	"github.com/rs/zerolog"
)

// Client communicates with the scenario advisor service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
	cacheRepo  *clientdata.Repository
}

// NewClient creates a new advisor client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // Scenario generation can take time
		},
		log:       log.With().Str("component", "advisor_client").Logger(),
		cacheRepo: cacheRepo,
	}
}

// RateSet is one set of valuation rates, as whole percentages.
type RateSet struct {
	GrowthRate         float64 `json:"growth_rate"`
	TerminalGrowthRate float64 `json:"terminal_growth_rate"`
	DiscountRate       float64 `json:"discount_rate"`
}

// ScenarioSet is the advisor's full recommendation for a symbol.
type ScenarioSet struct {
	Symbol       string  `json:"symbol"`
	Reasoning    string  `json:"reasoning"`
	Conservative RateSet `json:"conservative"`
	Base         RateSet `json:"base"`
	Optimistic   RateSet `json:"optimistic"`
}

// RecommendRequest is the payload sent to the advisor service.
// ForceRefresh bypasses the response cache and tells the advisor to
// generate anew rather than replay its own last answer.
type RecommendRequest struct {
	Symbol       string   `json:"symbol"`
	LatestFCF    *float64 `json:"latest_fcf,omitempty"`
	CAGR5        *float64 `json:"cagr_5,omitempty"`
	CAGR10       *float64 `json:"cagr_10,omitempty"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
}

// RecommendScenarios asks the advisor service for scenario presets.
// Responses are cached; a fresh cached set short-circuits the call
// unless req.ForceRefresh is set.
func (c *Client) RecommendScenarios(ctx context.Context, req RecommendRequest) (*ScenarioSet, error) {
	var cached ScenarioSet
	if c.cacheRepo != nil && !req.ForceRefresh {
		found, err := c.cacheRepo.GetIfFresh(clientdata.TableAdvisorScenarios, req.Symbol, &cached)
		if err == nil && found {
			c.log.Debug().Str("symbol", req.Symbol).Msg("Scenario cache hit")
			return &cached, nil
		}
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/scenarios/recommend", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Service unreachable - serve a stale cached set if one exists
		if c.cacheRepo != nil {
			found, cacheErr := c.cacheRepo.Get(clientdata.TableAdvisorScenarios, req.Symbol, &cached)
			if cacheErr == nil && found {
				c.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("Advisor unreachable, using stale scenarios")
				return &cached, nil
			}
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("advisor service returned status %d: %s", resp.StatusCode, string(body))
	}

	var set ScenarioSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableAdvisorScenarios, req.Symbol, set, clientdata.TTLScenarios); err != nil {
			c.log.Warn().Err(err).Str("symbol", req.Symbol).Msg("Failed to cache scenarios")
		}
	}

	c.log.Info().
		Str("symbol", req.Symbol).
		Float64("elapsed_seconds", time.Since(startTime).Seconds()).
		Msg("Scenario recommendation complete")

	return &set, nil
}
