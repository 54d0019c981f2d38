package scenarios

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkaratzas/intrinsic/internal/clients/advisor"
	"github.com/dkaratzas/intrinsic/internal/events"
	"github.com/dkaratzas/intrinsic/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// recommendationTTL bounds how long an advisor recommendation is
// considered current before a regenerate is warranted.
const recommendationTTL = 24 * time.Hour

// AdvisorClient is the advisor surface the service needs.
type AdvisorClient interface {
	RecommendScenarios(ctx context.Context, req advisor.RecommendRequest) (*advisor.ScenarioSet, error)
}

// Service generates, stores and applies scenario recommendations.
//
// Generation is cancel-and-replace per symbol: a new request for a
// symbol cancels any generation still in flight for that symbol, so
// only the latest request's result lands.
type Service struct {
	client       AdvisorClient
	repo         *Repository
	registry     *valuation.Registry
	eventManager *events.Manager
	log          zerolog.Logger

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

// NewService creates a new scenarios service.
// eventManager is optional - if nil, no events are emitted.
func NewService(client AdvisorClient, repo *Repository, registry *valuation.Registry, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		client:       client,
		repo:         repo,
		registry:     registry,
		eventManager: eventManager,
		log:          log.With().Str("component", "scenarios").Logger(),
		inflight:     make(map[string]context.CancelFunc),
	}
}

// Generate requests a fresh recommendation for a symbol and stores it.
// The advisor's response cache is bypassed - a regenerate that replays
// a cached answer is not a regenerate. Any generation already in
// flight for the same symbol is cancelled before the new one starts.
func (s *Service) Generate(ctx context.Context, symbol string) (*Recommendation, error) {
	return s.generate(ctx, strings.ToUpper(symbol), true)
}

func (s *Service) generate(ctx context.Context, symbol string, force bool) (*Recommendation, error) {
	ctx = s.replaceInflight(ctx, symbol)
	defer s.clearInflight(symbol, ctx)

	req := advisor.RecommendRequest{Symbol: symbol, ForceRefresh: force}
	if orch := s.registry.Get(symbol); orch != nil {
		if metrics, ok := orch.Metrics(); ok {
			latest := metrics.Latest
			req.LatestFCF = &latest
			req.CAGR5 = metrics.CAGR5
			req.CAGR10 = metrics.CAGR10
		}
	}

	set, err := s.client.RecommendScenarios(ctx, req)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, fmt.Errorf("generation for %s superseded: %w", symbol, ctx.Err())
		}
		return nil, fmt.Errorf("failed to generate scenarios for %s: %w", symbol, err)
	}
	set.Symbol = symbol

	rec := fromScenarioSet(set, time.Now().UTC(), recommendationTTL)
	if rec.UUID, err = s.repo.Save(rec); err != nil {
		return nil, err
	}

	if s.eventManager != nil {
		s.eventManager.EmitData("scenarios", &events.RecommendationsReadyData{
			Symbol: symbol,
			Count:  3,
		})
	}

	s.log.Info().
		Str("symbol", symbol).
		Str("uuid", rec.UUID).
		Msg("Scenario recommendation generated")

	return &rec, nil
}

// Latest returns the newest stored recommendation for a symbol,
// generating one if the store has none or only an expired one.
func (s *Service) Latest(ctx context.Context, symbol string) (*Recommendation, error) {
	symbol = strings.ToUpper(symbol)

	rec, err := s.repo.Latest(symbol)
	if err != nil {
		return nil, err
	}
	if rec != nil && !rec.Expired(time.Now().UTC()) {
		return rec, nil
	}

	// A store miss is not a forced regenerate; a fresh cached advisor
	// response may still serve it.
	fresh, err := s.generate(ctx, symbol, false)
	if err != nil {
		// Advisor down - an expired recommendation beats none at all
		if rec != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Generation failed, serving expired recommendation")
			return rec, nil
		}
		return nil, err
	}
	return fresh, nil
}

// ApplyPreset applies one of a recommendation's presets to the symbol's
// valuation session. Returns the updated valuation result.
func (s *Service) ApplyPreset(ctx context.Context, symbol, preset string) (*valuation.Result, error) {
	symbol = strings.ToUpper(symbol)

	rec, err := s.Latest(ctx, symbol)
	if err != nil {
		return nil, err
	}

	rates, ok := rec.RateSetFor(preset)
	if !ok {
		return nil, fmt.Errorf("unknown scenario preset %q", preset)
	}

	orch := s.registry.Get(symbol)
	applied, err := orch.ApplyScenario(valuation.Scenario{
		GrowthRate:         &rates.GrowthRate,
		TerminalGrowthRate: &rates.TerminalGrowthRate,
		DiscountRate:       &rates.DiscountRate,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, fmt.Errorf("scenario preset %q for %s was not applied", preset, symbol)
	}

	return orch.Result()
}

// replaceInflight cancels any in-flight generation for symbol and
// registers a cancellable context for the new one.
func (s *Service) replaceInflight(ctx context.Context, symbol string) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.inflight[symbol]; ok {
		s.log.Debug().Str("symbol", symbol).Msg("Cancelling superseded generation")
		prev()
	}
	s.inflight[symbol] = cancel

	return ctx
}

// clearInflight removes the registration if it still belongs to ctx's
// generation. A later request may already have replaced it.
func (s *Service) clearInflight(symbol string, ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Only the superseding request's cancel func is current; if this
	// generation was replaced, leave the newer registration alone.
	if ctx.Err() == nil {
		if cancel, ok := s.inflight[symbol]; ok {
			cancel()
			delete(s.inflight, symbol)
		}
	}
}
