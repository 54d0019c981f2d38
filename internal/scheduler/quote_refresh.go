package scheduler

import (
	"context"
	"time"

	"github.com/dkaratzas/intrinsic/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// QuoteProvider supplies current quotes. Implemented by the
// fundamentals service.
type QuoteProvider interface {
	Quote(ctx context.Context, symbol string) (valuation.Quote, error)
}

// QuoteRefreshJob refreshes quotes for every active valuation session
// so intrinsic-value results track the market during the day.
type QuoteRefreshJob struct {
	provider QuoteProvider
	registry *valuation.Registry
	timeout  time.Duration
	log      zerolog.Logger
}

// NewQuoteRefreshJob creates a new quote refresh job
func NewQuoteRefreshJob(provider QuoteProvider, registry *valuation.Registry, log zerolog.Logger) *QuoteRefreshJob {
	return &QuoteRefreshJob{
		provider: provider,
		registry: registry,
		timeout:  2 * time.Minute,
		log:      log.With().Str("job", "quote_refresh").Logger(),
	}
}

// Name returns the job name
func (j *QuoteRefreshJob) Name() string {
	return "quote_refresh"
}

// Run refreshes quotes for all sessions. A failure for one symbol does
// not stop the rest; the last error is returned.
func (j *QuoteRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	symbols := j.registry.Symbols()
	var lastErr error
	refreshed := 0

	for _, symbol := range symbols {
		quote, err := j.provider.Quote(ctx, symbol)
		if err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote refresh failed")
			lastErr = err
			continue
		}

		orch := j.registry.Get(symbol)
		if err := orch.SetQuote(quote); err != nil {
			// A recompute failure is session state, not a job failure
			j.log.Debug().Err(err).Str("symbol", symbol).Msg("Recompute failed after quote refresh")
		}
		refreshed++
	}

	j.log.Info().
		Int("sessions", len(symbols)).
		Int("refreshed", refreshed).
		Msg("Quote refresh complete")

	return lastErr
}
