package scheduler

import (
	"context"
	"time"

	"github.com/dkaratzas/intrinsic/internal/modules/fundamentals"
	"github.com/dkaratzas/intrinsic/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// HistorySyncer re-syncs FCF history from the provider. Implemented by
// the fundamentals service.
type HistorySyncer interface {
	SyncHistory(ctx context.Context, symbol, period string, force bool) ([]fundamentals.FCFRecord, error)
}

// SymbolSource lists the symbols with stored history.
type SymbolSource interface {
	Symbols() ([]string, error)
}

// HistoryRefreshJob re-syncs fundamentals for every tracked symbol and
// feeds updated history into any active valuation session.
type HistoryRefreshJob struct {
	syncer   HistorySyncer
	source   SymbolSource
	registry *valuation.Registry
	timeout  time.Duration
	log      zerolog.Logger
}

// NewHistoryRefreshJob creates a new history refresh job
func NewHistoryRefreshJob(syncer HistorySyncer, source SymbolSource, registry *valuation.Registry, log zerolog.Logger) *HistoryRefreshJob {
	return &HistoryRefreshJob{
		syncer:   syncer,
		source:   source,
		registry: registry,
		timeout:  10 * time.Minute,
		log:      log.With().Str("job", "history_refresh").Logger(),
	}
}

// Name returns the job name
func (j *HistoryRefreshJob) Name() string {
	return "history_refresh"
}

// Run re-syncs all tracked symbols. A failure for one symbol does not
// stop the rest; the last error is returned.
func (j *HistoryRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	symbols, err := j.source.Symbols()
	if err != nil {
		return err
	}

	var lastErr error
	synced := 0

	for _, symbol := range symbols {
		// The job exists to pick up new filings, so the provider
		// client's long-lived response cache is bypassed.
		records, err := j.syncer.SyncHistory(ctx, symbol, fundamentals.PeriodAnnual, true)
		if err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("History refresh failed")
			lastErr = err
			continue
		}
		synced++

		// Active sessions pick up the new history immediately
		for _, active := range j.registry.Symbols() {
			if active == symbol {
				orch := j.registry.Get(symbol)
				if err := orch.SetHistory(fundamentals.ValuationRecords(records)); err != nil {
					j.log.Debug().Err(err).Str("symbol", symbol).Msg("Recompute failed after history refresh")
				}
			}
		}
	}

	j.log.Info().
		Int("symbols", len(symbols)).
		Int("synced", synced).
		Msg("History refresh complete")

	return lastErr
}
