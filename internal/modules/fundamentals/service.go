package fundamentals

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dkaratzas/intrinsic/internal/clients/fmp"
	"github.com/dkaratzas/intrinsic/internal/events"
	"github.com/dkaratzas/intrinsic/internal/modules/valuation"
	"github.com/rs/zerolog"
)

// MarketDataClient is the provider surface the service needs.
// Implemented by the FMP client.
type MarketDataClient interface {
	CashFlowHistory(ctx context.Context, symbol, period string, forceRefresh bool) ([]fmp.CashFlowEntry, error)
	GetQuote(ctx context.Context, symbol string) (*fmp.Quote, error)
}

// Service fetches fundamentals from the provider, persists them in
// history.db, and converts them into valuation engine inputs.
// The provider is the source of truth; the local store is a fallback
// for when the provider is unreachable (stale data > no data).
type Service struct {
	client       MarketDataClient
	historyDB    *HistoryDB
	eventManager *events.Manager
	log          zerolog.Logger
}

// NewService creates a new fundamentals service.
// eventManager is optional - if nil, no events are emitted.
func NewService(client MarketDataClient, historyDB *HistoryDB, eventManager *events.Manager, log zerolog.Logger) *Service {
	return &Service{
		client:       client,
		historyDB:    historyDB,
		eventManager: eventManager,
		log:          log.With().Str("component", "fundamentals").Logger(),
	}
}

// SyncHistory fetches FCF history from the provider and stores it.
// force skips the provider client's response cache, so an explicit
// sync always reaches the API. On provider failure it falls back to
// previously stored records.
func (s *Service) SyncHistory(ctx context.Context, symbol, period string, force bool) ([]FCFRecord, error) {
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("invalid period %q", period)
	}
	symbol = strings.ToUpper(symbol)

	entries, err := s.client.CashFlowHistory(ctx, symbol, period, force)
	if err != nil {
		stored, dbErr := s.historyDB.GetRecords(symbol, period)
		if dbErr == nil && len(stored) > 0 {
			s.log.Warn().
				Err(err).
				Str("symbol", symbol).
				Int("records", len(stored)).
				Msg("Provider failed, serving stored history")
			return stored, nil
		}
		return nil, fmt.Errorf("failed to fetch FCF history for %s: %w", symbol, err)
	}

	records := s.convertEntries(symbol, period, entries)
	if err := s.historyDB.UpsertRecords(records); err != nil {
		// Storage failure is not fatal for the caller; the fetched
		// data is still usable for this request.
		s.log.Error().Err(err).Str("symbol", symbol).Msg("Failed to persist FCF history")
	}

	if s.eventManager != nil {
		s.eventManager.EmitData("fundamentals", &events.HistoryRefreshedData{
			Symbol:  symbol,
			Period:  period,
			Records: len(records),
		})
	}

	s.log.Debug().
		Str("symbol", symbol).
		Str("period", period).
		Int("records", len(records)).
		Msg("FCF history synced")

	return records, nil
}

// History returns stored FCF history for a symbol, syncing from the
// provider first when the store is empty.
func (s *Service) History(ctx context.Context, symbol, period string) ([]FCFRecord, error) {
	if !ValidPeriod(period) {
		return nil, fmt.Errorf("invalid period %q", period)
	}
	symbol = strings.ToUpper(symbol)

	stored, err := s.historyDB.GetRecords(symbol, period)
	if err == nil && len(stored) > 0 {
		return stored, nil
	}

	return s.SyncHistory(ctx, symbol, period, false)
}

// Quote fetches the current quote for a symbol.
func (s *Service) Quote(ctx context.Context, symbol string) (valuation.Quote, error) {
	symbol = strings.ToUpper(symbol)

	quote, err := s.client.GetQuote(ctx, symbol)
	if err != nil {
		return valuation.Quote{}, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}

	if s.eventManager != nil {
		s.eventManager.EmitData("fundamentals", &events.QuoteRefreshedData{
			Symbol:    symbol,
			Price:     quote.Price,
			MarketCap: quote.MarketCap,
		})
	}

	return valuation.Quote{Price: quote.Price, MarketCap: quote.MarketCap}, nil
}

// ValuationRecords converts stored history into valuation engine input.
func ValuationRecords(records []FCFRecord) []valuation.Record {
	out := make([]valuation.Record, 0, len(records))
	for _, r := range records {
		out = append(out, valuation.Record{
			Year:         r.Year,
			Period:       valuation.Period(r.Period),
			FreeCashFlow: r.FreeCashFlow,
		})
	}
	return out
}

// convertEntries maps provider rows to FCFRecords, skipping rows with
// an unparseable fiscal year.
func (s *Service) convertEntries(symbol, period string, entries []fmp.CashFlowEntry) []FCFRecord {
	records := make([]FCFRecord, 0, len(entries))
	for _, e := range entries {
		year, err := strconv.Atoi(e.CalendarYear)
		if err != nil {
			s.log.Warn().
				Str("symbol", symbol).
				Str("calendar_year", e.CalendarYear).
				Msg("Skipping entry with unparseable year")
			continue
		}
		records = append(records, FCFRecord{
			Symbol:       symbol,
			Year:         year,
			Period:       period,
			FreeCashFlow: e.FreeCashFlow,
		})
	}
	return records
}
