package valuation

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry maps symbols to their orchestrators so multiple dashboard views
// can value different companies within one session. Orchestrators are
// created on demand and live for the lifetime of the process; all engine
// state is in-memory and rebuilt per session.
type Registry struct {
	mu            sync.Mutex
	orchestrators map[string]*Orchestrator
	log           zerolog.Logger
}

// NewRegistry creates an empty orchestrator registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		orchestrators: make(map[string]*Orchestrator),
		log:           log.With().Str("component", "valuation_registry").Logger(),
	}
}

// Get returns the orchestrator for a symbol, creating one in the Idle state
// on first access.
func (r *Registry) Get(symbol string) *Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()

	orch, ok := r.orchestrators[symbol]
	if !ok {
		orch = NewOrchestrator(symbol, r.log)
		r.orchestrators[symbol] = orch
		r.log.Debug().Str("symbol", symbol).Msg("Created valuation orchestrator")
	}
	return orch
}

// Symbols returns the symbols with active orchestrators, sorted.
func (r *Registry) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	symbols := make([]string, 0, len(r.orchestrators))
	for symbol := range r.orchestrators {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
