// Package scenarios manages AI-generated assumption presets: requesting
// them from the advisor service, persisting them in research.db, and
// applying them to a symbol's valuation session.
package scenarios

import (
	"time"

	"github.com/dkaratzas/intrinsic/internal/clients/advisor"
)

// Recommendation is a stored scenario set for a symbol.
type Recommendation struct {
	UUID         string          `json:"uuid"`
	Symbol       string          `json:"symbol"`
	Reasoning    string          `json:"reasoning"`
	Conservative advisor.RateSet `json:"conservative"`
	Base         advisor.RateSet `json:"base"`
	Optimistic   advisor.RateSet `json:"optimistic"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// Expired reports whether the recommendation has passed its expiry.
func (r *Recommendation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Names of the three preset scenarios.
const (
	PresetConservative = "conservative"
	PresetBase         = "base"
	PresetOptimistic   = "optimistic"
)

// RateSetFor returns the rate set for a named preset, and whether the
// name is recognized.
func (r *Recommendation) RateSetFor(preset string) (advisor.RateSet, bool) {
	switch preset {
	case PresetConservative:
		return r.Conservative, true
	case PresetBase:
		return r.Base, true
	case PresetOptimistic:
		return r.Optimistic, true
	}
	return advisor.RateSet{}, false
}
