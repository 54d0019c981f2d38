package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Annual financial data (updates with yearly filings)
	TTLFCFHistory = 45 * 24 * time.Hour // 45 days - FCF history only moves on new filings

	// Short-lived data (changes frequently)
	TTLQuote = 10 * time.Minute // 10 minutes - price and market cap

	// AI scenario recommendations (regenerating is expensive; force_refresh bypasses)
	TTLScenarios = 24 * time.Hour // 1 day
)
