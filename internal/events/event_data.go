package events

import "encoding/json"

// EventData is the interface that all event data types must implement
// This allows for type-safe event data while maintaining flexibility
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// ValuationUpdatedData contains data for ValuationUpdated events
type ValuationUpdatedData struct {
	Symbol          string  `json:"symbol"`
	IntrinsicValue  float64 `json:"intrinsic_value"`
	CurrentPrice    float64 `json:"current_price"`
	UpsideFraction  float64 `json:"upside_fraction"`
	ProjectionYears int     `json:"projection_years"`
}

// EventType returns the event type for ValuationUpdatedData
func (d *ValuationUpdatedData) EventType() EventType {
	return ValuationUpdated
}

// ValuationFailedData contains data for ValuationFailed events
type ValuationFailedData struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// EventType returns the event type for ValuationFailedData
func (d *ValuationFailedData) EventType() EventType {
	return ValuationFailed
}

// HistoryRefreshedData contains data for HistoryRefreshed events
type HistoryRefreshedData struct {
	Symbol  string `json:"symbol"`
	Period  string `json:"period"`
	Records int    `json:"records"`
}

// EventType returns the event type for HistoryRefreshedData
func (d *HistoryRefreshedData) EventType() EventType {
	return HistoryRefreshed
}

// QuoteRefreshedData contains data for QuoteRefreshed events
type QuoteRefreshedData struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
}

// EventType returns the event type for QuoteRefreshedData
func (d *QuoteRefreshedData) EventType() EventType {
	return QuoteRefreshed
}

// RecommendationsReadyData contains data for RecommendationsReady events
type RecommendationsReadyData struct {
	Symbol string `json:"symbol"`
	Count  int    `json:"count"`
}

// EventType returns the event type for RecommendationsReadyData
func (d *RecommendationsReadyData) EventType() EventType {
	return RecommendationsReady
}

// SystemStatusChangedData contains data for SystemStatusChanged events
type SystemStatusChangedData struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// EventType returns the event type for SystemStatusChangedData
func (d *SystemStatusChangedData) EventType() EventType {
	return SystemStatusChanged
}

// ToMap converts typed event data to the map form the bus carries.
// Round-trips through JSON so field names match the wire format.
func ToMap(data EventData) map[string]interface{} {
	raw, err := json.Marshal(data)
	if err != nil {
		return map[string]interface{}{}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{}
	}
	return out
}
