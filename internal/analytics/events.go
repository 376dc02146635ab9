package analytics

import "time"

type EventType string

const (
	EventProductSearch EventType = "product_search"
)

// Search outcomes. They double as the product_searches_total label values.
const (
	OutcomeOK             = "ok"
	OutcomeInvalid        = "invalid"
	OutcomeConfigError    = "config_error"
	OutcomeUpstreamError  = "upstream_error"
	OutcomeTransportError = "transport_error"
	OutcomeTimeout        = "timeout"
	OutcomeCircuitOpen    = "circuit_open"
	OutcomeCanceled       = "canceled"
)

// SearchEvent records one call to the product search proxy.
type SearchEvent struct {
	Type        EventType `json:"type"`
	Keyword     string    `json:"keyword"`
	Mode        string    `json:"mode"`
	Outcome     string    `json:"outcome"`
	Status      int       `json:"status"`
	ResultCount int       `json:"result_count"`
	CacheHit    bool      `json:"cache_hit"`
	LatencyMs   int64     `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
}
