package models

import "time"

// Outcome classifies a single generation attempt.
type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeCacheHit     Outcome = "cache_hit"
	OutcomeFailed       Outcome = "failed"
	OutcomeQuotaSkipped Outcome = "quota_skipped"
)

// HistoryEntry records one provider attempt or cache hit.
type HistoryEntry struct {
	RequestID string    `json:"request_id"`
	CacheKey  string    `json:"cache_key"`
	Style     Style     `json:"style"`
	Prompt    string    `json:"prompt,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryQueryOpts specifies filters for querying history entries.
type HistoryQueryOpts struct {
	Provider string
	Outcome  Outcome
	Since    time.Time
	Limit    int
}

// HistoryStat holds aggregate counts for a provider/outcome/day combination.
type HistoryStat struct {
	Provider string `json:"provider"`
	Outcome  string `json:"outcome"`
	Day      string `json:"day"`
	Count    int    `json:"count"`
}
