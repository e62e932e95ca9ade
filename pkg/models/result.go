package models

import "time"

// GenerationResult is the outcome of a successful generation. Results are
// never mutated after creation; Cached is set on the copy handed to callers.
type GenerationResult struct {
	ImageURL    string    `json:"image_url"`
	Prompt      string    `json:"prompt"`
	ServiceName string    `json:"service_name"`
	GeneratedAt time.Time `json:"generated_at"`
	Cached      bool      `json:"cached"`
}

// UsageStats reports counters for the lifetime of one generator.
type UsageStats struct {
	TotalRequests         int64 `json:"total_requests"`
	SuccessfulGenerations int64 `json:"successful_generations"`
	CacheHits             int64 `json:"cache_hits"`
	CurrentMonthUsage     int64 `json:"current_month_usage"`
	RemainingQuota        int64 `json:"remaining_quota"`
}
